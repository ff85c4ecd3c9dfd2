// Package main implements the plotforge service binary. It runs the HTTP
// API and the retention daemon together or individually based on --mode.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/plotforge/plotforge/internal/app"
	"github.com/plotforge/plotforge/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Best effort: a local .env carries the Gemini key in development.
	_ = godotenv.Load()

	var (
		configFile  string
		dataDir     string
		mode        string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&mode, "mode", "", "Service mode: all, api, retention")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address for the API")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Plotforge - On-Demand Chart Generation Service\n\n")
		fmt.Fprintf(os.Stderr, "Usage: plotforge [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  plotforge --data-dir /data/plotforge\n")
		fmt.Fprintf(os.Stderr, "  plotforge --mode api --http-addr :9090\n")
		fmt.Fprintf(os.Stderr, "  plotforge --config /etc/plotforge/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PLOTFORGE_MODE            Service mode (all, api, retention)\n")
		fmt.Fprintf(os.Stderr, "  PLOTFORGE_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  PLOTFORGE_HTTP_ADDR       HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  PLOTFORGE_STORAGE_TYPE    Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  PLOTFORGE_GEMINI_API_KEY  Gemini API key for insights\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("plotforge version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, mode, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	log.Printf("Received signal: %v", sig)

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and flags, in
// rising priority.
func loadConfig(configFile, dataDir, mode, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with a configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════════════════╗")
	log.Printf("║                      PLOTFORGE                            ║")
	log.Printf("║        On-Demand Chart Generation For Tabular Data        ║")
	log.Printf("╚═══════════════════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("")

	if cfg.ShouldRunAPI() {
		log.Printf("API Service:")
		log.Printf("  HTTP: %s", cfg.HTTP.Addr)
		log.Printf("  Render Workers: %d", cfg.Render.Workers)
	}
	if cfg.ShouldRunRetention() {
		log.Printf("Retention Service:")
		log.Printf("  Check Interval: %v", cfg.Retention.CheckInterval)
		if cfg.Retention.MaxIdle > 0 {
			log.Printf("  Max Idle: %v", cfg.Retention.MaxIdle)
		} else {
			log.Printf("  Max Idle: disabled")
		}
	}
	log.Printf("")
}
