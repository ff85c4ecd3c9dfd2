package benchmark

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/plotforge/plotforge/internal/catalog"
	"github.com/plotforge/plotforge/internal/dataset"
	"github.com/plotforge/plotforge/internal/profile"
	"github.com/plotforge/plotforge/internal/storage"
)

// getBenchmarkStorage returns object storage for a benchmark run. It
// respects PLOTFORGE_STORAGE_TYPE=s3 from .env or the environment so the
// same suite can be pointed at a real bucket; the default is a temp
// directory on local disk.
func getBenchmarkStorage(b *testing.B, benchName string) (storage.ObjectStorage, func()) {
	_ = godotenv.Load("../../.env")

	if os.Getenv("PLOTFORGE_STORAGE_TYPE") == "s3" {
		bucket := os.Getenv("PLOTFORGE_S3_BUCKET")
		if bucket == "" {
			b.Fatal("PLOTFORGE_STORAGE_TYPE=s3 but PLOTFORGE_S3_BUCKET is unset")
		}
		cfg := storage.DefaultS3Config()
		cfg.Region = os.Getenv("PLOTFORGE_S3_REGION")
		cfg.Endpoint = os.Getenv("PLOTFORGE_S3_ENDPOINT")
		store, err := storage.NewS3Storage(context.Background(), bucket, cfg)
		if err != nil {
			b.Fatalf("failed to create S3 storage: %v", err)
		}
		b.Logf("benchmark %s using s3://%s", benchName, bucket)
		return store, func() {}
	}

	tmpDir, err := os.MkdirTemp("", "plotforge-bench-*")
	if err != nil {
		b.Fatal(err)
	}
	store, err := storage.NewLocalStorage(tmpDir)
	if err != nil {
		b.Fatalf("failed to create local storage: %v", err)
	}
	return store, func() { os.RemoveAll(tmpDir) }
}

// newBenchmarkCatalog opens a throwaway SQLite catalog.
func newBenchmarkCatalog(b *testing.B) (*catalog.SQLiteCatalog, func()) {
	tmpDir, err := os.MkdirTemp("", "plotforge-bench-cat-*")
	if err != nil {
		b.Fatal(err)
	}
	cat, err := catalog.NewCatalog(tmpDir + "/catalog.db")
	if err != nil {
		b.Fatalf("failed to create catalog: %v", err)
	}
	return cat, func() {
		cat.Close()
		os.RemoveAll(tmpDir)
	}
}

// syntheticCSV builds a dataset with two numeric columns, a categorical
// column, and a datetime column. Deterministic seed so runs compare.
func syntheticCSV(rows int) string {
	rng := rand.New(rand.NewSource(42))
	cities := []string{"austin", "boston", "chicago", "denver", "el paso"}

	var sb strings.Builder
	sb.Grow(rows * 48)
	sb.WriteString("age,income,city,signup_date\n")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "%d,%d,%s,%s\n",
			18+rng.Intn(60),
			30000+rng.Intn(120000),
			cities[rng.Intn(len(cities))],
			base.AddDate(0, 0, rng.Intn(365)).Format("2006-01-02"))
	}
	return sb.String()
}

// profileSynthetic runs the analyzer over a synthetic dataset.
func profileSynthetic(b *testing.B, rows int) (*profile.DatasetProfile, *profile.Table) {
	b.Helper()
	prof, table, err := profile.Analyze(strings.NewReader(syntheticCSV(rows)), "bench.csv", profile.Options{})
	if err != nil {
		b.Fatalf("failed to profile synthetic dataset: %v", err)
	}
	return prof, table
}

// seedSession snapshots the table and registers the session record.
func seedSession(b *testing.B, cat *catalog.SQLiteCatalog, store storage.ObjectStorage, sessionID string, prof *profile.DatasetProfile, table *profile.Table) *dataset.SnapshotMeta {
	b.Helper()
	ctx := context.Background()

	meta, err := dataset.Write(ctx, store, sessionID, table)
	if err != nil {
		b.Fatalf("failed to write snapshot: %v", err)
	}
	now := time.Now()
	rec := &catalog.SessionRecord{
		SessionID:        sessionID,
		DatasetName:      "bench.csv",
		RowCount:         int64(meta.Rows),
		ColumnCount:      len(meta.Columns),
		SnapshotPath:     meta.Path,
		SnapshotChecksum: meta.Checksum,
		SnapshotBytes:    meta.EncodedBytes,
		CreatedAt:        now,
		LastActiveAt:     now,
	}
	if err := rec.SetColumns(meta.Columns); err != nil {
		b.Fatalf("failed to encode columns: %v", err)
	}
	if err := rec.SetProfile(prof); err != nil {
		b.Fatalf("failed to encode profile: %v", err)
	}
	if err := cat.CreateSession(ctx, rec); err != nil {
		b.Fatalf("failed to create session: %v", err)
	}
	return meta
}
