package storage

import (
	"context"
	"fmt"
	"testing"
)

func TestBatchFetcher_Fetch(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()

	var paths []string
	for i := 0; i < 10; i++ {
		p := fmt.Sprintf("sessions/s/charts/c%d.json", i)
		if err := store.Put(ctx, p, []byte(fmt.Sprintf("figure-%d", i))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		paths = append(paths, p)
	}

	fetcher := NewBatchFetcher(store, 4)
	result, err := fetcher.Fetch(ctx, paths)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if result.Fetched != 10 {
		t.Errorf("expected 10 fetched, got %d", result.Fetched)
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
	for i, p := range paths {
		want := fmt.Sprintf("figure-%d", i)
		if string(result.Objects[p]) != want {
			t.Errorf("object %s: got %q, want %q", p, result.Objects[p], want)
		}
	}
}

func TestBatchFetcher_PartialFailure(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Put(ctx, "exists.json", []byte("ok")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	fetcher := NewBatchFetcher(store, 2)
	result, err := fetcher.Fetch(ctx, []string{"exists.json", "missing.json"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if result.Fetched != 1 {
		t.Errorf("expected 1 fetched, got %d", result.Fetched)
	}
	if result.Errors["missing.json"] != ErrObjectNotFound {
		t.Errorf("expected ErrObjectNotFound for missing object, got %v", result.Errors["missing.json"])
	}
	if string(result.Objects["exists.json"]) != "ok" {
		t.Error("existing object should still fetch despite sibling failure")
	}
}

func TestBatchFetcher_Empty(t *testing.T) {
	baseDir := t.TempDir()
	store, err := NewLocalStorage(baseDir)
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}

	fetcher := NewBatchFetcher(store, 4)
	result, err := fetcher.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if result.Fetched != 0 || len(result.Objects) != 0 || len(result.Errors) != 0 {
		t.Error("expected empty result for empty input")
	}
}
