package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// BatchFetcher coordinates parallel reads from object storage.
// The session export endpoint uses it to pull every figure document of a
// session without serializing round trips.
type BatchFetcher struct {
	storage     ObjectStorage
	concurrency int
}

// BatchResult contains the outcome of a batch fetch operation.
type BatchResult struct {
	Objects map[string][]byte
	Errors  map[string]error
	Fetched int
}

// NewBatchFetcher creates a new batch fetcher.
// storage: the ObjectStorage implementation to read from
// concurrency: maximum number of parallel fetches
func NewBatchFetcher(storage ObjectStorage, concurrency int) *BatchFetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BatchFetcher{
		storage:     storage,
		concurrency: concurrency,
	}
}

// Fetch reads multiple objects in parallel.
// Returns a map of objectPath to contents for successful reads, and a
// separate map of objectPath to error for failed ones. A failed object
// never blocks the others.
func (b *BatchFetcher) Fetch(ctx context.Context, objectPaths []string) (*BatchResult, error) {
	result := &BatchResult{
		Objects: make(map[string][]byte),
		Errors:  make(map[string]error),
	}
	if len(objectPaths) == 0 {
		return result, nil
	}

	sem := semaphore.NewWeighted(int64(b.concurrency))

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range objectPaths {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context cancelled or semaphore failed
			mu.Lock()
			result.Errors[p] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(path string) {
			defer sem.Release(1)
			defer wg.Done()

			data, err := b.storage.Get(ctx, path)
			if err != nil {
				mu.Lock()
				result.Errors[path] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.Objects[path] = data
			result.Fetched++
			mu.Unlock()
		}(p)
	}

	wg.Wait()

	return result, nil
}
