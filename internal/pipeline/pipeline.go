// Package pipeline spreads chunks of rows over a fixed pool of workers and
// hands their results back in chunk order.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
)

// DefaultChunkSize is the number of rows per chunk when unset.
const DefaultChunkSize = 1000

// Options size the pool.
type Options struct {
	ChunkSize int
	// Workers defaults to the number of CPUs minus one, at least one.
	Workers int
	Log     *slog.Logger
}

// DefaultWorkers returns NumCPU-1, at least 1.
func DefaultWorkers() int {
	return max(runtime.NumCPU()-1, 1)
}

// Chunk is a slice of the input rows.
type Chunk[T any] struct {
	Index int
	Rows  []T
}

// BatchResult is what a worker hands back for one chunk.
type BatchResult[R any] struct {
	Chunk int
	Pairs []R
	Err   error
}

// Split cuts rows into chunks of at most size rows.
func Split[T any](rows []T, size int) []Chunk[T] {
	if size <= 0 {
		size = DefaultChunkSize
	}
	chunks := make([]Chunk[T], 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, Chunk[T]{Index: len(chunks), Rows: rows[start:end]})
	}
	return chunks
}

// Run processes rows chunk by chunk on opts.Workers goroutines. A failing
// or panicking chunk does not stop the others. Cancellation is checked between chunks;
// when ctx ends early Run returns the results gathered so far and ctx.Err().
// progress, if set, receives the done fraction from the calling goroutine.
func Run[T, R any](ctx context.Context, rows []T, opts Options, work func(ctx context.Context, c Chunk[T]) ([]R, error), progress func(float64)) ([]BatchResult[R], error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	chunks := Split(rows, opts.ChunkSize)
	workers = min(workers, max(len(chunks), 1))
	log.Info("Processing chunks", "rows", len(rows), "chunks", len(chunks), "workers", workers)

	jobs := make(chan Chunk[T], workers)
	results := make(chan BatchResult[R], workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					continue
				}
				results <- runChunk(ctx, c, work)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, c := range chunks {
			select {
			case jobs <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]BatchResult[R], 0, len(chunks))
	for res := range results {
		if res.Err != nil {
			log.Error("Chunk failed", "chunk", res.Chunk, "error", res.Err)
		}
		out = append(out, res)
		if progress != nil && len(chunks) > 0 {
			progress(float64(len(out)) / float64(len(chunks)))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chunk < out[j].Chunk })

	if err := ctx.Err(); err != nil && len(out) < len(chunks) {
		return out, err
	}
	return out, nil
}

// runChunk turns a panic in work into the chunk's error.
func runChunk[T, R any](ctx context.Context, c Chunk[T], work func(ctx context.Context, c Chunk[T]) ([]R, error)) (res BatchResult[R]) {
	res.Chunk = c.Index
	defer func() {
		if r := recover(); r != nil {
			res.Pairs, res.Err = nil, fmt.Errorf("chunk %d panicked: %v", c.Index, r)
		}
	}()
	res.Pairs, res.Err = work(ctx, c)
	return res
}

// Flatten concatenates the pairs of results, in order, skipping failed
// chunks. It returns the number of failed chunks.
func Flatten[R any](results []BatchResult[R]) ([]R, int) {
	var (
		pairs  []R
		failed int
	)
	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		pairs = append(pairs, res.Pairs...)
	}
	return pairs, failed
}
