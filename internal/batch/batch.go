// Package batch generates augmented variants of many images in parallel and
// writes them, with their re-derived boxes, to an output directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

type imageJob struct {
	index int
	path  string
}

type imageResult struct {
	index    int
	variants []Variant
	err      error
}

// ProcessBatch discovers the images named by paths and generates
// cfg.Variants variants of each with aug. Results keep discovery order. Unless
// cfg.ContinueOnError is set, the first failure cancels the remaining work
// and is returned.
func ProcessBatch(ctx context.Context, paths []string, cfg *Config, aug Augmenter) (*Result, error) {
	if aug == nil {
		return nil, errors.New("batch: augmenter is required")
	}
	if cfg.Variants < 1 {
		return nil, fmt.Errorf("batch: variants must be at least 1, got %d", cfg.Variants)
	}

	files, err := discoverImageFiles(paths, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}

	progress := newProgressCallback(cfg)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(files))

	slog.Info("Starting batch augmentation",
		"images", len(files), "variants", cfg.Variants, "workers", workers, "output_dir", cfg.OutputDir)

	start := time.Now()
	images, err := runPool(ctx, files, workers, cfg, aug, progress)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	return &Result{Images: images, Duration: duration, WorkerCount: workers}, nil
}

// runPool fans jobs out to a fixed set of workers and collects the results in
// job order.
func runPool(
	ctx context.Context,
	files []string,
	workers int,
	cfg *Config,
	aug Augmenter,
	progress ProgressCallback,
) ([]ImageResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress.OnStart(len(files))
	defer progress.OnComplete()

	jobs := make(chan imageJob, len(files))
	results := make(chan imageResult, len(files))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go worker(ctx, jobs, results, &wg, cfg, aug)
	}

	go func() {
		defer close(jobs)
		for i, path := range files {
			select {
			case jobs <- imageJob{index: i, path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	images := make([]ImageResult, len(files))
	for i, path := range files {
		images[i].Source = path
	}

	var firstError error
	processed := 0
	for res := range results {
		processed++
		if res.err != nil {
			images[res.index].Error = res.err.Error()
			progress.OnError(res.index, res.err)
			if cfg.ContinueOnError {
				slog.Warn("Skipping image", "file", files[res.index], "error", res.err)
			} else if firstError == nil {
				firstError = fmt.Errorf("image %d (%s): %w", res.index, files[res.index], res.err)
				cancel()
			}
		} else {
			images[res.index].Variants = res.variants
		}
		progress.OnProgress(processed, len(files))
	}

	if firstError != nil {
		return nil, firstError
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return images, nil
}

func worker(
	ctx context.Context,
	jobs <-chan imageJob,
	results chan<- imageResult,
	wg *sync.WaitGroup,
	cfg *Config,
	aug Augmenter,
) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			variants, err := processImage(aug, cfg, job.index, job.path)
			select {
			case results <- imageResult{index: job.index, variants: variants, err: err}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// newProgressCallback picks the progress reporter: none when quiet, the
// console bar when requested, otherwise periodic log lines if enabled.
func newProgressCallback(cfg *Config) ProgressCallback {
	switch {
	case cfg.Quiet:
		return NoOpProgressCallback{}
	case cfg.ShowProgress:
		return NewConsoleProgressCallback(os.Stderr, "Augmenting: ").WithUpdateInterval(cfg.ProgressInterval)
	case cfg.LogProgressEvery > 0:
		return NewLogProgressCallback(slog.Default(), slog.LevelInfo, cfg.LogProgressEvery)
	default:
		return NoOpProgressCallback{}
	}
}
