package batch

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/overlay"
)

// Config holds all configuration for batch augmentation.
type Config struct {
	// Generation settings
	Variants int
	Seed     uint64

	// Output settings
	OutputDir  string
	Format     string // empty keeps the input format
	Quality    int
	ClampBoxes bool
	OverlayDir string
	Overlay    overlay.Style

	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ProgressInterval time.Duration
	// LogProgressEvery logs a progress line every n images when no
	// progress bar is shown. 0 disables it.
	LogProgressEvery int
}

// DefaultConfig returns sensible defaults for batch augmentation.
func DefaultConfig() Config {
	return Config{
		Variants:         1,
		OutputDir:        "augmented",
		Quality:          95,
		Overlay:          overlay.DefaultStyle(),
		Workers:          runtime.NumCPU(),
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Variant is one generated output of a source image.
type Variant struct {
	Index       int            `json:"index"`
	Seed        uint64         `json:"seed"`
	Stream      uint64         `json:"stream"`
	Path        string         `json:"path"`
	SidecarPath string         `json:"sidecar,omitempty"`
	OverlayPath string         `json:"overlay,omitempty"`
	Width       int            `json:"width"`
	Height      int            `json:"height"`
	Boxes       []geometry.Box `json:"boxes,omitempty"`
	Steps       []string       `json:"steps"`
}

// ImageResult collects the variants of one source image.
type ImageResult struct {
	Source   string    `json:"source"`
	Variants []Variant `json:"variants,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Failed reports whether the image could not be processed.
func (r ImageResult) Failed() bool { return r.Error != "" }

// Result holds the result of batch augmentation.
type Result struct {
	Images      []ImageResult
	Duration    time.Duration
	WorkerCount int
}

// Stats summarizes a batch run.
type Stats struct {
	TotalImages      int
	ProcessedImages  int
	FailedImages     int
	Variants         int
	WorkerCount      int
	TotalDuration    time.Duration
	AveragePerImage  time.Duration
	ThroughputPerSec float64
}

// Stats computes processing statistics.
func (r *Result) Stats() Stats {
	s := Stats{TotalImages: len(r.Images), WorkerCount: r.WorkerCount, TotalDuration: r.Duration}
	for _, img := range r.Images {
		if img.Failed() {
			s.FailedImages++
			continue
		}
		s.ProcessedImages++
		s.Variants += len(img.Variants)
	}
	if s.ProcessedImages > 0 {
		s.AveragePerImage = r.Duration / time.Duration(s.ProcessedImages)
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		s.ThroughputPerSec = float64(s.Variants) / secs
	}
	return s
}

// FormatResults formats the batch manifest in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Images, format)
}

// SaveResults saves the formatted manifest to a file or stdout.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(os.Stdout, "Manifest written to %s\n", outputFile)
		}
	} else {
		_, _ = fmt.Fprint(os.Stdout, output)
	}

	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(quiet bool) {
	if quiet {
		return
	}
	stats := r.Stats()
	_, _ = fmt.Fprintf(os.Stdout, "\nAugmentation Statistics:\n")
	_, _ = fmt.Fprintf(os.Stdout, "  Total images: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(os.Stdout, "  Processed: %d\n", stats.ProcessedImages)
	_, _ = fmt.Fprintf(os.Stdout, "  Failed: %d\n", stats.FailedImages)
	_, _ = fmt.Fprintf(os.Stdout, "  Variants: %d\n", stats.Variants)
	_, _ = fmt.Fprintf(os.Stdout, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(os.Stdout, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(os.Stdout, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(os.Stdout, "  Throughput: %.1f variants/sec\n", stats.ThroughputPerSec)
}
