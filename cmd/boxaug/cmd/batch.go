package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/batch"
	"github.com/MeKo-Tech/boxaug/internal/config"
	"github.com/MeKo-Tech/boxaug/internal/overlay"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch <paths...>",
	Short: "Generate augmented variants of many images in parallel",
	Long: `Generate one or more augmented variants of every image found under the
given files and directories.

Each variant is written as <name>_<n>.<ext> to the output directory, with a
sidecar holding its boxes when the source image has one. Variant n of the
i-th discovered image always uses random stream i*variants+n, so a seed
reproduces the same dataset regardless of the worker count.

Examples:
  boxaug batch images/ --variants 5
  boxaug batch images/ -r --include "*.png" --out augmented/ --seed 42
  boxaug batch a.png b.png --overlay-dir overlays/ --manifest manifest.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBatchCommand,
}

// configToBatchConfig maps the resolved configuration onto batch settings,
// letting explicitly set flags win.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) (*batch.Config, error) {
	bc := batch.DefaultConfig()
	bc.Seed = cfg.Seed

	bc.Variants = cfg.Batch.Variants
	if cmd.Flags().Changed("variants") {
		bc.Variants, _ = cmd.Flags().GetInt("variants")
	}

	bc.Workers = cfg.Batch.Workers
	if cmd.Flags().Changed("workers") {
		bc.Workers, _ = cmd.Flags().GetInt("workers")
	}

	bc.OutputDir = cfg.Batch.OutputDir
	if cmd.Flags().Changed("out") {
		bc.OutputDir, _ = cmd.Flags().GetString("out")
	}

	// the configured default format applies only when asked for; otherwise
	// variants keep their source format
	if cmd.Flags().Changed("format") {
		bc.Format, _ = cmd.Flags().GetString("format")
	}

	bc.Quality = cfg.Output.Quality
	if cmd.Flags().Changed("quality") {
		bc.Quality, _ = cmd.Flags().GetInt("quality")
	}

	bc.ClampBoxes = cfg.Output.ClampBoxes
	if cmd.Flags().Changed("clamp-boxes") {
		bc.ClampBoxes, _ = cmd.Flags().GetBool("clamp-boxes")
	}

	bc.OverlayDir = cfg.Output.OverlayDir
	if cmd.Flags().Changed("overlay-dir") {
		bc.OverlayDir, _ = cmd.Flags().GetString("overlay-dir")
	}
	style, err := overlay.StyleFromHex(cfg.Output.OverlayBoxColor, cfg.Output.OverlayCornerColor)
	if err != nil {
		return nil, err
	}
	bc.Overlay = style

	bc.ContinueOnError = cfg.Batch.ContinueOnError
	if cmd.Flags().Changed("continue-on-error") {
		bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}

	bc.Recursive = cfg.Batch.Recursive
	if cmd.Flags().Changed("recursive") {
		bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	}
	bc.IncludePatterns = cfg.Batch.IncludePatterns
	if cmd.Flags().Changed("include") {
		bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	}
	bc.ExcludePatterns = cfg.Batch.ExcludePatterns
	if cmd.Flags().Changed("exclude") {
		bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")
	}

	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")
	bc.LogProgressEvery = cfg.Batch.LogProgressEvery
	if cmd.Flags().Changed("log-progress") {
		bc.LogProgressEvery, _ = cmd.Flags().GetInt("log-progress")
	}

	return &bc, nil
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	bc, err := configToBatchConfig(cfg, cmd)
	if err != nil {
		return err
	}
	p, err := cfg.LoadPolicy()
	if err != nil {
		return err
	}

	if !bc.Quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Augmenting %d path(s) into %s...\n", len(args), bc.OutputDir)
	}

	result, err := batch.ProcessBatch(cmd.Context(), args, bc, policy.NewAugmentor(p))
	if err != nil {
		return err
	}

	manifest, _ := cmd.Flags().GetString("manifest")
	manifestFormat, _ := cmd.Flags().GetString("manifest-format")
	if manifest != "" || cmd.Flags().Changed("manifest-format") {
		if err := result.SaveResults(manifestFormat, manifest, bc.Quiet); err != nil {
			return fmt.Errorf("failed to save manifest: %w", err)
		}
	}

	result.PrintStats(bc.Quiet)

	if stats := result.Stats(); stats.FailedImages > 0 {
		return fmt.Errorf("%d of %d images failed", stats.FailedImages, stats.TotalImages)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Generation flags
	batchCmd.Flags().IntP("variants", "n", 1, "number of variants per image")

	// Output flags
	batchCmd.Flags().StringP("out", "o", "augmented", "output directory")
	batchCmd.Flags().String("format", "", "output format (png, jpeg, webp, bmp, tiff; default: keep input format)")
	batchCmd.Flags().Int("quality", 95, "JPEG/WebP quality (1-100)")
	batchCmd.Flags().Bool("clamp-boxes", false, "clip output boxes to the image")
	batchCmd.Flags().String("overlay-dir", "", "directory to save overlay images")
	batchCmd.Flags().String("manifest", "", "write a manifest of all variants to this file")
	batchCmd.Flags().StringP("manifest-format", "f", "json", "manifest format: json, csv, text")

	// Parallel processing flags
	batchCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	batchCmd.Flags().Bool("continue-on-error", false, "record failed images instead of aborting")

	// File discovery flags
	batchCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	batchCmd.Flags().StringSlice("include", []string{}, "file patterns to include")
	batchCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	// Progress flags
	batchCmd.Flags().Bool("progress", false, "show progress bar")
	batchCmd.Flags().Bool("quiet", false, "suppress progress output")
	batchCmd.Flags().Duration("progress-interval", 100*time.Millisecond, "progress update interval")
	batchCmd.Flags().Int("log-progress", 0, "log a progress line every N images (0 disables)")
}
