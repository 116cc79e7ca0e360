package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/benchmark"
	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/transform"
	"github.com/spf13/cobra"
)

// benchReport is printed by bench --json.
type benchReport struct {
	Image      string             `json:"image"`
	Iterations int                `json:"iterations"`
	Stages     []benchStage       `json:"stages"`
	Profile    *benchmark.Profile `json:"profile"`
}

type benchStage struct {
	Name         string        `json:"name"`
	Iterations   int           `json:"iterations"`
	PerIteration time.Duration `json:"per_iteration_ns"`
	AllocBytes   uint64        `json:"alloc_bytes_per_iteration"`
}

// benchCmd represents the bench command.
var benchCmd = &cobra.Command{
	Use:   "bench <image>",
	Short: "Measure decode, augmentation and encode times for an image",
	Long: `Run the configured policy repeatedly on one image and report timings.

The decode, augment and encode stages are timed separately, followed by a
per-step breakdown of the augmentation pipeline. Boxes are read from the
image sidecar when present.

Examples:
  boxaug bench photo.png
  boxaug bench photo.png --iterations 200 --format jpeg
  boxaug bench photo.png --policy heavy.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runBench,
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	src := args[0]

	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations <= 0 {
		return fmt.Errorf("--iterations must be positive, got %d", iterations)
	}
	format, _ := cmd.Flags().GetString("format")
	quality := cfg.Output.Quality
	if cmd.Flags().Changed("quality") {
		quality, _ = cmd.Flags().GetInt("quality")
	}

	p, err := cfg.LoadPolicy()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(src) //nolint:gosec // G304: user supplied input path
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	img, _, err := imageio.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	ann, _, err := imageio.LoadSidecar(src)
	if err != nil {
		return err
	}
	sample := transform.NewSample(img, ann.Boxes)
	roi := ann.DefaultROI()

	slog.Debug("Benchmarking image", "image", src, "iterations", iterations, "boxes", len(ann.Boxes))

	aug := policy.NewAugmentor(p)
	stream := uint64(0)
	last := sample
	suite := benchmark.NewSuite()
	suite.Add("decode", func() error {
		_, _, err := imageio.Decode(bytes.NewReader(data))
		return err
	})
	suite.Add("augment", func() error {
		rng := rand.New(rand.NewPCG(cfg.Seed, stream))
		stream++
		out, _, err := aug.Augment(rng, sample, roi)
		last = out
		return err
	})
	suite.Add("encode", func() error {
		var buf bytes.Buffer
		return imageio.Encode(&buf, last.Image, format, quality)
	})
	results := suite.RunAll(iterations)
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("%s: %w", r.Name, r.Error)
		}
	}

	profile, err := benchmark.ProfileAugmentation(sample, roi, p, cfg.Seed, iterations)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		report := benchReport{Image: src, Iterations: iterations, Profile: profile}
		for _, r := range results {
			report.Stages = append(report.Stages, benchStage{
				Name:         r.Name,
				Iterations:   r.Iterations,
				PerIteration: r.PerIteration(),
				AllocBytes:   r.AllocatedPerIteration(),
			})
		}
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(w, string(out))
		return nil
	}

	suite.PrintResults(w)
	_, _ = fmt.Fprintln(w, "\nAugmentation steps:")
	if err := profile.Write(w); err != nil {
		return err
	}
	if st, ok := profile.Slowest(); ok {
		_, _ = fmt.Fprintf(w, "\nSlowest step: %s (%v total)\n", st.Name, st.Total.Round(time.Microsecond))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntP("iterations", "n", 50, "number of runs per stage")
	benchCmd.Flags().String("format", "png", "encode format to time (png, jpeg, webp, bmp, tiff)")
	benchCmd.Flags().Int("quality", 95, "JPEG/WebP quality (1-100)")
	benchCmd.Flags().Bool("json", false, "print the report as JSON")
}
