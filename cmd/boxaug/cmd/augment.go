package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/overlay"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/transform"
	"github.com/spf13/cobra"
)

// augmentSummary is printed by augment --json.
type augmentSummary struct {
	Source  string      `json:"source"`
	Output  string      `json:"output"`
	Sidecar string      `json:"sidecar,omitempty"`
	Overlay string      `json:"overlay,omitempty"`
	Seed    uint64      `json:"seed"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	Boxes   [][]float64 `json:"boxes,omitempty"`
	Steps   []string    `json:"steps"`
}

// augmentCmd represents the augment command.
var augmentCmd = &cobra.Command{
	Use:   "augment <image>",
	Short: "Augment a single image and its boxes",
	Long: `Apply one randomly drawn augmentation to an image.

Boxes are read from the image's sidecar (<image>.boxes.json) or from --boxes.
The augmented image is written to --out together with a sidecar holding the
transformed boxes. --overlay additionally renders the boxes onto a copy of
the result for visual inspection.

Examples:
  boxaug augment photo.png
  boxaug augment photo.png --seed 7 --out out/photo.jpg --quality 90
  boxaug augment photo.png --boxes labels.json --roi 0.1,0.1,0.5,0.5
  boxaug augment photo.png --overlay check.png --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAugment,
}

func runAugment(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	src := args[0]

	p, err := cfg.LoadPolicy()
	if err != nil {
		return err
	}

	img, meta, err := imageio.LoadImage(src)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}
	ann, err := loadAugmentAnnotations(cmd, src)
	if err != nil {
		return err
	}

	roi := ann.DefaultROI()
	if s, _ := cmd.Flags().GetString("roi"); s != "" {
		b, err := parseROIFlag(s)
		if err != nil {
			return err
		}
		roi = &b
	}

	outPath, format, err := augmentOutput(cmd, src, cfg.Output.Format)
	if err != nil {
		return err
	}
	quality := cfg.Output.Quality
	if cmd.Flags().Changed("quality") {
		quality, _ = cmd.Flags().GetInt("quality")
	}
	clamp := cfg.Output.ClampBoxes
	if cmd.Flags().Changed("clamp-boxes") {
		clamp, _ = cmd.Flags().GetBool("clamp-boxes")
	}

	slog.Debug("Augmenting image", "source", src, "width", meta.Width, "height", meta.Height,
		"boxes", len(ann.Boxes), "seed", cfg.Seed)

	rng := rand.New(rand.NewPCG(cfg.Seed, 0))
	out, req, err := policy.NewAugmentor(p).Augment(rng, transform.NewSample(img, ann.Boxes), roi)
	if err != nil {
		return fmt.Errorf("augmentation failed: %w", err)
	}

	boxes := out.Boxes
	if clamp && boxes != nil {
		boxes = clampBoxes(boxes)
	}

	if err := imageio.Save(out.Image, outPath, format, quality); err != nil {
		return fmt.Errorf("failed to save output: %w", err)
	}
	size := out.Size()
	summary := augmentSummary{
		Source: src,
		Output: outPath,
		Seed:   cfg.Seed,
		Width:  size.X,
		Height: size.Y,
		Steps:  augment.StepNames(req),
	}
	if boxes != nil {
		summary.Sidecar = imageio.SidecarPath(outPath)
		if err := imageio.SaveAnnotations(summary.Sidecar, imageio.Annotations{Boxes: boxes}); err != nil {
			return err
		}
		summary.Boxes = make([][]float64, len(boxes))
		for i, b := range boxes {
			summary.Boxes[i] = b.Slice()
		}
	}

	if ovPath, _ := cmd.Flags().GetString("overlay"); ovPath != "" {
		style, err := overlay.StyleFromHex(cfg.Output.OverlayBoxColor, cfg.Output.OverlayCornerColor)
		if err != nil {
			return err
		}
		if err := imageio.Save(overlay.Render(out.Image, boxes, style), ovPath, "", quality); err != nil {
			return fmt.Errorf("failed to save overlay: %w", err)
		}
		summary.Overlay = ovPath
	}

	slog.Info("Augmented image", "source", src, "output", outPath, "steps", summary.Steps)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%dx%d, %d boxes, steps: %s)\n",
		src, outPath, size.X, size.Y, len(boxes), strings.Join(summary.Steps, ", "))
	return nil
}

// loadAugmentAnnotations prefers --boxes and falls back to the sidecar. An
// image without either is augmented without boxes.
func loadAugmentAnnotations(cmd *cobra.Command, src string) (imageio.Annotations, error) {
	if path, _ := cmd.Flags().GetString("boxes"); path != "" {
		return imageio.LoadAnnotations(path)
	}
	ann, found, err := imageio.LoadSidecar(src)
	if err != nil {
		return imageio.Annotations{}, err
	}
	if !found {
		slog.Debug("No sidecar found, augmenting without boxes", "image", src)
	}
	return ann, nil
}

// augmentOutput resolves the output path and format. The format comes from
// --format, then the --out extension, then the configured default.
func augmentOutput(cmd *cobra.Command, src, defaultFormat string) (string, string, error) {
	outPath, _ := cmd.Flags().GetString("out")
	format := defaultFormat
	if outPath != "" {
		if f, ok := imageio.FormatFromPath(outPath); ok {
			format = f
		}
	}
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	format = strings.ToLower(format)
	if !slices.Contains(imageio.OutputFormats(), format) {
		return "", "", fmt.Errorf("unsupported output format: %s (must be one of: %s)",
			format, strings.Join(imageio.OutputFormats(), ", "))
	}

	if outPath == "" {
		base := filepath.Base(src)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		outPath = filepath.Join(filepath.Dir(src), stem+"_aug"+imageio.Extension(format))
	}
	return outPath, format, nil
}

// parseROIFlag parses "x,y,w,h" in normalized coordinates.
func parseROIFlag(s string) (geometry.Box, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return geometry.Box{}, errors.New("invalid --roi: expected x,y,w,h")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geometry.Box{}, fmt.Errorf("invalid --roi value %q: %w", p, err)
		}
		vals[i] = v
	}
	return geometry.BoxFromSlice(vals)
}

func clampBoxes(boxes []geometry.Box) []geometry.Box {
	out := make([]geometry.Box, len(boxes))
	for i, b := range boxes {
		out[i] = b.Clamp()
	}
	return out
}

func init() {
	rootCmd.AddCommand(augmentCmd)

	augmentCmd.Flags().String("boxes", "", "annotation file to use instead of the image sidecar")
	augmentCmd.Flags().String("roi", "", "crop region of interest as normalized x,y,w,h (default: sidecar roi or union of boxes)")
	augmentCmd.Flags().StringP("out", "o", "", "output image path (default: <image>_aug.<format> next to the input)")
	augmentCmd.Flags().String("overlay", "", "also write the result with boxes drawn on it to this path")
	augmentCmd.Flags().String("format", "png", "output format (png, jpeg, webp, bmp, tiff)")
	augmentCmd.Flags().Int("quality", 95, "JPEG/WebP quality (1-100)")
	augmentCmd.Flags().Bool("clamp-boxes", false, "clip output boxes to the image")
	augmentCmd.Flags().Bool("json", false, "print a JSON summary instead of a text line")
}
