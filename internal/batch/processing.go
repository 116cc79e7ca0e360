package batch

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/imageio"
	"github.com/MeKo-Tech/boxaug/internal/overlay"
	"github.com/MeKo-Tech/boxaug/internal/transform"
)

// Augmenter produces one augmented variant of a sample.
// *policy.Augmentor satisfies it.
type Augmenter interface {
	Augment(rng *rand.Rand, s transform.Sample, roi *geometry.Box) (transform.Sample, augment.Request, error)
}

// loadSample loads an image and its optional annotation sidecar.
func loadSample(path string) (transform.Sample, imageio.Annotations, error) {
	img, _, err := imageio.LoadImage(path)
	if err != nil {
		return transform.Sample{}, imageio.Annotations{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	ann, ok, err := imageio.LoadSidecar(path)
	if err != nil {
		return transform.Sample{}, imageio.Annotations{}, err
	}
	if !ok {
		slog.Debug("No annotation sidecar, augmenting pixels only", "file", path)
		return transform.NewSample(img, nil), ann, nil
	}
	return transform.NewSample(img, ann.Boxes), ann, nil
}

// outputFormat resolves the configured format, falling back to the format of
// the source file.
func outputFormat(cfg *Config, source string) string {
	if cfg.Format != "" {
		return cfg.Format
	}
	if f, ok := imageio.FormatFromPath(source); ok {
		return f
	}
	return "png"
}

// variantPath names variant v of source as <stem>_<v><ext> inside dir.
func variantPath(dir, source string, v int, ext string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, v, ext))
}

// processImage generates cfg.Variants variants of the image at jobs index
// idx. Variant v draws from PCG stream idx*Variants+v.
func processImage(aug Augmenter, cfg *Config, idx int, path string) ([]Variant, error) {
	sample, ann, err := loadSample(path)
	if err != nil {
		return nil, err
	}
	roi := ann.DefaultROI()
	format := outputFormat(cfg, path)
	ext := imageio.Extension(format)

	variants := make([]Variant, 0, cfg.Variants)
	for v := range cfg.Variants {
		stream := uint64(idx*cfg.Variants + v) //nolint:gosec // G115: indices are non-negative
		rng := rand.New(rand.NewPCG(cfg.Seed, stream))

		out, req, err := aug.Augment(rng, sample, roi)
		if err != nil {
			return nil, fmt.Errorf("variant %d of %s: %w", v, path, err)
		}

		boxes := out.Boxes
		if cfg.ClampBoxes && boxes != nil {
			clamped := make([]geometry.Box, len(boxes))
			for i, b := range boxes {
				clamped[i] = b.Clamp()
			}
			boxes = clamped
		}

		size := out.Size()
		variant := Variant{
			Index:  v,
			Seed:   cfg.Seed,
			Stream: stream,
			Path:   variantPath(cfg.OutputDir, path, v, ext),
			Width:  size.X,
			Height: size.Y,
			Boxes:  boxes,
			Steps:  augment.StepNames(req),
		}

		if err := imageio.Save(out.Image, variant.Path, format, cfg.Quality); err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", variant.Path, err)
		}
		if boxes != nil {
			variant.SidecarPath = imageio.SidecarPath(variant.Path)
			if err := imageio.SaveAnnotations(variant.SidecarPath, imageio.Annotations{Boxes: boxes}); err != nil {
				return nil, err
			}
		}
		if cfg.OverlayDir != "" && boxes != nil {
			variant.OverlayPath = variantPath(cfg.OverlayDir, path, v, "_overlay.png")
			ov := overlay.Render(out.Image, boxes, cfg.Overlay)
			if err := imageio.Save(ov, variant.OverlayPath, "png", 0); err != nil {
				return nil, fmt.Errorf("failed to save overlay %s: %w", variant.OverlayPath, err)
			}
		}

		slog.Debug("Generated variant", "source", path, "variant", v, "output", variant.Path,
			"width", size.X, "height", size.Y, "boxes", len(boxes))
		variants = append(variants, variant)
	}
	return variants, nil
}
