package augment

import (
	"image"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/adjust"
	"github.com/MeKo-Tech/boxaug/internal/transform"
)

// Adjuster applies the pixel-value adjustments of a request.
type Adjuster interface {
	Intensity(img image.Image, alpha, beta *float64) image.Image
	HSV(img image.Image, dh, ds, dv float64) image.Image
	Blur(img image.Image, kernelSize *int, stdDev *float64) image.Image
	Gray(img image.Image) image.Image
}

// PixelAdjuster is the Adjuster backed by package adjust.
type PixelAdjuster struct{}

// Intensity applies clip(alpha*v + beta) via adjust.Intensity.
func (PixelAdjuster) Intensity(img image.Image, alpha, beta *float64) image.Image {
	return adjust.Intensity(img, alpha, beta)
}

// HSV shifts hue, saturation and value via adjust.HSV.
func (PixelAdjuster) HSV(img image.Image, dh, ds, dv float64) image.Image {
	return adjust.HSV(img, dh, ds, dv)
}

// Blur applies a Gaussian blur via adjust.Blur.
func (PixelAdjuster) Blur(img image.Image, kernelSize *int, stdDev *float64) image.Image {
	return adjust.Blur(img, kernelSize, stdDev)
}

// Gray converts to three-channel grayscale via adjust.Gray.
func (PixelAdjuster) Gray(img image.Image) image.Image {
	return adjust.Gray(img)
}

// Pipeline runs requests. The zero value is ready to use.
type Pipeline struct {
	Adjuster Adjuster
	Logger   *slog.Logger

	// OnStep, if set, is called after every step with its wall time.
	OnStep func(step string, d time.Duration)
}

// NewPipeline creates a pipeline with the default adjuster and logger.
func NewPipeline() *Pipeline {
	return &Pipeline{Adjuster: PixelAdjuster{}, Logger: slog.Default()}
}

// Run applies req to s using the default pipeline.
func Run(rng *rand.Rand, s transform.Sample, req Request) (transform.Sample, error) {
	return NewPipeline().Run(rng, s, req)
}

// Run validates req, compiles it into steps and folds s through them. rng is
// only consulted by the crop planner; it may be nil when req has no crop.
func (p *Pipeline) Run(rng *rand.Rand, s transform.Sample, req Request) (transform.Sample, error) {
	if err := req.Validate(); err != nil {
		return transform.Sample{}, err
	}
	if req.Crop != nil && rng == nil {
		return transform.Sample{}, invalid("crop", "a random source is required")
	}

	log := p.logger()
	steps := p.Steps(req)
	st := state{sample: s}
	if req.Crop != nil {
		roi := req.Crop.ROI
		st.roi = &roi
	}

	size := s.Size()
	log.Debug("Starting augmentation", "width", size.X, "height", size.Y, "steps", len(steps))
	for _, step := range steps {
		start := time.Now()
		st = step.apply(rng, st)
		if p.OnStep != nil {
			p.OnStep(step.Name, time.Since(start))
		}
		size = st.sample.Size()
		log.Debug("Applied augmentation step", "step", step.Name, "width", size.X, "height", size.Y)
	}
	return st.sample, nil
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) adjuster() Adjuster {
	if p.Adjuster != nil {
		return p.Adjuster
	}
	return PixelAdjuster{}
}
