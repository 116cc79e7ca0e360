package policy

import (
	"math/rand/v2"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
)

// Draw materializes one request. Every field gets its own probability gate
// and its own parameter draws, always in the same order, so a seeded rng
// reproduces the request. roi enables the crop; nil means no crop.
func (p Policy) Draw(rng *rand.Rand, roi *geometry.Box) augment.Request {
	var req augment.Request

	if prob(rng, p.IntensityProb) {
		req.Intensity = &augment.Intensity{
			Alpha: uniform(rng, p.IntensityAlphaRange),
			Beta:  uniform(rng, p.IntensityBetaRange),
		}
	}
	if prob(rng, p.HSVProb) && len(p.HSVRanges) == 3 {
		req.HSV = make([]float64, 3)
		for i, r := range p.HSVRanges {
			req.HSV[i] = r.Uniform(rng)
		}
	}
	if prob(rng, p.BlurProb) {
		blur := &augment.Blur{StdDev: uniform(rng, p.BlurStdDevRange)}
		if len(p.BlurKernelSizeOpts) > 0 {
			k := p.BlurKernelSizeOpts[rng.IntN(len(p.BlurKernelSizeOpts))]
			blur.KernelSize = &k
		}
		req.Blur = blur
	}
	req.ToGray = prob(rng, p.GrayProb)

	if p.Crop != nil && roi != nil && prob(rng, p.Crop.Prob) {
		req.Crop = &augment.CropSpec{
			ROI:              *roi,
			Range:            p.Crop.Range,
			BeforeTransform:  p.Crop.ApplyBeforeTransform,
			PadToSquare:      p.Crop.PadToSquare,
			FollowTransforms: p.Crop.FollowTransforms,
		}
	}
	if prob(rng, p.StretchProb) && len(p.StretchRanges) == 2 {
		req.Stretch = p.drawStretch(rng)
	}
	if prob(rng, p.ShearProb) && len(p.ShearRanges) == 2 {
		req.Shear = &augment.Shear{
			X: p.ShearRanges[0].Uniform(rng),
			Y: p.ShearRanges[1].Uniform(rng),
		}
	}
	req.Flip = prob(rng, p.FlipProb)
	if prob(rng, p.RotationProb) {
		req.Rotation = uniform(rng, p.RotationAngleRange)
	}

	if p.Resize != nil {
		target := *p.Resize
		req.Resize = &target
	}
	req.PadToSquare = p.PadToSquare
	return req
}

func (p Policy) drawStretch(rng *rand.Rand) *augment.Stretch {
	sx := p.StretchRanges[0].Uniform(rng)
	sy := p.StretchRanges[1].Uniform(rng)

	mode := p.StretchMode
	if mode == "" || mode == StretchEither {
		mode = StretchX
		if rng.IntN(2) == 1 {
			mode = StretchY
		}
	}
	switch mode {
	case StretchX:
		return &augment.Stretch{X: &sx}
	case StretchY:
		return &augment.Stretch{Y: &sy}
	default:
		return &augment.Stretch{X: &sx, Y: &sy}
	}
}

// prob is a Bernoulli gate. It always consumes one draw so later fields see
// the same random stream regardless of earlier outcomes.
func prob(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

func uniform(rng *rand.Rand, r *Range) *float64 {
	if r == nil {
		return nil
	}
	v := r.Uniform(rng)
	return &v
}
