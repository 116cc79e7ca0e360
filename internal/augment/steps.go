package augment

import (
	"image"
	"math/rand/v2"

	"github.com/MeKo-Tech/boxaug/internal/cropper"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/transform"
)

// Step names, in execution order.
const (
	StepIntensity    = "intensity"
	StepHSV          = "hsv"
	StepBlur         = "blur"
	StepGray         = "gray"
	StepCropBefore   = "crop"
	StepStretch      = "stretch"
	StepShear        = "shear"
	StepFlip         = "flip"
	StepRotate       = "rotate"
	StepCropDeferred = "crop_deferred"
	StepResize       = "resize"
	StepPadToSquare  = "pad_to_square"
)

// StepOrder lists every step name in execution order. Only one of the two
// crop positions runs for a given request.
var StepOrder = []string{
	StepIntensity, StepHSV, StepBlur, StepGray, StepCropBefore, StepStretch, StepShear,
	StepFlip, StepRotate, StepCropDeferred, StepResize, StepPadToSquare,
}

// Step is one enabled operation of a compiled request.
type Step struct {
	Name  string
	apply func(rng *rand.Rand, st state) state
}

// state is the value folded through the steps. roi is the pending crop ROI,
// normalized to the current image; it is nil once the crop has run.
type state struct {
	sample transform.Sample
	roi    *geometry.Box
}

// Steps compiles req into its enabled steps. Only the crop position depends on
// the request; every other step keeps its fixed place.
func (p *Pipeline) Steps(req Request) []Step {
	adj := p.adjuster()
	var steps []Step

	pixel := func(name string, fn func(image.Image) image.Image) {
		steps = append(steps, Step{Name: name, apply: func(_ *rand.Rand, st state) state {
			st.sample = transform.Sample{Image: fn(st.sample.Image), Boxes: st.sample.Boxes}
			return st
		}})
	}
	geometric := func(name string, followROI bool, fn func(transform.Sample) transform.Sample) {
		steps = append(steps, Step{Name: name, apply: func(_ *rand.Rand, st state) state {
			return st.through(fn, followROI)
		}})
	}

	if in := req.Intensity; in != nil {
		pixel(StepIntensity, func(img image.Image) image.Image {
			return adj.Intensity(img, in.Alpha, in.Beta)
		})
	}
	if hsv := req.HSV; hsv != nil {
		pixel(StepHSV, func(img image.Image) image.Image {
			return adj.HSV(img, hsv[0], hsv[1], hsv[2])
		})
	}
	if b := req.Blur; b != nil {
		pixel(StepBlur, func(img image.Image) image.Image {
			return adj.Blur(img, b.KernelSize, b.StdDev)
		})
	}
	if req.ToGray {
		pixel(StepGray, adj.Gray)
	}

	crop := req.Crop
	if crop != nil && crop.BeforeTransform {
		steps = append(steps, cropStep(StepCropBefore, crop))
	}
	follow := crop != nil && !crop.BeforeTransform && crop.FollowTransforms

	if f := req.Stretch; f != nil {
		if f.X == nil && f.Y == nil {
			p.logger().Warn("Stretch has neither x nor y factor, using defaults",
				"x", DefaultStretchFactor, "y", DefaultStretchFactor)
		}
		sx, sy := f.Factors()
		geometric(StepStretch, follow, func(s transform.Sample) transform.Sample {
			return transform.Stretch(s, sx, sy)
		})
	}
	if sh := req.Shear; sh != nil {
		geometric(StepShear, follow, func(s transform.Sample) transform.Sample {
			return transform.Shear(s, sh.X, sh.Y)
		})
	}
	if req.Flip {
		// flip moves the frame a pending ROI is expressed in
		geometric(StepFlip, true, transform.Flip)
	}
	if deg := req.Rotation; deg != nil {
		geometric(StepRotate, follow, func(s transform.Sample) transform.Sample {
			return transform.Rotate(s, *deg)
		})
	}

	if crop != nil && !crop.BeforeTransform {
		steps = append(steps, cropStep(StepCropDeferred, crop))
	}
	if target := req.Resize; target != nil {
		geometric(StepResize, false, func(s transform.Sample) transform.Sample {
			return transform.ResizeMax(s, *target)
		})
	}
	if req.PadToSquare {
		geometric(StepPadToSquare, false, transform.PadToSquare)
	}
	return steps
}

func cropStep(name string, crop *CropSpec) Step {
	return Step{Name: name, apply: func(rng *rand.Rand, st state) state {
		roi := crop.ROI
		if st.roi != nil {
			roi = *st.roi
		}
		rect := cropper.Plan(rng, st.sample.Size(), roi, crop.Range, crop.PadToSquare)
		return state{sample: transform.Crop(st.sample, rect)}
	}}
}

// through runs fn on the sample. With followROI a pending ROI is mapped
// alongside the boxes so it stays valid for the new image.
func (st state) through(fn func(transform.Sample) transform.Sample, followROI bool) state {
	if !followROI || st.roi == nil {
		st.sample = fn(st.sample)
		return st
	}

	boxes := st.sample.Boxes
	n := len(boxes)
	carried := make([]geometry.Box, n+1)
	copy(carried, boxes)
	carried[n] = *st.roi

	out := fn(transform.Sample{Image: st.sample.Image, Boxes: carried})
	roi := out.Boxes[n]
	if boxes == nil {
		out.Boxes = nil
	} else {
		out.Boxes = out.Boxes[:n:n]
	}
	return state{sample: out, roi: &roi}
}

// StepNames lists the names of the steps req compiles to.
func StepNames(req Request) []string {
	steps := NewPipeline().Steps(req)
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}
