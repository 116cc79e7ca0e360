// Package augment runs the augmentation pipeline: it compiles a Request into
// an ordered list of steps and folds an image with its boxes through them.
package augment

import (
	"github.com/MeKo-Tech/boxaug/internal/geometry"
)

// Intensity scales and shifts every color channel: clip(alpha*v + beta).
type Intensity struct {
	Alpha *float64 `json:"alpha,omitempty"`
	Beta  *float64 `json:"beta,omitempty"`
}

// Blur is a Gaussian blur. Either field may be omitted.
type Blur struct {
	KernelSize *int     `json:"kernel_size,omitempty"`
	StdDev     *float64 `json:"std_dev,omitempty"`
}

// CropSpec describes a random crop around a region of interest.
type CropSpec struct {
	// ROI must stay fully visible after the crop. It is normalized to the
	// input image.
	ROI geometry.Box `json:"roi"`
	// Range is the edge slack in [0,1]: 0 crops tightly to the ROI, 1 lets
	// the crop edges reach the image border.
	Range float64 `json:"range"`
	// BeforeTransform crops right after the pixel adjustments instead of
	// after rotation.
	BeforeTransform bool `json:"apply_before_transform,omitempty"`
	// PadToSquare grows the sampled crop toward a square.
	PadToSquare bool `json:"pad_to_square,omitempty"`
	// FollowTransforms carries a deferred ROI through stretch, shear and
	// rotate as well as flip.
	FollowTransforms bool `json:"follow_transforms,omitempty"`
}

// Stretch holds independent axis factors. A nil axis keeps factor 1.0.
type Stretch struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

// DefaultStretchFactor is used for an axis without a factor.
const DefaultStretchFactor = 1.0

// Factors returns the x and y factors with missing axes set to 1.0.
func (s Stretch) Factors() (float64, float64) {
	x, y := DefaultStretchFactor, DefaultStretchFactor
	if s.X != nil {
		x = *s.X
	}
	if s.Y != nil {
		y = *s.Y
	}
	return x, y
}

// Shear holds the factors of x' = x + X*y, y' = Y*x + y.
type Shear struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Request holds the concrete parameters of one pipeline run. A nil or zero
// field disables its step.
type Request struct {
	Intensity *Intensity `json:"intensity,omitempty"`
	// HSV holds hue, saturation and value deltas in 8-bit HSV units.
	HSV    []float64 `json:"hsv,omitempty"`
	Blur   *Blur     `json:"blur,omitempty"`
	ToGray bool      `json:"to_gray,omitempty"`

	Crop    *CropSpec `json:"crop,omitempty"`
	Stretch *Stretch  `json:"stretch,omitempty"`
	Shear   *Shear    `json:"shear,omitempty"`
	Flip    bool      `json:"flip,omitempty"`
	// Rotation is in degrees; positive values turn clockwise.
	Rotation *float64 `json:"rotation,omitempty"`
	// Resize is the target length of the longer image side in pixels.
	Resize      *int `json:"resize,omitempty"`
	PadToSquare bool `json:"pad_to_square,omitempty"`
}

// Validate checks the shape of the request.
func (r Request) Validate() error {
	if r.HSV != nil && len(r.HSV) != 3 {
		return invalid("hsv", "must contain 3 values, got %d", len(r.HSV))
	}
	if r.Blur != nil {
		if k := r.Blur.KernelSize; k != nil && (*k < 0 || (*k > 0 && *k%2 == 0)) {
			return invalid("blur.kernel_size", "must be odd and positive (or 0), got %d", *k)
		}
		if sd := r.Blur.StdDev; sd != nil && *sd < 0 {
			return invalid("blur.std_dev", "must not be negative, got %g", *sd)
		}
	}
	if r.Crop != nil && (r.Crop.Range < 0 || r.Crop.Range > 1) {
		return invalid("crop.range", "must be in [0,1], got %g", r.Crop.Range)
	}
	if r.Stretch != nil {
		if x, y := r.Stretch.Factors(); x <= 0 || y <= 0 {
			return invalid("stretch", "factors must be positive, got (%g, %g)", x, y)
		}
	}
	if r.Resize != nil && *r.Resize <= 0 {
		return invalid("resize", "must be positive, got %d", *r.Resize)
	}
	return nil
}
