// Package policy turns probabilities and parameter ranges into concrete
// augmentation requests.
package policy

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Stretch modes decide which axes a drawn stretch applies to.
const (
	StretchEither = "either" // one axis, picked at random
	StretchX      = "x"
	StretchY      = "y"
	StretchBoth   = "both"
)

// ErrInvalidPolicy is wrapped by every Validate failure.
var ErrInvalidPolicy = errors.New("invalid policy")

// Range is an interval [lo, hi] to draw uniform values from.
type Range [2]float64

// Uniform draws a value in [lo, hi).
func (r Range) Uniform(rng *rand.Rand) float64 {
	return r[0] + rng.Float64()*(r[1]-r[0])
}

// CropPolicy configures the random crop. A crop is only drawn when the caller
// supplies a region of interest.
type CropPolicy struct {
	Prob                 float64 `mapstructure:"prob" yaml:"prob" json:"prob"`
	Range                float64 `mapstructure:"range" yaml:"range" json:"range"`
	ApplyBeforeTransform bool    `mapstructure:"apply_before_transform" yaml:"apply_before_transform" json:"apply_before_transform"`
	PadToSquare          bool    `mapstructure:"pad_to_square" yaml:"pad_to_square" json:"pad_to_square"`
	FollowTransforms     bool    `mapstructure:"follow_transforms" yaml:"follow_transforms" json:"follow_transforms"`
}

// Policy holds a probability per augmentation and the ranges its parameters
// are drawn from. A nil range disables the parameter it feeds.
type Policy struct {
	FlipProb float64 `mapstructure:"flip_prob" yaml:"flip_prob" json:"flip_prob"`

	RotationProb       float64 `mapstructure:"rotation_prob" yaml:"rotation_prob" json:"rotation_prob"`
	RotationAngleRange *Range  `mapstructure:"rotation_angle_range" yaml:"rotation_angle_range" json:"rotation_angle_range"`

	ShearProb   float64 `mapstructure:"shear_prob" yaml:"shear_prob" json:"shear_prob"`
	ShearRanges []Range `mapstructure:"shear_ranges" yaml:"shear_ranges,omitempty" json:"shear_ranges"`

	StretchProb   float64 `mapstructure:"stretch_prob" yaml:"stretch_prob" json:"stretch_prob"`
	StretchRanges []Range `mapstructure:"stretch_ranges" yaml:"stretch_ranges,omitempty" json:"stretch_ranges"`
	StretchMode   string  `mapstructure:"stretch_mode" yaml:"stretch_mode" json:"stretch_mode"`

	IntensityProb       float64 `mapstructure:"intensity_prob" yaml:"intensity_prob" json:"intensity_prob"`
	IntensityAlphaRange *Range  `mapstructure:"intensity_alpha_range" yaml:"intensity_alpha_range" json:"intensity_alpha_range"`
	IntensityBetaRange  *Range  `mapstructure:"intensity_beta_range" yaml:"intensity_beta_range" json:"intensity_beta_range"`

	HSVProb   float64 `mapstructure:"hsv_prob" yaml:"hsv_prob" json:"hsv_prob"`
	HSVRanges []Range `mapstructure:"hsv_ranges" yaml:"hsv_ranges,omitempty" json:"hsv_ranges"`

	BlurProb           float64 `mapstructure:"blur_prob" yaml:"blur_prob" json:"blur_prob"`
	BlurKernelSizeOpts []int   `mapstructure:"blur_kernel_size_opts" yaml:"blur_kernel_size_opts,omitempty" json:"blur_kernel_size_opts"`
	BlurStdDevRange    *Range  `mapstructure:"blur_std_dev_range" yaml:"blur_std_dev_range" json:"blur_std_dev_range"`

	GrayProb float64 `mapstructure:"gray_prob" yaml:"gray_prob" json:"gray_prob"`

	Crop        *CropPolicy `mapstructure:"crop" yaml:"crop,omitempty" json:"crop,omitempty"`
	Resize      *int        `mapstructure:"resize" yaml:"resize,omitempty" json:"resize,omitempty"`
	PadToSquare bool        `mapstructure:"pad_to_square" yaml:"pad_to_square" json:"pad_to_square"`
}

// Default returns a moderate policy suitable for detection training data.
func Default() Policy {
	return Policy{
		FlipProb:            0.5,
		RotationProb:        0.5,
		RotationAngleRange:  &Range{-15, 15},
		ShearProb:           0.3,
		ShearRanges:         []Range{{0, 0.2}, {0, 0.2}},
		StretchProb:         0.3,
		StretchRanges:       []Range{{1.0, 1.4}, {1.0, 1.4}},
		StretchMode:         StretchEither,
		IntensityProb:       0.5,
		IntensityAlphaRange: &Range{0.5, 1.5},
		IntensityBetaRange:  &Range{-20, 20},
		HSVProb:             0.5,
		HSVRanges:           []Range{{-5, 5}, {-15, 15}, {-20, 20}},
		BlurProb:            0.5,
		BlurKernelSizeOpts:  []int{0, 3, 5, 7, 11},
		BlurStdDevRange:     &Range{0.5, 1.5},
		GrayProb:            0.1,
		Crop: &CropPolicy{
			Prob:  1,
			Range: 0.5,
		},
	}
}

// Validate checks probabilities, range ordering and range counts.
func (p Policy) Validate() error {
	probs := map[string]float64{
		"flip_prob":      p.FlipProb,
		"rotation_prob":  p.RotationProb,
		"shear_prob":     p.ShearProb,
		"stretch_prob":   p.StretchProb,
		"intensity_prob": p.IntensityProb,
		"hsv_prob":       p.HSVProb,
		"blur_prob":      p.BlurProb,
		"gray_prob":      p.GrayProb,
	}
	if p.Crop != nil {
		probs["crop.prob"] = p.Crop.Prob
	}
	for name, v := range probs {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %g", ErrInvalidPolicy, name, v)
		}
	}

	ranges := map[string]*Range{
		"rotation_angle_range":  p.RotationAngleRange,
		"intensity_alpha_range": p.IntensityAlphaRange,
		"intensity_beta_range":  p.IntensityBetaRange,
		"blur_std_dev_range":    p.BlurStdDevRange,
	}
	for name, r := range ranges {
		if err := checkRange(name, r); err != nil {
			return err
		}
	}
	if err := checkRanges("shear_ranges", p.ShearRanges, 2); err != nil {
		return err
	}
	if err := checkRanges("stretch_ranges", p.StretchRanges, 2); err != nil {
		return err
	}
	if err := checkRanges("hsv_ranges", p.HSVRanges, 3); err != nil {
		return err
	}

	for _, r := range p.StretchRanges {
		if r[0] <= 0 {
			return fmt.Errorf("%w: stretch_ranges must be positive, got %v", ErrInvalidPolicy, r)
		}
	}
	switch p.StretchMode {
	case "", StretchEither, StretchX, StretchY, StretchBoth:
	default:
		return fmt.Errorf("%w: unknown stretch_mode %q", ErrInvalidPolicy, p.StretchMode)
	}

	for _, k := range p.BlurKernelSizeOpts {
		if k < 0 || (k > 0 && k%2 == 0) {
			return fmt.Errorf("%w: blur kernel sizes must be odd or 0, got %d", ErrInvalidPolicy, k)
		}
	}
	if p.BlurStdDevRange != nil && p.BlurStdDevRange[0] < 0 {
		return fmt.Errorf("%w: blur_std_dev_range must not be negative", ErrInvalidPolicy)
	}

	if p.Crop != nil && (p.Crop.Range < 0 || p.Crop.Range > 1) {
		return fmt.Errorf("%w: crop.range must be in [0,1], got %g", ErrInvalidPolicy, p.Crop.Range)
	}
	if p.Resize != nil && *p.Resize <= 0 {
		return fmt.Errorf("%w: resize must be positive, got %d", ErrInvalidPolicy, *p.Resize)
	}
	return nil
}

func checkRange(name string, r *Range) error {
	if r != nil && r[0] > r[1] {
		return fmt.Errorf("%w: %s lower bound %g exceeds upper bound %g", ErrInvalidPolicy, name, r[0], r[1])
	}
	return nil
}

func checkRanges(name string, rs []Range, n int) error {
	if len(rs) == 0 {
		return nil
	}
	if len(rs) != n {
		return fmt.Errorf("%w: %s must contain %d ranges, got %d", ErrInvalidPolicy, name, n, len(rs))
	}
	for i := range rs {
		if err := checkRange(fmt.Sprintf("%s[%d]", name, i), &rs[i]); err != nil {
			return err
		}
	}
	return nil
}
