package policy

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/testutil"
	"github.com/MeKo-Tech/boxaug/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func intPtr(v int) *int { return &v }

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Policy)
		ok     bool
	}{
		{"default", func(*Policy) {}, true},
		{"zero value", func(p *Policy) { *p = Policy{} }, true},
		{"probability above one", func(p *Policy) { p.FlipProb = 1.2 }, false},
		{"negative probability", func(p *Policy) { p.GrayProb = -0.1 }, false},
		{"reversed range", func(p *Policy) { p.RotationAngleRange = &Range{10, -10} }, false},
		{"one shear range", func(p *Policy) { p.ShearRanges = []Range{{0, 1}} }, false},
		{"two hsv ranges", func(p *Policy) { p.HSVRanges = []Range{{0, 1}, {0, 1}} }, false},
		{"even kernel", func(p *Policy) { p.BlurKernelSizeOpts = []int{3, 4} }, false},
		{"unknown stretch mode", func(p *Policy) { p.StretchMode = "diagonal" }, false},
		{"non-positive stretch", func(p *Policy) { p.StretchRanges = []Range{{0, 1}, {1, 2}} }, false},
		{"crop range", func(p *Policy) { p.Crop.Range = 2 }, false},
		{"crop prob", func(p *Policy) { p.Crop.Prob = 2 }, false},
		{"zero resize", func(p *Policy) { p.Resize = intPtr(0) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.modify(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidPolicy)
			}
		})
	}
}

func TestDraw_ZeroPolicyIsEmpty(t *testing.T) {
	roi := geometry.NewBox(0, 0, 1, 1)
	req := Policy{}.Draw(newRand(1), &roi)

	assert.Nil(t, req.Intensity)
	assert.Nil(t, req.HSV)
	assert.Nil(t, req.Blur)
	assert.False(t, req.ToGray)
	assert.Nil(t, req.Crop)
	assert.Nil(t, req.Stretch)
	assert.Nil(t, req.Shear)
	assert.False(t, req.Flip)
	assert.Nil(t, req.Rotation)
}

func TestDraw_CertainPolicyFillsEveryField(t *testing.T) {
	p := Default()
	p.FlipProb, p.RotationProb, p.ShearProb, p.StretchProb = 1, 1, 1, 1
	p.IntensityProb, p.HSVProb, p.BlurProb, p.GrayProb = 1, 1, 1, 1
	p.Resize = intPtr(256)
	p.PadToSquare = true
	roi := geometry.NewBox(0.1, 0.2, 0.3, 0.4)

	req := p.Draw(newRand(3), &roi)

	require.NoError(t, req.Validate())
	require.NotNil(t, req.Intensity)
	assert.InDelta(t, 1.0, *req.Intensity.Alpha, 0.5)
	assert.InDelta(t, 0.0, *req.Intensity.Beta, 20)
	require.Len(t, req.HSV, 3)
	assert.InDelta(t, 0, req.HSV[0], 5)
	require.NotNil(t, req.Blur)
	assert.Contains(t, p.BlurKernelSizeOpts, *req.Blur.KernelSize)
	assert.True(t, req.ToGray)
	require.NotNil(t, req.Crop)
	assert.Equal(t, roi, req.Crop.ROI)
	assert.Equal(t, 0.5, req.Crop.Range)
	require.NotNil(t, req.Stretch)
	require.NotNil(t, req.Shear)
	assert.InDelta(t, 0.1, req.Shear.X, 0.1)
	assert.True(t, req.Flip)
	require.NotNil(t, req.Rotation)
	assert.InDelta(t, 0, *req.Rotation, 15)
	assert.Equal(t, 256, *req.Resize)
	assert.True(t, req.PadToSquare)
}

func TestDraw_NilRangeLeavesParameterOut(t *testing.T) {
	p := Policy{IntensityProb: 1, IntensityAlphaRange: &Range{2, 2}, RotationProb: 1}

	req := p.Draw(newRand(4), nil)

	require.NotNil(t, req.Intensity)
	assert.Equal(t, 2.0, *req.Intensity.Alpha)
	assert.Nil(t, req.Intensity.Beta)
	assert.Nil(t, req.Rotation)
}

func TestDraw_NoROIMeansNoCrop(t *testing.T) {
	p := Default()
	p.Crop.Prob = 1
	assert.Nil(t, p.Draw(newRand(5), nil).Crop)
}

func TestDraw_StretchModes(t *testing.T) {
	base := Policy{StretchProb: 1, StretchRanges: []Range{{2, 2}, {3, 3}}}

	tests := []struct {
		mode string
		want [][2]float64
	}{
		{StretchX, [][2]float64{{2, 1}}},
		{StretchY, [][2]float64{{1, 3}}},
		{StretchBoth, [][2]float64{{2, 3}}},
		{StretchEither, [][2]float64{{2, 1}, {1, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			p := base
			p.StretchMode = tt.mode
			rng := newRand(6)
			seen := map[[2]float64]bool{}
			for range 50 {
				s := p.Draw(rng, nil).Stretch
				require.NotNil(t, s)
				x, y := s.Factors()
				got := [2]float64{x, y}
				assert.Contains(t, tt.want, got)
				seen[got] = true
			}
			assert.Len(t, seen, len(tt.want))
		})
	}
}

func TestDraw_ProbabilityIsRespected(t *testing.T) {
	p := Policy{FlipProb: 0.25}
	rng := newRand(7)
	flips := 0
	const n = 4000
	for range n {
		if p.Draw(rng, nil).Flip {
			flips++
		}
	}
	assert.InDelta(t, 0.25, float64(flips)/n, 0.03)
}

func TestDraw_IsReproducible(t *testing.T) {
	p := Default()
	roi := geometry.NewBox(0.2, 0.2, 0.5, 0.5)
	assert.Equal(t, p.Draw(newRand(99), &roi), p.Draw(newRand(99), &roi))
}

func TestSaveLoad_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	p := Default()
	p.Resize = intPtr(320)
	p.StretchMode = StretchBoth

	for _, name := range []string{"policy.json", "policy.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, p.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, p, loaded)
		})
	}
}

func TestSaveLoad_SparsePolicy(t *testing.T) {
	dir := t.TempDir()
	p := Policy{FlipProb: 1}
	require.NoError(t, p.Validate())

	for _, name := range []string{"sparse.json", "sparse.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, p.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, p, loaded)
		})
	}
}

func TestFromYAML_EmptyRangeListsAreAbsent(t *testing.T) {
	p, err := FromYAML([]byte("flip_prob: 1\nshear_ranges: []\nstretch_ranges: []\nhsv_ranges: []\n"))
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	req := p.Draw(newRand(1), nil)
	assert.True(t, req.Flip)
	assert.Nil(t, req.Shear)
	assert.Nil(t, req.Stretch)
	assert.Nil(t, req.HSV)
}

func TestFromJSON_OriginalKeys(t *testing.T) {
	data := []byte(`{
		"flip_prob": 0.5,
		"rotation_prob": 1,
		"rotation_angle_range": [-10, 10],
		"hsv_prob": 0.2,
		"hsv_ranges": [[-5, 5], [-15, 15], [-20, 20]],
		"blur_kernel_size_opts": [3, 5]
	}`)

	p, err := FromJSON(data)

	require.NoError(t, err)
	require.NoError(t, p.Validate())
	assert.Equal(t, 0.5, p.FlipProb)
	assert.Equal(t, &Range{-10, 10}, p.RotationAngleRange)
	assert.Equal(t, Range{-15, 15}, p.HSVRanges[1])
	assert.Equal(t, []int{3, 5}, p.BlurKernelSizeOpts)
	assert.Nil(t, p.Crop)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := Policy{FlipProb: 3}
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, bad.Save(path))
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestAugmentor_Augment(t *testing.T) {
	p := Default()
	p.Resize = intPtr(64)
	a := NewAugmentor(p)
	img := testutil.CreateGradientImage(120, 80)
	boxes := []geometry.Box{geometry.NewBox(0.25, 0.25, 0.25, 0.25)}
	roi, _ := geometry.Union(boxes)

	out, req, err := a.Augment(newRand(8), transform.NewSample(img, boxes), &roi)

	require.NoError(t, err)
	assert.Len(t, out.Boxes, 1)
	assert.Equal(t, 64, max(out.Size().X, out.Size().Y))
	assert.NotNil(t, req.Resize)
}
