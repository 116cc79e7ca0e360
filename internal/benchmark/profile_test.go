package benchmark

import (
	"bytes"
	"image"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/testutil"
	"github.com/MeKo-Tech/boxaug/internal/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSample() transform.Sample {
	img := testutil.CreateMarkedImage(64, 48, image.Rect(10, 10, 30, 30), testutil.Red)
	return transform.NewSample(img, []geometry.Box{geometry.NewBox(10.0/64, 10.0/48, 20.0/64, 20.0/48)})
}

func TestProfileAugmentation_CertainSteps(t *testing.T) {
	p := policy.Policy{FlipProb: 1, GrayProb: 1}

	profile, err := ProfileAugmentation(testSample(), nil, p, 1, 4)
	require.NoError(t, err)

	assert.Equal(t, 4, profile.Iterations)
	require.Len(t, profile.Steps, 2)
	assert.Equal(t, augment.StepGray, profile.Steps[0].Name)
	assert.Equal(t, augment.StepFlip, profile.Steps[1].Name)
	for _, st := range profile.Steps {
		assert.Equal(t, 4, st.Count)
		assert.LessOrEqual(t, st.Min, st.Mean())
		assert.LessOrEqual(t, st.Mean(), st.Max)
	}
	assert.Positive(t, profile.Total)

	slowest, ok := profile.Slowest()
	require.True(t, ok)
	assert.Contains(t, []string{augment.StepGray, augment.StepFlip}, slowest.Name)
}

func TestProfileAugmentation_StepsFollowExecutionOrder(t *testing.T) {
	sample := testSample()
	roi, _ := geometry.Union(sample.Boxes)

	profile, err := ProfileAugmentation(sample, &roi, policy.Default(), 7, 20)
	require.NoError(t, err)

	var names []string
	for _, st := range profile.Steps {
		names = append(names, st.Name)
		assert.LessOrEqual(t, st.Count, 20)
	}
	var ordered []string
	for _, name := range augment.StepOrder {
		for _, n := range names {
			if n == name {
				ordered = append(ordered, n)
			}
		}
	}
	assert.Equal(t, ordered, names)
}

func TestProfileAugmentation_EmptyPolicy(t *testing.T) {
	profile, err := ProfileAugmentation(testSample(), nil, policy.Policy{}, 0, 3)
	require.NoError(t, err)
	assert.Empty(t, profile.Steps)

	_, ok := profile.Slowest()
	assert.False(t, ok)
}

func TestProfileAugmentation_InvalidIterations(t *testing.T) {
	_, err := ProfileAugmentation(testSample(), nil, policy.Default(), 0, 0)
	require.Error(t, err)
}

func TestProfile_Write(t *testing.T) {
	profile, err := ProfileAugmentation(testSample(), nil, policy.Policy{FlipProb: 1}, 0, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, profile.Write(&buf))
	out := buf.String()
	assert.Contains(t, out, "STEP")
	assert.Contains(t, out, "flip")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "total")
}
