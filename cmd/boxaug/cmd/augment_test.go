package cmd

import (
	"encoding/json"
	"image"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFlipPolicy writes a policy that always mirrors and does nothing else.
func writeFlipPolicy(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "flip.json")
	require.NoError(t, policy.Policy{FlipProb: 1}.Save(path))
	return path
}

func TestAugmentCommand_FlipWritesImageAndSidecar(t *testing.T) {
	dir := t.TempDir()
	fx := testutil.WriteFixture(t, dir, "photo", 100, 100, []image.Rectangle{image.Rect(20, 30, 30, 40)}, nil)
	out := filepath.Join(dir, "out", "photo_flip.png")

	output, err := executeCommand(t, "augment", fx.ImagePath,
		"--policy", writeFlipPolicy(t, dir), "--out", out, "--json")
	require.NoError(t, err)

	var summary augmentSummary
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Equal(t, out, summary.Output)
	assert.Equal(t, []string{"flip"}, summary.Steps)
	assert.Equal(t, 100, summary.Width)
	require.Len(t, summary.Boxes, 1)
	assert.InDelta(t, 0.7, summary.Boxes[0][0], 1e-9)

	assert.True(t, testutil.FileExists(out))
	boxes := testutil.ReadSidecarBoxes(t, out+".boxes.json")
	require.Len(t, boxes, 1)
	assert.InDelta(t, 0.7, boxes[0].X, 1e-9)

	img := testutil.LoadImage(t, out)
	assert.Equal(t, testutil.Red, testutil.NRGBAAt(img, 75, 35))
}

func TestAugmentCommand_DefaultOutputPath(t *testing.T) {
	dir := t.TempDir()
	fx := testutil.WriteFixture(t, dir, "photo", 40, 40, []image.Rectangle{image.Rect(5, 5, 15, 15)}, nil)

	output, err := executeCommand(t, "augment", fx.ImagePath,
		"--policy", writeFlipPolicy(t, dir), "--format", "jpeg")
	require.NoError(t, err)

	want := filepath.Join(dir, "photo_aug.jpg")
	assert.Contains(t, output, want)
	assert.True(t, testutil.FileExists(want))
}

func TestAugmentCommand_Overlay(t *testing.T) {
	dir := t.TempDir()
	fx := testutil.WriteFixture(t, dir, "photo", 60, 60, []image.Rectangle{image.Rect(10, 10, 30, 30)}, nil)
	ov := filepath.Join(dir, "overlay.png")

	_, err := executeCommand(t, "augment", fx.ImagePath,
		"--policy", writeFlipPolicy(t, dir), "--out", filepath.Join(dir, "o.png"), "--overlay", ov)
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(ov))
}

func TestAugmentCommand_WithoutBoxes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "plain.png")
	testutil.SaveImage(t, testutil.CreateGradientImage(30, 20), src)
	out := filepath.Join(dir, "plain_out.png")

	output, err := executeCommand(t, "augment", src, "--policy", writeFlipPolicy(t, dir), "--out", out, "--json")
	require.NoError(t, err)

	var summary augmentSummary
	require.NoError(t, json.Unmarshal([]byte(output), &summary))
	assert.Nil(t, summary.Boxes)
	assert.Empty(t, summary.Sidecar)
	assert.False(t, testutil.FileExists(out+".boxes.json"))
}

func TestAugmentCommand_SeedIsReproducible(t *testing.T) {
	dir := t.TempDir()
	fx := testutil.WriteFixture(t, dir, "photo", 80, 60,
		[]image.Rectangle{image.Rect(10, 10, 30, 30), image.Rect(40, 20, 70, 50)}, nil)

	run := func(name string) augmentSummary {
		output, err := executeCommand(t, "augment", fx.ImagePath, "--seed", "1234",
			"--out", filepath.Join(dir, name), "--json")
		require.NoError(t, err)
		var s augmentSummary
		require.NoError(t, json.Unmarshal([]byte(output), &s))
		return s
	}

	a, b := run("a.png"), run("b.png")
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, a.Boxes, b.Boxes)
	assert.Equal(t, a.Width, b.Width)
	assert.True(t, testutil.CompareImages(
		testutil.LoadImage(t, filepath.Join(dir, "a.png")),
		testutil.LoadImage(t, filepath.Join(dir, "b.png")), 0))
}

func TestAugmentCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	fx := testutil.WriteFixture(t, dir, "photo", 20, 20, nil, nil)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing image", []string{"augment", filepath.Join(dir, "nope.png")}, "failed to load image"},
		{"bad roi", []string{"augment", fx.ImagePath, "--roi", "0.1,0.2"}, "invalid --roi"},
		{"bad format", []string{"augment", fx.ImagePath, "--format", "gif"}, "unsupported output format"},
		{"missing policy", []string{"augment", fx.ImagePath, "--policy", filepath.Join(dir, "p.yaml")}, "failed to load policy"},
		{"no args", []string{"augment"}, "accepts 1 arg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseROIFlag(t *testing.T) {
	b, err := parseROIFlag("0.1, 0.2,0.3,0.4")
	require.NoError(t, err)
	assert.Equal(t, geometry.NewBox(0.1, 0.2, 0.3, 0.4), b)

	_, err = parseROIFlag("a,b,c,d")
	require.Error(t, err)
}

func TestClampBoxes(t *testing.T) {
	got := clampBoxes([]geometry.Box{geometry.NewBox(-0.1, 0.5, 0.3, 0.1)})
	assert.InDelta(t, 0, got[0].X, 1e-9)
	assert.InDelta(t, 0.2, got[0].W, 1e-9)
}
