package imageio

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/boxaug/internal/geometry"
)

// SidecarSuffix is appended to an image path to locate its annotations.
const SidecarSuffix = ".boxes.json"

// Annotations are the boxes of one image and an optional crop ROI, all
// normalized to that image.
type Annotations struct {
	Boxes []geometry.Box
	ROI   *geometry.Box
}

type annotationsFile struct {
	Boxes [][]float64 `json:"boxes"`
	ROI   []float64   `json:"roi,omitempty"`
}

// SidecarPath returns the annotation path belonging to an image.
func SidecarPath(imagePath string) string {
	return imagePath + SidecarSuffix
}

// LoadAnnotations reads an annotation file of the form
// {"boxes": [[x,y,w,h], ...], "roi": [x,y,w,h]}.
func LoadAnnotations(path string) (Annotations, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: annotation path is provided by the user
	if err != nil {
		return Annotations{}, fmt.Errorf("failed to read annotations %s: %w", path, err)
	}
	return ParseAnnotations(data)
}

// LoadSidecar loads the sidecar of imagePath. A missing sidecar yields empty
// annotations and ok=false.
func LoadSidecar(imagePath string) (Annotations, bool, error) {
	a, err := LoadAnnotations(SidecarPath(imagePath))
	if errors.Is(err, os.ErrNotExist) {
		return Annotations{}, false, nil
	}
	if err != nil {
		return Annotations{}, false, err
	}
	return a, true, nil
}

// ParseAnnotations decodes annotation JSON.
func ParseAnnotations(data []byte) (Annotations, error) {
	var raw annotationsFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return Annotations{}, fmt.Errorf("failed to parse annotations: %w", err)
	}

	a := Annotations{Boxes: make([]geometry.Box, 0, len(raw.Boxes))}
	for i, v := range raw.Boxes {
		b, err := geometry.BoxFromSlice(v)
		if err != nil {
			return Annotations{}, fmt.Errorf("box %d: %w", i, err)
		}
		a.Boxes = append(a.Boxes, b)
	}
	if raw.ROI != nil {
		roi, err := geometry.BoxFromSlice(raw.ROI)
		if err != nil {
			return Annotations{}, fmt.Errorf("roi: %w", err)
		}
		a.ROI = &roi
	}
	return a, nil
}

// MarshalAnnotations encodes annotations as indented JSON.
func MarshalAnnotations(a Annotations) ([]byte, error) {
	raw := annotationsFile{Boxes: make([][]float64, len(a.Boxes))}
	for i, b := range a.Boxes {
		raw.Boxes[i] = b.Slice()
	}
	if a.ROI != nil {
		raw.ROI = a.ROI.Slice()
	}
	return json.MarshalIndent(raw, "", "  ")
}

// SaveAnnotations writes annotations to path.
func SaveAnnotations(path string, a Annotations) error {
	data, err := MarshalAnnotations(a)
	if err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write annotations %s: %w", path, err)
	}
	return nil
}

// DefaultROI returns the explicit ROI if present, otherwise the union of all
// boxes, otherwise nil.
func (a Annotations) DefaultROI() *geometry.Box {
	if a.ROI != nil {
		return a.ROI
	}
	if u, ok := geometry.Union(a.Boxes); ok {
		return &u
	}
	return nil
}
