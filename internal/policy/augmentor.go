package policy

import (
	"math/rand/v2"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/transform"
)

// Augmentor draws a request from its policy and runs it.
type Augmentor struct {
	Policy   Policy
	Pipeline *augment.Pipeline
}

// NewAugmentor creates an augmentor using the default pipeline.
func NewAugmentor(p Policy) *Augmentor {
	return &Augmentor{Policy: p, Pipeline: augment.NewPipeline()}
}

// Augment draws one request and applies it to s. The drawn request is
// returned alongside the result so callers can record what was applied.
func (a *Augmentor) Augment(rng *rand.Rand, s transform.Sample, roi *geometry.Box) (transform.Sample, augment.Request, error) {
	req := a.Policy.Draw(rng, roi)
	pipeline := a.Pipeline
	if pipeline == nil {
		pipeline = augment.NewPipeline()
	}
	out, err := pipeline.Run(rng, s, req)
	if err != nil {
		return transform.Sample{}, req, err
	}
	return out, req, nil
}
