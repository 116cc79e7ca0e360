package benchmark

import (
	"cmp"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/MeKo-Tech/boxaug/internal/augment"
	"github.com/MeKo-Tech/boxaug/internal/geometry"
	"github.com/MeKo-Tech/boxaug/internal/policy"
	"github.com/MeKo-Tech/boxaug/internal/transform"
)

// StepStat aggregates the timings of one pipeline step.
type StepStat struct {
	Name  string        `json:"name"`
	Count int           `json:"count"`
	Total time.Duration `json:"total_ns"`
	Min   time.Duration `json:"min_ns"`
	Max   time.Duration `json:"max_ns"`
}

// Mean returns the average time per application.
func (s StepStat) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

func (s *StepStat) add(d time.Duration) {
	if s.Count == 0 || d < s.Min {
		s.Min = d
	}
	if d > s.Max {
		s.Max = d
	}
	s.Count++
	s.Total += d
}

// Profile is the per-step breakdown of repeated augmentations.
type Profile struct {
	Iterations int           `json:"iterations"`
	Total      time.Duration `json:"total_ns"`
	Steps      []StepStat    `json:"steps"`
}

// PerIteration returns the mean wall time of one augmentation.
func (p *Profile) PerIteration() time.Duration {
	if p.Iterations == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Iterations)
}

// ProfileAugmentation augments s iterations times with p, drawing iteration i
// from PCG stream i of seed, and records how long every applied step took.
// Steps are reported in execution order.
func ProfileAugmentation(s transform.Sample, roi *geometry.Box, p policy.Policy, seed uint64, iterations int) (*Profile, error) {
	if iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", iterations)
	}

	stats := map[string]*StepStat{}
	aug := &policy.Augmentor{
		Policy: p,
		Pipeline: &augment.Pipeline{
			Adjuster: augment.PixelAdjuster{},
			OnStep: func(step string, d time.Duration) {
				st, ok := stats[step]
				if !ok {
					st = &StepStat{Name: step}
					stats[step] = st
				}
				st.add(d)
			},
		},
	}

	timer := NewTimer("augment")
	for i := range iterations {
		rng := rand.New(rand.NewPCG(seed, uint64(i))) //nolint:gosec // G115: i is non-negative
		if _, _, err := aug.Augment(rng, s, roi); err != nil {
			return nil, fmt.Errorf("iteration %d: %w", i, err)
		}
	}

	profile := &Profile{Iterations: iterations, Total: timer.Stop()}
	for _, name := range augment.StepOrder {
		if st, ok := stats[name]; ok {
			profile.Steps = append(profile.Steps, *st)
		}
	}
	return profile, nil
}

// Write prints the profile as a table.
func (p *Profile) Write(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "STEP\tCOUNT\tSHARE\tMEAN\tMIN\tMAX\n")
	for _, st := range p.Steps {
		share := 0.0
		if p.Iterations > 0 {
			share = float64(st.Count) / float64(p.Iterations) * 100
		}
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%v\t%v\t%v\n", st.Name, st.Count, share,
			st.Mean().Round(time.Microsecond), st.Min.Round(time.Microsecond), st.Max.Round(time.Microsecond))
	}
	_, _ = fmt.Fprintf(tw, "total\t%d\t\t%v\t\t\n", p.Iterations, p.PerIteration().Round(time.Microsecond))
	return tw.Flush()
}

// Slowest returns the step with the highest total time, or false when no
// step ran.
func (p *Profile) Slowest() (StepStat, bool) {
	if len(p.Steps) == 0 {
		return StepStat{}, false
	}
	return slices.MaxFunc(p.Steps, func(a, b StepStat) int {
		return cmp.Compare(a.Total, b.Total)
	}), true
}
