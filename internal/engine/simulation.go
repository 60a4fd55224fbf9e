// Package engine wires the layout, initial fields, Ohm kernel, refinement
// and diagnostics into one evaluation run.
package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/yee-ohm/internal/config"
	"github.com/talgya/yee-ohm/internal/diagnostics"
	"github.com/talgya/yee-ohm/internal/grid"
	"github.com/talgya/yee-ohm/internal/initial"
	"github.com/talgya/yee-ohm/internal/ohm"
	"github.com/talgya/yee-ohm/internal/refine"
)

// Simulation holds one coarse patch, its fine refinement and the kernel
// bound to the coarse layout.
type Simulation struct {
	Layout *grid.Layout
	State  *initial.State
	Kernel *ohm.Bound

	// Fine level built from the coarse E by linear prolongation.
	Ratio      int
	FineLayout *grid.Layout
	FineE      *grid.VecField

	Stats Stats
}

// Stats records what the last run did.
type Stats struct {
	Samples     int           `json:"samples"`      // E samples written on the coarse level
	FineSamples int           `json:"fine_samples"` // E samples written on the fine level
	Elapsed     time.Duration `json:"elapsed"`
}

// NewSimulation builds the layout, initial fields and bound kernel from cfg.
func NewSimulation(cfg config.Config) (*Simulation, error) {
	gc, err := cfg.Layout.Grid()
	if err != nil {
		return nil, err
	}
	layout, err := grid.NewLayout(gc)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}

	state, err := initial.Generate(layout, cfg.Initial)
	if err != nil {
		return nil, fmt.Errorf("initial conditions: %w", err)
	}

	o, err := ohm.New(cfg.Ohm)
	if err != nil {
		return nil, err
	}
	kernel, err := o.Bind(layout)
	if err != nil {
		return nil, err
	}

	sim := &Simulation{
		Layout: layout,
		State:  state,
		Kernel: kernel,
		Ratio:  cfg.Refinement.Ratio,
	}

	if sim.Ratio > 1 {
		sim.FineLayout, err = layout.Refined(sim.Ratio)
		if err != nil {
			return nil, fmt.Errorf("fine layout: %w", err)
		}
		sim.FineE = sim.FineLayout.NewVecField("E_fine", grid.Electric)
	}
	return sim, nil
}

// EvaluateE computes E on the coarse level, then prolongs it onto the fine
// level when refinement is enabled.
func (s *Simulation) EvaluateE() error {
	start := time.Now()
	st := s.State
	if err := s.Kernel.Evaluate(st.N, st.Ve, st.Pe, st.B, st.J, st.E); err != nil {
		return fmt.Errorf("evaluate E: %w", err)
	}

	s.Stats = Stats{}
	for _, c := range grid.Components {
		s.Stats.Samples += s.Layout.PhysicalBox(grid.Electric.Component(c)).Size()
	}

	if s.FineE != nil {
		s.fillGhosts(st.E)
		for _, c := range grid.Components {
			if err := refine.Prolong(st.E.Component(c), s.Layout, s.FineE.Component(c), s.FineLayout, s.Ratio); err != nil {
				return fmt.Errorf("prolong E%s: %w", c, err)
			}
			s.Stats.FineSamples += s.FineLayout.PhysicalBox(grid.Electric.Component(c)).Size()
		}
	}

	s.Stats.Elapsed = time.Since(start)
	slog.Info("electric field evaluated",
		"dimension", s.Layout.Dimension(),
		"samples", humanize.Comma(int64(s.Stats.Samples)),
		"fine_samples", humanize.Comma(int64(s.Stats.FineSamples)),
		"elapsed", s.Stats.Elapsed,
	)
	return nil
}

// fillGhosts copies the nearest physical sample into each ghost so
// prolongation at the patch edge sees a zero-gradient extension. Ghost
// exchange between patches belongs to the caller's domain decomposition.
func (s *Simulation) fillGhosts(v *grid.VecField) {
	for _, f := range v.Comps {
		phys := s.Layout.PhysicalBox(f.Qty)
		s.Layout.GhostBox(f.Qty).Each(func(idx grid.MeshIndex) {
			src := idx
			for ax := 0; ax < 3; ax++ {
				src[ax] = min(max(src[ax], phys.Lower[ax]), phys.Upper[ax])
			}
			if src != idx {
				f.Set(idx, f.At(src))
			}
		})
	}
}

// Save writes the run attributes and E on both levels to store. It returns
// the run ID.
func (s *Simulation) Save(store *diagnostics.Store) (string, error) {
	runID, err := store.CreateRun(s.Layout)
	if err != nil {
		return "", err
	}

	attrs := map[string]float64{
		"resistivity":       s.Kernel.Resistivity(),
		"hyper_resistivity": s.Kernel.HyperResistivity(),
		"dimension":         float64(s.Layout.Dimension()),
		"refinement_ratio":  float64(s.Ratio),
	}
	if err := store.WriteAttributes(runID, attrs); err != nil {
		return "", fmt.Errorf("save attributes: %w", err)
	}
	if err := store.WriteVecField(runID, "coarse/E", s.Layout, s.State.E); err != nil {
		return "", fmt.Errorf("save coarse E: %w", err)
	}
	if s.FineE != nil {
		if err := store.WriteVecField(runID, "fine/E", s.FineLayout, s.FineE); err != nil {
			return "", fmt.Errorf("save fine E: %w", err)
		}
	}

	slog.Info("diagnostics saved", "run", runID)
	return runID, nil
}
