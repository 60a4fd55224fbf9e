// Command ohmsim evaluates the generalized Ohm's law on a Yee patch, refines
// the result onto a finer level and stores diagnostics.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/yee-ohm/internal/config"
	"github.com/talgya/yee-ohm/internal/diagnostics"
	"github.com/talgya/yee-ohm/internal/engine"
	"github.com/talgya/yee-ohm/internal/grid"
	"github.com/talgya/yee-ohm/internal/refine"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "ohmsim",
		Short:         "Staggered-grid Ohm's law kernel and refinement weights",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	root.AddCommand(runCmd(), weightsCmd())

	if err := root.Execute(); err != nil {
		slog.Error("ohmsim failed", "error", err)
		os.Exit(1)
	}
}

func setupLogging(cfg config.Config) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Logging.SlogLevel(),
	}))
	slog.SetDefault(logger)
}

func runCmd() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate E once and save diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Diagnostics.Path = dbPath
			}
			setupLogging(cfg)

			slog.Info("ohm kernel configuration",
				"resistivity", cfg.Ohm.Resistivity,
				"hyper_resistivity", cfg.Ohm.HyperResistivity,
				"dimension", cfg.Layout.Dimension,
				"ratio", cfg.Refinement.Ratio,
			)

			sim, err := engine.NewSimulation(cfg)
			if err != nil {
				return err
			}
			if err := sim.EvaluateE(); err != nil {
				return err
			}

			if cfg.Diagnostics.Path == "" {
				slog.Warn("diagnostics path empty, results not stored")
				return nil
			}
			if dir := filepath.Dir(cfg.Diagnostics.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create diagnostics dir: %w", err)
				}
			}
			store, err := diagnostics.Open(cfg.Diagnostics.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			runID, err := sim.Save(store)
			if err != nil {
				return err
			}
			fmt.Printf("Run %s: %s E samples (%s on the fine level) in %s\n",
				runID,
				humanize.Comma(int64(sim.Stats.Samples)),
				humanize.Comma(int64(sim.Stats.FineSamples)),
				sim.Stats.Elapsed)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "diagnostics database path (overrides config)")
	return cmd
}

func weightsCmd() *cobra.Command {
	var ratio int
	var centering string
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Print the refinement offset table for a centering and ratio",
		RunE: func(cmd *cobra.Command, args []string) error {
			var cent grid.Centering
			switch strings.ToLower(centering) {
			case "primal":
				cent = grid.Primal
			case "dual":
				cent = grid.Dual
			default:
				return fmt.Errorf("unknown centering %q, want primal or dual", centering)
			}

			w, err := refine.NewPartitionWeights(cent, ratio, ratio)
			if err != nil {
				return err
			}
			fmt.Printf("%s centering, ratio %d\n", cent, ratio)
			for i := 0; i < w.Len(); i++ {
				if d, ok := w.Distance(i); ok {
					fmt.Printf("  [%d] %.6f\n", i, d)
				} else {
					fmt.Printf("  [%d] coincident\n", i)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&ratio, "ratio", "r", 2, "refinement ratio")
	cmd.Flags().StringVar(&centering, "centering", "dual", "primal or dual")
	return cmd
}
