package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/TFMV/schelling/engine"
	"github.com/TFMV/schelling/render"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation for a number of steps and optionally render the result",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger(config, cmd.ErrOrStderr())
		return runSimulation(config, logger)
	},
}

func init() {
	runCmd.Flags().IntVar(&config.Iterations, "iterations", 100, "Maximum number of steps (outer rounds with --converge)")
	runCmd.Flags().BoolVar(&config.Converge, "converge", false, "Run seek steps of 1000 attempts until no agent is unsatisfied")
	runCmd.Flags().StringVar(&config.OutputFile, "output", "", "Write the final lattice to this file")
	runCmd.Flags().StringVar(&config.Format, "format", "", "Output format: ascii, svg, png, json (defaults to the output extension)")
	runCmd.Flags().Float64Var(&config.NoiseIntensity, "noise", 0.0, "Intensity of shading noise for svg/png (0.0-1.0)")
}

func runSimulation(cfg *Configuration, logger *slog.Logger) error {
	ctx, cancel := signalContext(logger)
	defer cancel()

	eng, err := buildEngine(cfg, engine.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	if cfg.Converge {
		attempts := eng.EvolveToConvergence(cfg.Iterations)
		logReport(logger, eng, "converged", slog.Int("attempts", attempts))
	} else {
		policy, err := engine.GetPolicy(cfg.Policy, cfg.Budget)
		if err != nil {
			return err
		}
		for i := 0; i < cfg.Iterations; i++ {
			if ctx.Err() != nil {
				logger.Warn("interrupted", "iteration", i)
				break
			}
			res := policy.Step(eng)
			logReport(logger, eng, "iteration",
				slog.Int("iteration", i),
				slog.String("policy", res.Policy),
				slog.Int("moves", res.Moves),
			)
			if res.Settled {
				logger.Info("there are no unsatisfied agents", "iteration", i)
				break
			}
		}
	}

	if cfg.OutputFile == "" {
		return nil
	}
	return writeOutput(eng, cfg)
}

func logReport(logger *slog.Logger, eng *engine.Engine, msg string, attrs ...slog.Attr) {
	report := eng.Report()
	args := make([]any, 0, len(attrs)+6)
	for _, a := range attrs {
		args = append(args, a)
	}
	args = append(args,
		slog.Int("positive", report.Counts.Positive),
		slog.Int("negative", report.Counts.Negative),
		slog.Int("free", report.Counts.Empty),
		slog.Int("unsatisfied", report.Unsatisfied),
		slog.Int("surface", report.Surface),
	)
	if report.Populated {
		args = append(args, slog.Float64("mean_utility", report.MeanUtility))
	}
	logger.Info(msg, args...)
}

func writeOutput(eng *engine.Engine, cfg *Configuration) error {
	format := cfg.Format
	if format == "" {
		format = formatFromExtension(cfg.OutputFile)
	}
	renderer, err := render.GetRenderer(format)
	if err != nil {
		return err
	}

	report := eng.Report()
	options := render.NewDefaultOptions(format)
	options.NoiseIntensity = cfg.NoiseIntensity
	options.NoiseSeed = int64(cfg.Seed)
	options.Title = fmt.Sprintf("Unsatisfied nodes %d - Surface %d", report.Unsatisfied, report.Surface)

	output, err := renderer.Render(eng.Snapshot(), options)
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}
	if err := os.WriteFile(cfg.OutputFile, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func formatFromExtension(name string) string {
	for _, format := range []string{"svg", "png", "json"} {
		if render.Extension(format) == strings.ToLower(filepath.Ext(name)) {
			return format
		}
	}
	return "ascii"
}
