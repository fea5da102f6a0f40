package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/TFMV/schelling/engine"
	"github.com/TFMV/schelling/ingest"
	"github.com/TFMV/schelling/lattice"
	"github.com/TFMV/schelling/logging"
	"github.com/TFMV/schelling/models"
	"github.com/spf13/cobra"
)

// Configuration represents all the settings for the application
type Configuration struct {
	Size           int
	FractionPos    float64
	FractionNeg    float64
	Threshold      float64
	Neighborhood   string
	Seed           uint64
	Policy         string
	Budget         int
	Iterations     int
	Converge       bool
	Layout         string
	OutputFile     string
	Format         string
	NoiseIntensity float64
	Port           int
	LogLevel       string
	LogJSON        bool
}

var config = &Configuration{}

var rootCmd = &cobra.Command{
	Use:   "schelling",
	Short: "Schelling segregation model on a toroidal lattice",
	Long: `schelling simulates agents of two opposing types on a periodic grid.
Unsatisfied agents relocate until the lattice settles or the step budget runs out.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&config.Size, "size", 50, "Linear size L of the lattice")
	flags.Float64Var(&config.FractionPos, "pos", 0.30, "Fraction of positive agents")
	flags.Float64Var(&config.FractionNeg, "neg", 0.30, "Fraction of negative agents")
	flags.Float64Var(&config.Threshold, "threshold", 0.50, "Utility below which an agent is unsatisfied")
	flags.StringVar(&config.Neighborhood, "neighborhood", "moore", "Neighborhood: vonneumann or moore")
	flags.Uint64Var(&config.Seed, "seed", 123457, "Seed of the random stream")
	flags.StringVar(&config.Policy, "policy", engine.PolicyGreedy, "Relocation policy: greedy or seek")
	flags.IntVar(&config.Budget, "budget", 100, "Attempts per step for the seek policy")
	flags.StringVar(&config.Layout, "layout", "", "Start from a lattice file (.txt, .csv, .json) instead of a random draw")
	flags.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flags.BoolVar(&config.LogJSON, "log-json", false, "Emit logs as JSON")

	rootCmd.AddCommand(runCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM
func signalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sig:
			logger.Info("received shutdown signal, stopping")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()
	return ctx, cancel
}

func newLogger(cfg *Configuration, w io.Writer) *slog.Logger {
	if cfg.LogJSON {
		return logging.NewJSON(cfg.LogLevel, w)
	}
	return logging.New(cfg.LogLevel, w)
}

// buildEngine creates the engine either from a layout file or from a random
// draw over cfg's parameters.
func buildEngine(cfg *Configuration, opts ...engine.Option) (*engine.Engine, error) {
	rng := engine.NewRand(cfg.Seed)

	if cfg.Layout != "" {
		mode, err := lattice.ParseNeighborhood(cfg.Neighborhood)
		if err != nil {
			return nil, err
		}
		processor, err := ingest.ProcessorForFile(cfg.Layout)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(cfg.Layout)
		if err != nil {
			return nil, fmt.Errorf("failed to read layout: %w", err)
		}
		snap, err := processor.ProcessData(data)
		if err != nil {
			return nil, fmt.Errorf("failed to process layout: %w", err)
		}
		return engine.NewFromSnapshot(snap, cfg.Threshold, mode, rng, opts...)
	}

	params := models.NewParams(cfg.Size, cfg.FractionPos, cfg.FractionNeg, cfg.Threshold, cfg.Neighborhood, cfg.Seed)
	return engine.New(params, rng, opts...)
}
