// Package cli implements the seqcompute command line. Configuration
// comes from flags first, then SEQCOMPUTE_-prefixed environment
// variables via viper.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	seqcompute "github.com/genoscope/seqcompute"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	cfg := viper.New()
	cfg.SetEnvPrefix("SEQCOMPUTE")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()

	rootCmd := &cobra.Command{
		Use:           "seqcompute",
		Short:         "Genome sequence compute: skew, k-mers, diffs, dot plots, simulation",
		Long:          "seqcompute runs genomic analyses (GC skew, k-mer histograms, sequence diffs, dot plots, Hilbert rasters, mutation simulation) through a tiered GPU/native/interpreted compute pipeline.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.Bool("no-gpu", false, "disable the GPU tier")
	flags.Bool("verbose", false, "enable debug logging to stderr")
	flags.Bool("stats", false, "print pipeline diagnostics after the operation")
	flags.Int("pool-capacity", seqcompute.DefaultPoolCapacity, "sequence buffer pool capacity")
	flags.Int("analysis-slots", seqcompute.DefaultAnalysisSlots, "analysis worker slot ceiling")
	flags.Int("simulation-slots", seqcompute.DefaultSimulationSlots, "simulation worker slot ceiling")
	if err := cfg.BindPFlags(flags); err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error { return err }
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSkewCmd(cfg),
		newKmerCmd(cfg),
		newDiffCmd(cfg),
		newDotPlotCmd(cfg),
		newHilbertCmd(cfg),
		newSimCmd(cfg),
		newRevcompCmd(cfg),
		newTranslateCmd(cfg),
		newCodonsCmd(cfg),
		newEntropyCmd(cfg),
		newComplexityCmd(cfg),
		newPalindromesCmd(cfg),
		newRepeatsCmd(cfg),
		newCompareCmd(cfg),
	)
	return rootCmd
}

// newOrchestrator builds an orchestrator from the resolved config.
func newOrchestrator(cfg *viper.Viper) *seqcompute.Orchestrator {
	if cfg.GetBool("verbose") {
		seqcompute.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})))
	}

	opts := []seqcompute.Option{
		seqcompute.WithPoolCapacity(cfg.GetInt("pool-capacity")),
		seqcompute.WithAnalysisSlots(cfg.GetInt("analysis-slots")),
		seqcompute.WithSimulationSlots(cfg.GetInt("simulation-slots")),
	}
	if cfg.GetBool("no-gpu") {
		opts = append(opts, seqcompute.WithGPUDisabled())
	}
	return seqcompute.New(opts...)
}

// maybeReport appends the diagnostics block when --stats is set.
func maybeReport(cmd *cobra.Command, cfg *viper.Viper, o *seqcompute.Orchestrator) {
	if cfg.GetBool("stats") {
		cmd.PrintErrln(o.Report())
	}
}
