package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	seqcompute "github.com/genoscope/seqcompute"
)

// printer formats counts with locale-aware digit grouping.
var printer = message.NewPrinter(language.English)

func newSkewCmd(cfg *viper.Viper) *cobra.Command {
	var window, step int
	cmd := &cobra.Command{
		Use:   "skew <sequence-file>",
		Short: "Windowed GC skew with replication origin/terminus prediction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			defer o.Dispose()

			res, err := o.GCSkew(cmd.Context(), seqcompute.SeqArg{ID: id, Text: text}, window, step)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s: %d bases, %d windows (window=%d step=%d, tier=%s)\n",
				id, len(text), len(res.Skew), window, step, res.Tier)
			printer.Fprintf(out, "predicted origin: %d\n", res.Origin)
			printer.Fprintf(out, "predicted terminus: %d\n", res.Terminus)
			for i, s := range res.Skew {
				fmt.Fprintf(out, "%d\t%.6f\t%.6f\n", i*step, s, res.Cumulative[i])
			}
			maybeReport(cmd, cfg, o)
			return nil
		},
	}
	cmd.Flags().IntVar(&window, "window", 1000, "window size in bases")
	cmd.Flags().IntVar(&step, "step", 250, "window step in bases")
	return cmd
}

func newKmerCmd(cfg *viper.Viper) *cobra.Command {
	var k, top int
	cmd := &cobra.Command{
		Use:   "kmer <sequence-file>",
		Short: "Dense k-mer histogram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			defer o.Dispose()

			res, err := o.KmerCount(cmd.Context(), seqcompute.SeqArg{ID: id, Text: text}, k)
			if err != nil {
				return err
			}

			type entry struct {
				idx   int
				count uint32
			}
			entries := make([]entry, 0, len(res.Counts))
			for i, c := range res.Counts {
				if c > 0 {
					entries = append(entries, entry{i, c})
				}
			}
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].count != entries[j].count {
					return entries[i].count > entries[j].count
				}
				return entries[i].idx < entries[j].idx
			})
			if top > 0 && len(entries) > top {
				entries = entries[:top]
			}

			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s: %d distinct %d-mers (tier=%s)\n",
				id, len(entries), k, res.Tier)
			for _, e := range entries {
				printer.Fprintf(out, "%s\t%d\n", kmerString(e.idx, k), e.count)
			}
			maybeReport(cmd, cfg, o)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 6, "k-mer length")
	cmd.Flags().IntVar(&top, "top", 20, "show only the N most frequent k-mers (0 = all)")
	return cmd
}

// kmerString decodes a dense histogram index back into bases.
func kmerString(idx, k int) string {
	buf := make([]byte, k)
	for i := k - 1; i >= 0; i-- {
		buf[i] = "ACGT"[idx&3]
		idx >>= 2
	}
	return string(buf)
}

func newDiffCmd(cfg *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <sequence-file-a> <sequence-file-b>",
		Short: "Edit distance and identity between two sequences",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idA, textA, err := readSequence(args[0])
			if err != nil {
				return err
			}
			idB, textB, err := readSequence(args[1])
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			defer o.Dispose()

			res, err := o.Diff(cmd.Context(),
				seqcompute.SeqArg{ID: idA, Text: textA},
				seqcompute.SeqArg{ID: idB, Text: textB})
			if err != nil {
				return err
			}
			printer.Fprintf(cmd.OutOrStdout(),
				"%s vs %s: distance %d, identity %.4f (tier=%s)\n",
				idA, idB, res.Distance, res.Identity, res.Tier)
			maybeReport(cmd, cfg, o)
			return nil
		},
	}
	return cmd
}

func newSimCmd(cfg *viper.Viper) *cobra.Command {
	var (
		seed        uint32
		generations int
		rate        float64
	)
	cmd := &cobra.Command{
		Use:   "sim <sequence-file>",
		Short: "Run deterministic mutation-accumulation generations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			defer o.Dispose()

			out := cmd.OutOrStdout()
			current := text
			var total uint64
			for g := 0; g < generations; g++ {
				res, err := o.SimStep(cmd.Context(),
					seqcompute.SeqArg{ID: fmt.Sprintf("%s@%d", id, g), Text: current},
					seed, uint32(g), rate)
				if err != nil {
					return err
				}
				total += uint64(res.Mutations)
				printer.Fprintf(out, "generation %d: %d mutations (tier=%s)\n",
					g+1, res.Mutations, res.Tier)
				current = string(res.Sequence)
			}
			printer.Fprintf(out, "total: %d mutations over %d generations\n", total, generations)
			fmt.Fprintln(out, current)
			maybeReport(cmd, cfg, o)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&seed, "seed", 1, "simulation seed")
	cmd.Flags().IntVar(&generations, "generations", 1, "number of generations")
	cmd.Flags().Float64Var(&rate, "rate", 0.001, "per-site mutation rate")
	return cmd
}
