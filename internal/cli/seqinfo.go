package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/genoscope/seqcompute/analysis"
	"github.com/genoscope/seqcompute/seq"
)

// The commands here operate on pure analysis functions and never go
// through the tiered pipeline, so they take no orchestrator.

func newRevcompCmd(*viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "revcomp <sequence-file>",
		Short: "Reverse complement of a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			fmt.Fprintf(cmd.OutOrStdout(), ">%s revcomp\n%s\n", id, seq.ReverseComplement(b))
			return nil
		},
	}
}

func newTranslateCmd(*viper.Viper) *cobra.Command {
	var frame int
	cmd := &cobra.Command{
		Use:   "translate <sequence-file>",
		Short: "Translate a sequence to amino acids",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frame < 0 || frame > 2 {
				return fmt.Errorf("frame must be 0, 1 or 2, got %d", frame)
			}
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			fmt.Fprintf(cmd.OutOrStdout(), ">%s frame %d\n%s\n", id, frame, seq.Translate(b, frame))
			return nil
		},
	}
	cmd.Flags().IntVar(&frame, "frame", 0, "reading frame (0, 1 or 2)")
	return cmd
}

func newCodonsCmd(*viper.Viper) *cobra.Command {
	var frame int
	cmd := &cobra.Command{
		Use:   "codons <sequence-file>",
		Short: "Codon usage counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if frame < 0 || frame > 2 {
				return fmt.Errorf("frame must be 0, 1 or 2, got %d", frame)
			}
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			usage := seq.CodonUsage(b, frame)
			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s: codon usage, frame %d\n", id, frame)
			for i, c := range usage {
				if c == 0 {
					continue
				}
				printer.Fprintf(out, "%s\t%d\n", kmerString(i, 3), c)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&frame, "frame", 0, "reading frame (0, 1 or 2)")
	return cmd
}

func newEntropyCmd(*viper.Viper) *cobra.Command {
	var window, step int
	cmd := &cobra.Command{
		Use:   "entropy <sequence-file>",
		Short: "Windowed Shannon entropy of the base distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			ent := analysis.ShannonWindows(b, window, step)
			if ent == nil {
				return fmt.Errorf("sequence %s shorter than one window (%d bases)", id, window)
			}
			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s: %d windows (window=%d step=%d)\n", id, len(ent), window, step)
			for i, h := range ent {
				fmt.Fprintf(out, "%d\t%.4f\n", i*step, h)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&window, "window", 100, "window size in bases")
	cmd.Flags().IntVar(&step, "step", 50, "window step in bases")
	return cmd
}

func newComplexityCmd(*viper.Viper) *cobra.Command {
	var maxK, window, step int
	cmd := &cobra.Command{
		Use:   "complexity <sequence-file>",
		Short: "Linguistic complexity (observed/possible substring ratio)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			out := cmd.OutOrStdout()
			if window > 0 {
				vals := analysis.WindowedComplexity(b, window, step, maxK)
				if vals == nil {
					return fmt.Errorf("sequence %s shorter than one window (%d bases)", id, window)
				}
				printer.Fprintf(out, "%s: %d windows (window=%d step=%d k=%d)\n",
					id, len(vals), window, step, maxK)
				for i, c := range vals {
					fmt.Fprintf(out, "%d\t%.4f\n", i*step, c)
				}
				return nil
			}
			fmt.Fprintf(out, "%s: complexity %.4f (k=1..%d)\n",
				id, analysis.LinguisticComplexity(b, maxK), maxK)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxK, "max-k", 7, "largest word size considered")
	cmd.Flags().IntVar(&window, "window", 0, "window size in bases (0 scores the whole sequence)")
	cmd.Flags().IntVar(&step, "step", 50, "window step in bases")
	return cmd
}

func newPalindromesCmd(*viper.Viper) *cobra.Command {
	var minArm, maxGap int
	cmd := &cobra.Command{
		Use:   "palindromes <sequence-file>",
		Short: "Reverse-complement palindromes (restriction-site style)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			found := analysis.DetectPalindromes(b, minArm, maxGap)
			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s: %d palindromes (min-arm=%d max-gap=%d)\n",
				id, len(found), minArm, maxGap)
			for _, p := range found {
				fmt.Fprintf(out, "%d\t%d\tarm=%d gap=%d\t%s\n",
					p.Start, p.End, p.ArmLen, p.Gap, b.AppendBases(nil, p.Start, p.End-p.Start))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minArm, "min-arm", 4, "minimum palindrome arm length")
	cmd.Flags().IntVar(&maxGap, "max-gap", 0, "maximum spacer between arms")
	return cmd
}

func newRepeatsCmd(*viper.Viper) *cobra.Command {
	var minUnit, maxUnit, minCopies int
	cmd := &cobra.Command{
		Use:   "repeats <sequence-file>",
		Short: "Tandem repeats (consecutive copies of a unit)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			b := seq.NewBuffer(id, text, false)
			found := analysis.DetectTandemRepeats(b, minUnit, maxUnit, minCopies)
			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s: %d tandem repeats (unit=%d..%d min-copies=%d)\n",
				id, len(found), minUnit, maxUnit, minCopies)
			for _, r := range found {
				printer.Fprintf(out, "%d\t%d\t%s x%d\n", r.Start, r.End, r.Unit, r.Copies)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&minUnit, "min-unit", 2, "minimum repeat unit length")
	cmd.Flags().IntVar(&maxUnit, "max-unit", 6, "maximum repeat unit length")
	cmd.Flags().IntVar(&minCopies, "min-copies", 3, "minimum consecutive copies")
	return cmd
}

func newCompareCmd(*viper.Viper) *cobra.Command {
	var k, sketch int
	cmd := &cobra.Command{
		Use:   "compare <sequence-file-a> <sequence-file-b>",
		Short: "k-mer similarity metrics between two sequences",
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
			fa := analysis.KmerFreqs(seq.NewBuffer(idA, textA, false), k)
			fb := analysis.KmerFreqs(seq.NewBuffer(idB, textB, false), k)
			if len(fa) == 0 || len(fb) == 0 {
				return fmt.Errorf("k=%d out of range or sequence too short", k)
			}

			out := cmd.OutOrStdout()
			printer.Fprintf(out, "%s vs %s, k=%d (%d vs %d distinct k-mers)\n",
				idA, idB, k, len(fa), len(fb))
			fmt.Fprintf(out, "jaccard:\t%.4f\n", analysis.Jaccard(fa, fb))
			fmt.Fprintf(out, "containment:\t%.4f\n", analysis.Containment(fa, fb))
			fmt.Fprintf(out, "cosine:\t%.4f\n", analysis.Cosine(fa, fb))
			fmt.Fprintf(out, "bray-curtis:\t%.4f\n", analysis.BrayCurtis(fa, fb))
			if sketch > 0 {
				sa := analysis.MinHash(fa, sketch)
				sb := analysis.MinHash(fb, sketch)
				fmt.Fprintf(out, "sketch jaccard:\t%.4f (size %d)\n",
					analysis.SketchJaccard(sa, sb), sketch)
			}
			fmt.Fprintf(out, "js divergence:\t%.4f\n", analysis.JensenShannon(fa, fb))
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 8, "k-mer length")
	cmd.Flags().IntVar(&sketch, "sketch", 128, "MinHash sketch size (0 disables sketching)")
	return cmd
}
