package cli

import (
	"image/png"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	seqcompute "github.com/genoscope/seqcompute"
	"github.com/genoscope/seqcompute/plot"
)

func newDotPlotCmd(cfg *viper.Viper) *cobra.Command {
	var (
		k             int
		width, height int
		out           string
		scale         int
	)
	cmd := &cobra.Command{
		Use:   "dotplot <sequence-file-a> <sequence-file-b>",
		Short: "Render a k-word match dot plot to PNG",
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

			res, err := o.DotPlot(cmd.Context(),
				seqcompute.SeqArg{ID: idA, Text: textA},
				seqcompute.SeqArg{ID: idB, Text: textB},
				k, width, height)
			if err != nil {
				return err
			}

			img := plot.DotPlot(res.Counts, res.Width, res.Height)
			enc := func(w io.Writer) error { return png.Encode(w, img) }
			if scale > 1 {
				scaled := plot.Resize(img, res.Width*scale, res.Height*scale)
				enc = func(w io.Writer) error { return png.Encode(w, scaled) }
			}
			if err := writePNG(out, enc); err != nil {
				return err
			}
			printer.Fprintf(cmd.OutOrStdout(), "%s vs %s: %dx%d dot plot written to %s (tier=%s)\n",
				idA, idB, res.Width, res.Height, out, res.Tier)
			maybeReport(cmd, cfg, o)
			return nil
		},
	}
	cmd.Flags().IntVar(&k, "k", 8, "match word length")
	cmd.Flags().IntVar(&width, "width", 512, "grid width in cells")
	cmd.Flags().IntVar(&height, "height", 512, "grid height in cells")
	cmd.Flags().IntVar(&scale, "scale", 1, "upscale factor for the output image")
	cmd.Flags().StringVar(&out, "out", "dotplot.png", "output PNG path")
	return cmd
}

func newHilbertCmd(cfg *viper.Viper) *cobra.Command {
	var (
		order int
		out   string
		scale int
	)
	cmd := &cobra.Command{
		Use:   "hilbert <sequence-file>",
		Short: "Render GC density along a Hilbert curve to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, text, err := readSequence(args[0])
			if err != nil {
				return err
			}
			o := newOrchestrator(cfg)
			defer o.Dispose()

			res, err := o.HilbertRaster(cmd.Context(), seqcompute.SeqArg{ID: id, Text: text}, order)
			if err != nil {
				return err
			}

			img := plot.Hilbert(res.Cells, res.Side)
			enc := func(w io.Writer) error { return png.Encode(w, img) }
			if scale > 1 {
				scaled := plot.Resize(img, res.Side*scale, res.Side*scale)
				enc = func(w io.Writer) error { return png.Encode(w, scaled) }
			}
			if err := writePNG(out, enc); err != nil {
				return err
			}
			printer.Fprintf(cmd.OutOrStdout(), "%s: order-%d Hilbert raster (%dx%d) written to %s (tier=%s)\n",
				id, res.Order, res.Side, res.Side, out, res.Tier)
			maybeReport(cmd, cfg, o)
			return nil
		},
	}
	cmd.Flags().IntVar(&order, "order", 6, "Hilbert curve order (side = 2^order)")
	cmd.Flags().IntVar(&scale, "scale", 4, "upscale factor for the output image")
	cmd.Flags().StringVar(&out, "out", "hilbert.png", "output PNG path")
	return cmd
}
