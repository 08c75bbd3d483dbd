package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/plantrace/plantrace/backend-go/internal/asset"
	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/engine"
	"github.com/plantrace/plantrace/backend-go/internal/export"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

func (a *app) sampleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Print the sample plan as a load response",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSON(cmd.OutOrStdout(), document.NewSampleResponse("plan_sample"))
		},
	}
}

type validateResult struct {
	Houses int      `json:"houses"`
	Units  int      `json:"units"`
	Names  []string `json:"names"`
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <source>",
		Short: "Check that every item of a plan decodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.readSource(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := resp.Document()
			if err != nil {
				return fmt.Errorf("invalid plan: %w", err)
			}

			res := validateResult{
				Houses: doc.Layer(document.House).Len(),
				Units:  doc.Layer(document.Unit).Len(),
				Names:  []string{},
			}
			for _, l := range doc.Layers() {
				for _, g := range l.Children {
					res.Names = append(res.Names, g.Name())
				}
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (a *app) probeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe <source> <x> <y>",
		Short: "Report which group owns a point",
		Long: `probe prints the report a probe session sends when the point is
clicked: the rounded position plus the owning group, or the common area.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid x %q", args[1])
			}
			y, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid y %q", args[2])
			}

			resp, err := a.readSource(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}

			s := engine.NewSession(engine.Options{Mode: engine.ModeProbe, ReadOnly: true, Logger: a.logger})
			if err := s.Load(resp); err != nil {
				return fmt.Errorf("load plan: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), s.Probe(geom.Pt(x, y)).Report())
		},
	}
}

func (a *app) renderCmd() *cobra.Command {
	var output, background string

	cmd := &cobra.Command{
		Use:   "render <source>",
		Short: "Render a plan to PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.readSource(cmd.Context(), cmd, args[0])
			if err != nil {
				return err
			}
			doc, err := resp.Document()
			if err != nil {
				return fmt.Errorf("invalid plan: %w", err)
			}

			var bg image.Image
			var src string
			if background != "" {
				src = "/assets/" + filepath.Base(background)
				bg, err = asset.NewHandler(filepath.Dir(background)).Decode(cmd.Context(), src)
				if err != nil {
					return fmt.Errorf("decode background: %w", err)
				}
			}

			scale := a.v.GetFloat64(cfgKeyScale)
			cmds, frame, images := export.Preview(doc, bg, src, scale, a.logger)

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := export.EncodePNG(f, cmds, frame, images); err != nil {
				f.Close()
				return fmt.Errorf("render plan: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close output: %w", err)
			}

			w, h := frame.Size()
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", output, w, h)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "plan.png", "PNG file to write")
	cmd.Flags().StringVar(&background, "background", "", "floor plan image drawn under the shapes")
	cmd.Flags().Float64(cfgKeyScale, defaultScale, "pixels per plan unit")
	return cmd
}
