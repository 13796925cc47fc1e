package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDevicesCmd(g *globalFlags) *cobra.Command {
	var camSrc string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List the camera inputs the configured source reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			if cmd.Flags().Changed("camera") {
				cfg.Camera.Source = camSrc
			}

			cam, err := openCamera(cfg.Camera)
			if err != nil {
				return err
			}

			devices, err := cam.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No camera inputs found. Posts can still use uploaded photos.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tKIND")
			for _, d := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Label, d.Kind)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&camSrc, "camera", "", "camera source: none, still:<path> or v4l2[:<device>]")
	return cmd
}
