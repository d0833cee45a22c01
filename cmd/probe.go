package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/smazurov/hwvideo/internal/display"
	"github.com/smazurov/hwvideo/pkg/linuxav/drm"
	"github.com/spf13/cobra"
)

func newProbeCmd(a *app) *cobra.Command {
	var allModes bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "List connectors and modes of the DRM device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			device := a.pipeline.Display.Device
			if device == "" {
				device = display.DefaultDevice
			}
			infos, err := drm.Probe(device)
			if err != nil {
				return err
			}
			a.logger.Debug("Probed display device", "device", device, "connectors", len(infos))
			return writeProbe(cmd.OutOrStdout(), device, infos, allModes)
		},
	}
	cmd.Flags().BoolVar(&allModes, "all-modes", false, "List every mode instead of the first five")
	return cmd
}

const probeModeLimit = 5

func writeProbe(w io.Writer, device string, infos []drm.ConnectorInfo, allModes bool) error {
	fmt.Fprintf(w, "%s\n", device)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tCONNECTOR\tSTATUS\tSIZE\tMODES")
	for i, info := range infos {
		size := "-"
		if info.WidthMM > 0 && info.HeightMM > 0 {
			size = fmt.Sprintf("%dx%dmm", info.WidthMM, info.HeightMM)
		}

		modes := make([]string, 0, len(info.Modes))
		for j, m := range info.Modes {
			if !allModes && j == probeModeLimit {
				modes = append(modes, fmt.Sprintf("(+%d)", len(info.Modes)-probeModeLimit))
				break
			}
			name := m.String()
			if m.Preferred() {
				name += "*"
			}
			modes = append(modes, name)
		}
		if len(modes) == 0 {
			modes = append(modes, "-")
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i, info.Name(), info.Connection, size, strings.Join(modes, " "))
	}
	if len(infos) > 0 {
		fmt.Fprintf(tw, "\t\t\t\tcrtcs=%d planes=%d\n", infos[0].CRTCs, infos[0].Planes)
	}
	return tw.Flush()
}
