package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/udpbd-vexfat/internal/app"
)

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve <file>",
		Short: "Expose a file under DVD/ of a virtual exFAT volume over UDPBD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			addr, _ := cmd.Flags().GetString("addr")
			return c.app.Serve(cmd.Context(), app.ServeOptions{
				File:   args[0],
				Prefix: prefix,
				Addr:   addr,
			})
		},
	}
	cmd.Flags().StringP("prefix", "p", "", "Nest the OPL layout inside a named directory")
	cmd.Flags().String("addr", "", "UDP listen address (defaults to the UDPBD port)")
	return cmd
}
