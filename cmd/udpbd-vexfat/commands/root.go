// Package commands implements the CLI commands for udpbd-vexfat.
package commands

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"go.trai.ch/udpbd-vexfat/internal/app"
	"go.trai.ch/udpbd-vexfat/internal/build"
	"go.trai.ch/udpbd-vexfat/internal/core/domain"
)

// Runner is the application surface the CLI drives.
type Runner interface {
	Serve(ctx context.Context, opts app.ServeOptions) error
	Release(ctx context.Context, configPath string, tag domain.Tag) error
}

// CLI represents the command line interface for udpbd-vexfat.
type CLI struct {
	app     Runner
	rootCmd *cobra.Command
}

// New creates a new CLI instance with the given app.
func New(a Runner) *CLI {
	rootCmd := &cobra.Command{
		Use:           "udpbd-vexfat",
		Short:         "Serve a file to a PS2 as a UDP block device with a virtual exFAT filesystem",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	c := &CLI{
		app:     a,
		rootCmd: rootCmd,
	}

	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newReleaseCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects the command output streams. Used for testing.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}
