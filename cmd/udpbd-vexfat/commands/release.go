package commands

import (
	"context"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/udpbd-vexfat/internal/core/domain"
	"go.trai.ch/zerr"
)

func (c *CLI) newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "release",
		Short: "Build and publish a release for a version tag",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tag, _ := cmd.Flags().GetString("tag")
			configPath, _ := cmd.Flags().GetString("config")

			if tag == "" {
				var err error
				tag, err = describeTag(cmd.Context())
				if err != nil {
					return err
				}
			}

			return c.app.Release(cmd.Context(), configPath, domain.Tag(tag))
		},
	}
	cmd.Flags().StringP("tag", "t", "", "Version tag to release (defaults to the tag on HEAD)")
	cmd.Flags().StringP("config", "c", "release.yaml", "Path to the release configuration")
	return cmd
}

// describeTag resolves the tag pointing at HEAD, for running a release
// from a checked-out tag without repeating it on the command line.
func describeTag(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, "git", "describe", "--tags", "--exact-match").Output()
	if err != nil {
		return "", zerr.Wrap(err, "no tag given and HEAD is not at a tag")
	}
	return strings.TrimSpace(string(out)), nil
}
