package main

import (
	"context"
	"errors"
	"os"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/spf13/cobra"

	"github.com/hbjzxzx/pixel-art/internal/core"
)

var logsFollow bool

var logsCmd = &cobra.Command{
	Use:   "logs <app>",
	Short: "Show the entry process logs of an app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			rc, err := eng.Logs(ctx, args[0], logsFollow)
			if err != nil {
				return err
			}
			defer rc.Close()

			// The daemon multiplexes stdout and stderr into one stream.
			if _, err := stdcopy.StdCopy(os.Stdout, os.Stderr, rc); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	},
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
}
