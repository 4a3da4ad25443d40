package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbjzxzx/pixel-art/internal/core"
)

var stopCmd = &cobra.Command{
	Use:   "stop <app>",
	Short: "Stop an app's entry process",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			if err := eng.Stop(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Stopped %s\n", args[0])
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <app>",
	Aliases: []string{"rm"},
	Short:   "Stop an app and forget its deployment record",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			if err := eng.Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		})
	},
}
