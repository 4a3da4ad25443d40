package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbjzxzx/pixel-art/internal/core"
)

var startCmd = &cobra.Command{
	Use:   "start <app>",
	Short: "Start an app's entry process from its built image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			ct, err := eng.Start(ctx, args[0])
			if err != nil {
				return err
			}
			if ct.HostPort != 0 {
				fmt.Printf("Started %s: container %s on port %d\n", args[0], shortID(ct.ID), ct.HostPort)
			} else {
				fmt.Printf("Started %s: container %s\n", args[0], shortID(ct.ID))
			}
			return nil
		})
	},
}
