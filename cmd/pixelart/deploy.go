package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hbjzxzx/pixel-art/internal/core"
)

var deployCmd = &cobra.Command{
	Use:   "deploy <app>",
	Short: "Build an app and start it in one step",
	Long: "Deploy rebuilds the app's image from its current source and starts the\n" +
		"entry process from it. A running instance is stopped first.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			dep, err := eng.Deploy(ctx, args[0])
			if err != nil {
				return err
			}
			if dep.HostPort != 0 {
				fmt.Printf("Deployed %s: %s running as %s on port %d\n",
					dep.App, dep.ImageRef, shortID(dep.ContainerID), dep.HostPort)
			} else {
				fmt.Printf("Deployed %s: %s running as %s\n",
					dep.App, dep.ImageRef, shortID(dep.ContainerID))
			}
			return nil
		})
	},
}
