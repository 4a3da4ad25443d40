package main

import (
	"context"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/hbjzxzx/pixel-art/internal/core"
)

var buildCmd = &cobra.Command{
	Use:   "build <app>",
	Short: "Build an app's image from its source tree and manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(cmd, func(ctx context.Context, eng *core.Engine) error {
			img, err := eng.Build(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Built %s (%s, %s)\n", img.Ref, shortID(img.ID), units.HumanSize(float64(img.Size)))
			return nil
		})
	},
}
