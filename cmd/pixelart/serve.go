package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and keep deployments reconciled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, log, err := newApplication(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, cancel := signalContext(log)
		defer cancel()

		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	},
}
