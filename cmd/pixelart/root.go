package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hbjzxzx/pixel-art/internal/app"
	"github.com/hbjzxzx/pixel-art/internal/config"
	"github.com/hbjzxzx/pixel-art/internal/core"
	"github.com/hbjzxzx/pixel-art/internal/logger"
)

type contextKey string

const configKey = contextKey("config")

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "pixelart",
	Short: "Build and run web apps as single-process containers",
	Long: "pixelart wraps a container runtime into a two-step workflow: build an\n" +
		"image from an app's source tree and dependency manifest, then run it as\n" +
		"exactly one entry process per app.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(cfgFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		cmd.SetContext(ctx)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	viper.BindPFlag("log.log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(psCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadedConfig(cmd *cobra.Command) *config.Config {
	return cmd.Context().Value(configKey).(*config.Config)
}

// newApplication wires the full application from the loaded config.
func newApplication(cmd *cobra.Command) (*app.App, zerolog.Logger, error) {
	cfg := loadedConfig(cmd)
	log := logger.SetupLogger(&cfg.Logging)
	application, err := app.New(cfg, log)
	if err != nil {
		return nil, log, fmt.Errorf("failed to create app: %w", err)
	}
	return application, log, nil
}

// oneShot wires the application, resyncs the deployment table from the
// runtime and runs a single engine operation against it.
func oneShot(cmd *cobra.Command, fn func(ctx context.Context, eng *core.Engine) error) error {
	application, log, err := newApplication(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	ctx, cancel := signalContext(log)
	defer cancel()

	eng := application.Engine()
	if err := eng.Resync(ctx); err != nil {
		log.Warn().Err(err).Msg("Resync failed")
	}
	return fn(ctx, eng)
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Msgf("Received signal: %v", sig)
		cancel()
	}()
	return ctx, cancel
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
