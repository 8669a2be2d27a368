// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vidpilot/internal/config"
	"github.com/xkilldash9x/vidpilot/internal/observability"
	"github.com/xkilldash9x/vidpilot/internal/service"
)

type configKeyType struct{}

// configKey carries the validated *config.Config from PersistentPreRunE to subcommands.
var configKey = configKeyType{}

// componentFactory builds the session for every command; tests replace it.
var componentFactory service.ComponentFactory = service.NewComponentFactory()

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state, which keeps tests isolated from each other.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile string
		verbose bool
	)

	rootCmd := &cobra.Command{
		Use:     "vidpilot",
		Short:   "vidpilot drives a video player from screenshots and plain-language instructions.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			// 1. Configuration sources: file, environment, flags.
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				basicLogger, _ := zap.NewDevelopment()
				defer basicLogger.Sync()
				basicLogger.Error("Failed to initialize configuration", zap.Error(err))
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			// 2. Decode and validate.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "vidpilot"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// 3. Logging.
			observability.InitializeLogger(cfg.Logger())
			if verbose {
				if err := observability.SetLevel("debug"); err != nil {
					return err
				}
			}
			observability.GetLogger().Debug("Starting vidpilot",
				zap.String("version", Version),
				zap.String("backend", cfg.Device().Backend))

			// 4. Hand the config to the subcommand.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringP("backend", "b", "", "device backend: adb, cdp or sim")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newPlayCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newSeekCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newLogCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree under ctx and logs a failure once.
func Execute(ctx context.Context) error {
	defer observability.Sync()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Interrupted.")
			return err
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// initializeConfig reads the config file and binds the environment and the
// global flags into v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file; defaults and environment only.
	}

	if f := cmd.Flags().Lookup("backend"); f != nil && f.Changed {
		if err := v.BindPFlag("device.backend", f); err != nil {
			return err
		}
	}
	return nil
}

// getConfigFromContext returns the config stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}
