// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crosscheck/internal/config"
	"github.com/xkilldash9x/crosscheck/internal/observability"
)

// ErrUnitsFailed is returned by the run command when at least one unit failed.
var ErrUnitsFailed = errors.New("one or more units failed")

// NewRootCommand builds a fresh command tree with its own viper instance,
// so repeated executions do not share flag or config state.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)
	return newRootCommand(v)
}

func newRootCommand(v *viper.Viper) *cobra.Command {
	var cfgFile, envFile string

	rootCmd := &cobra.Command{
		Use:   "crosscheck",
		Short: "Crosscheck drives a storefront through a real browser and its data APIs and reports where they disagree.",
		// Version is dynamically set at build time. See cmd/version.go.
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// This runs before any command, setting up config and logging.
			if err := initializeConfig(v, cfgFile, envFile); err != nil {
				return err
			}

			var logCfg config.LoggerConfig
			if err := v.UnmarshalKey("logger", &logCfg); err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "crosscheck"})
				return fmt.Errorf("failed to unmarshal logger config: %w", err)
			}
			observability.InitializeLogger(logCfg)
			observability.GetLogger().Debug("Starting crosscheck", zap.String("version", Version))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.StringVar(&envFile, "env-file", "", "dotenv file to load (default is ./.env when present)")
	flags.String("remote-url", "", "remote browser pool endpoint; empty launches a local browser")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = v.BindPFlag("browser.remote_url", flags.Lookup("remote-url"))
	_ = v.BindPFlag("logger.level", flags.Lookup("log-level"))

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.AddCommand(newRunCmd(v), newUnitsCmd(), newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with the signal-aware context from main.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, ErrUnitsFailed) && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig loads the dotenv file, then the config file, then binds
// CROSSCHECK_* environment variables. Flags win over all of them.
func initializeConfig(v *viper.Viper, cfgFile, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("error loading env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CROSSCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; proceed with defaults/env vars.
	}
	return nil
}

