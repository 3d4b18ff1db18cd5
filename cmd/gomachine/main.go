// Package main is the gomachine command line tool. It trains models from
// CSV or .gmx data, keeps them in a SQLite registry and predicts with them.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gomachine/gomachine/internal/config"
	"github.com/gomachine/gomachine/internal/registry"
	"github.com/gomachine/gomachine/pkg/log"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// initConfigの結果。PersistentPreRunEで報告する
	configErr error
	appConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gomachine",
	Short: "Train, store and run machine learning models",
	Long: `gomachine trains linear and logistic regression, k-means, feed-forward
neural networks and Gaussian processes on numeric CSV or .gmx data.

Trained models are stored in a SQLite registry (registry.path) and can be
listed, exported or used for prediction later. Settings are read from
gomachine.yaml (current directory or ~/.config/gomachine) and GOMACHINE_*
environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configErr != nil {
			return configErr
		}
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if err := log.SetupLogger(cfg.LogLevel); err != nil {
			return err
		}
		appConfig = cfg
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./gomachine.yaml or ~/.config/gomachine/gomachine.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("registry", "", "path of the SQLite model registry")

	_ = viper.BindPFlag(config.KeyLogLevel, flags.Lookup("log-level"))
	_ = viper.BindPFlag(config.KeyRegistryPath, flags.Lookup("registry"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	configErr = config.Init(viper.GetViper(), cfgFile)
}

// openRegistry opens the store configured by registry.path.
func openRegistry() (*registry.Store, error) {
	return registry.Open(appConfig.Registry.Path)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("command failed", log.ErrAttr(err))
		os.Exit(1)
	}
}
