package main

import (
	"context"
	"embed"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/config"
	"github.com/sjawhar/panner/internal/logging"
)

//go:embed static/*
var staticFiles embed.FS

type app struct {
	cfg      config.Config
	warnings []string
	log      *zap.Logger
}

type appKey struct{}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "panner",
		Short:         "Present random wisdom excerpts and media at random intervals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	var (
		configPath string
		logLevel   string
	)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "config file (.yaml or .toml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, warnings, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
		if err != nil {
			return err
		}
		for _, w := range warnings {
			logger.Warn(w)
		}

		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{cfg: cfg, warnings: warnings, log: logger}))
		return nil
	}
	root.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if a := fromContext(cmd); a != nil {
			_ = a.log.Sync()
		}
	}

	root.AddCommand(serveCommand())
	root.AddCommand(ingestCommand())
	root.AddCommand(syncCommand())
	root.AddCommand(drawCommand())
	root.AddCommand(statusCommand())

	return root
}

func defaultConfigPath() string {
	if v := os.Getenv(config.EnvPrefix + "CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}
