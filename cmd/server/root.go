package main

import (
	"github.com/spf13/cobra"

	"muzzlewatch/internal/app"
	"muzzlewatch/internal/config"
)

var configFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "muzzlewatch",
		Short: "Detect dogs without muzzles in photos and report on the history",
		Long: `Muzzlewatch runs a YOLO model over uploaded photos, keeps a history of
every detection and renders PDF reports with global statistics and the
latest annotated images.

Settings come from an optional config file, a .env file and the
environment (PORT, UPLOAD_DIR, HISTORY_BACKEND, MODEL_PATH, ...).`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (yaml, toml or json)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// loadApp reads the configuration and builds the application services.
func loadApp() (*app.App, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	return a, cfg, nil
}
