package main

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Long: `Starts the upload API, the live detection feed and the report endpoint.`,
		Example: `  # Start server on the configured port (default 5000)
  muzzlewatch serve

  # Start server on a custom port
  muzzlewatch serve --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cfg, err := loadApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return a.Run(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 5000, "Port to listen on")

	return cmd
}
