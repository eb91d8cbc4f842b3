package main

import (
	"context"
	"fmt"
	"net"

	"github.com/spf13/cobra"
	"github.com/tahakubilay/Full-CRM-Claude/internal/db"
	"github.com/tahakubilay/Full-CRM-Claude/internal/server"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed (%s)\n", app.Config.Database.Driver)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert sample companies, brands, branches and an invoice template",
	Long: `Insert sample data into an empty database. Does nothing when any
company already exists.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		actor, err := actorID()
		if err != nil {
			return err
		}
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()
		if err := db.Seed(app.DB, actor); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Seed completed")
		return nil
	},
}

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics until interrupted",
	Long: `Serve the document engine's Prometheus metrics on /metrics.

Environment variables:
  CRM_METRICS_ADDR         Listen address (default: :9464)
  CRM_DATABASE_DRIVER      Database driver: sqlite, postgres
  CRM_DATABASE_DSN         Database connection string
  CRM_AUDIT_SINK           Activity sink: db, valkey, both, none`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			return err
		}
		defer app.Close()

		addr := app.Config.Metrics.Addr
		if serveAddr != "" {
			addr = serveAddr
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return server.RunWithSignalHandling(func(ctx context.Context) error {
			return server.ServeMetrics(ctx, ln, server.NewRegistry())
		})
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides config)")
}
