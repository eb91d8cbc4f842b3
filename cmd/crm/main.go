package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

var (
	configFile string
	actorFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "CRM - document generation and versioning",
	Long: `crm manages document templates and the documents generated from them
for companies, brands, branches and people.`,
	Example: `  # Prepare a database with sample data
  crm migrate
  crm seed

  # Generate an invoice for a company and start a new draft version
  crm document generate --template <template-id> --entity-type company --entity-id <company-id> --set amount=1500
  crm document new-version <document-id>
  crm document versions <document-id>`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default ./config.yaml or /etc/crm/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "User id recorded as the actor of changes")

	rootCmd.AddGroup(
		&cobra.Group{ID: "docs", Title: "Document Commands:"},
		&cobra.Group{ID: "admin", Title: "Admin Commands:"},
	)

	templateCmd.GroupID = "docs"
	documentCmd.GroupID = "docs"
	activityCmd.GroupID = "docs"

	migrateCmd.GroupID = "admin"
	seedCmd.GroupID = "admin"
	serveCmd.GroupID = "admin"

	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(documentCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
