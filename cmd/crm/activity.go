package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity <DOCUMENT|TEMPLATE> <id>",
	Short: "Show the activity log of a document or template",
	Args:  cobra.ExactArgs(2),
	RunE:  runActivity,
}

func runActivity(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Activity == nil {
		return fmt.Errorf("activity log is not stored in the database (audit.sink is %q)", app.Config.Audit.Sink)
	}
	entries, err := app.Activity.List(cmd.Context(), strings.ToUpper(args[0]), args[1])
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No activity recorded")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tBY\tDESCRIPTION")
	for _, a := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Timestamp.Format("2006-01-02 15:04:05"), a.Action, a.PerformedBy, truncate(a.Description, 60))
	}
	return tw.Flush()
}
