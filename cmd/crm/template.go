package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"github.com/tahakubilay/Full-CRM-Claude/internal/service"
	"github.com/tahakubilay/Full-CRM-Claude/internal/store"
	"github.com/tahakubilay/Full-CRM-Claude/internal/templatefile"
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage document templates",
}

var (
	tplListSearch   string
	tplListType     string
	tplListCategory string
	tplListActive   string
	tplListSort     string
	tplListOrder    string
	tplListPage     int
	tplListLimit    int
)

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	Args:    cobra.NoArgs,
	RunE:    runTemplateList,
}

var templateGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateGet,
}

var (
	tplName        string
	tplType        string
	tplCategory    string
	tplDescription string
	tplBody        string
	tplBodyFile    string
)

var templateCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a template",
	Long: `Create a template. Placeholders are written as {{key}}; the keys
current_date, current_time and current_year are filled in at generation.

Examples:
  crm template create --name Invoice --type INVOICE --body 'Invoice for {{company}} on {{current_date}}'
  crm template create --name Contract --body-file contract.txt`,
	Args: cobra.NoArgs,
	RunE: runTemplateCreate,
}

var templateUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a template (a new body bumps its version)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateUpdate,
}

var templateArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Deactivate a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateAction(cmd, args[0], (*service.TemplateService).Archive)
	},
}

var templateActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Reactivate a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateAction(cmd, args[0], (*service.TemplateService).Activate)
	},
}

var templateDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Copy a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return templateAction(cmd, args[0], (*service.TemplateService).Duplicate)
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a template that no document uses",
	Args:    cobra.ExactArgs(1),
	RunE:    runTemplateDelete,
}

var templateBulkCmd = &cobra.Command{
	Use:   "bulk <delete|archive|activate> <id>...",
	Short: "Apply an action to several templates",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTemplateBulk,
}

var templateStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show usage statistics of a template",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateStats,
}

var (
	tplPreviewSet  []string
	tplPreviewData string
)

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <id>",
	Short: "Render a template with sample values",
	Long: `Render a template with sample values and report keys left empty.

Examples:
  crm template preview <id> --set company=Acme --set amount=100`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplatePreview,
}

var (
	tplExportFormat string
	tplExportOutput string
)

var templateExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a template as YAML, TOML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplateExport,
}

var tplImportGlob string

var templateImportCmd = &cobra.Command{
	Use:   "import <file-or-dir>...",
	Short: "Import templates from files",
	Long: `Import templates from .yaml, .yml, .toml or .json files. Directories are
searched with --glob, which supports ** for nested directories.

Examples:
  crm template import invoice.yaml
  crm template import ./templates --glob '**/*.toml'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTemplateImport,
}

func init() {
	templateListCmd.Flags().StringVarP(&tplListSearch, "search", "q", "", "Search name, type and body")
	templateListCmd.Flags().StringVar(&tplListType, "type", "", "Filter by type")
	templateListCmd.Flags().StringVar(&tplListCategory, "category", "", "Filter by category")
	templateListCmd.Flags().StringVar(&tplListActive, "active", "", "Filter by activation: true or false")
	templateListCmd.Flags().StringVar(&tplListSort, "sort", "createdAt", "Sort by createdAt, updatedAt, name, usageCount or version")
	templateListCmd.Flags().StringVar(&tplListOrder, "order", "desc", "Sort order: asc or desc")
	templateListCmd.Flags().IntVar(&tplListPage, "page", 1, "Page number")
	templateListCmd.Flags().IntVar(&tplListLimit, "limit", 10, "Page size (max 100)")

	for _, c := range []*cobra.Command{templateCreateCmd, templateUpdateCmd} {
		c.Flags().StringVar(&tplName, "name", "", "Template name")
		c.Flags().StringVar(&tplType, "type", "", "Template type")
		c.Flags().StringVar(&tplCategory, "category", "", "Category")
		c.Flags().StringVar(&tplDescription, "description", "", "Description")
		c.Flags().StringVar(&tplBody, "body", "", "Template body")
		c.Flags().StringVar(&tplBodyFile, "body-file", "", "Read the body from a file")
	}

	templatePreviewCmd.Flags().StringArrayVar(&tplPreviewSet, "set", nil, "Sample value as key=value (repeatable)")
	templatePreviewCmd.Flags().StringVar(&tplPreviewData, "data", "", "Sample values as a JSON object")

	templateExportCmd.Flags().StringVarP(&tplExportFormat, "format", "f", "yaml", "Output format: yaml, toml or json")
	templateExportCmd.Flags().StringVarP(&tplExportOutput, "output", "o", "", "Write to a file; the format follows its extension")

	templateImportCmd.Flags().StringVar(&tplImportGlob, "glob", "**/*", "Pattern used inside directories")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateGetCmd)
	templateCmd.AddCommand(templateCreateCmd)
	templateCmd.AddCommand(templateUpdateCmd)
	templateCmd.AddCommand(templateArchiveCmd)
	templateCmd.AddCommand(templateActivateCmd)
	templateCmd.AddCommand(templateDuplicateCmd)
	templateCmd.AddCommand(templateDeleteCmd)
	templateCmd.AddCommand(templateBulkCmd)
	templateCmd.AddCommand(templateStatsCmd)
	templateCmd.AddCommand(templatePreviewCmd)
	templateCmd.AddCommand(templateExportCmd)
	templateCmd.AddCommand(templateImportCmd)
}

func runTemplateList(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	f := store.TemplateFilter{
		Paging:    store.Paging{Page: tplListPage, Limit: tplListLimit},
		Search:    tplListSearch,
		Type:      tplListType,
		Category:  tplListCategory,
		SortBy:    tplListSort,
		SortOrder: tplListOrder,
	}
	switch tplListActive {
	case "":
	case "true", "false":
		active := tplListActive == "true"
		f.IsActive = &active
	default:
		return fmt.Errorf("invalid --active %q: use true or false", tplListActive)
	}

	page, err := app.Services.Templates.List(cmd.Context(), f)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tVERSION\tUSAGE\tACTIVE")
	for _, t := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n", t.ID, truncate(t.Name, 40), t.Type, t.Version, t.UsageCount, t.IsActive)
	}
	tw.Flush()
	fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d templates)\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func runTemplateGet(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	tpl, err := app.Services.Templates.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), tpl)
}

func templateBody() (string, error) {
	if tplBodyFile == "" {
		return tplBody, nil
	}
	data, err := os.ReadFile(tplBodyFile)
	if err != nil {
		return "", fmt.Errorf("failed to read body file: %w", err)
	}
	return string(data), nil
}

func runTemplateCreate(cmd *cobra.Command, args []string) error {
	actor, err := actorID()
	if err != nil {
		return err
	}
	body, err := templateBody()
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	tpl, err := app.Services.Templates.Create(cmd.Context(), service.CreateTemplateRequest{
		Name:        tplName,
		Type:        tplType,
		Category:    tplCategory,
		Description: tplDescription,
		Body:        body,
	}, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created template %q (%s)\n", tpl.Name, tpl.ID)
	return nil
}

func runTemplateUpdate(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}

	var req service.UpdateTemplateRequest
	flags := cmd.Flags()
	if flags.Changed("name") {
		req.Name = &tplName
	}
	if flags.Changed("type") {
		req.Type = &tplType
	}
	if flags.Changed("category") {
		req.Category = &tplCategory
	}
	if flags.Changed("description") {
		req.Description = &tplDescription
	}
	if flags.Changed("body") || flags.Changed("body-file") {
		body, err := templateBody()
		if err != nil {
			return err
		}
		req.Body = &body
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	tpl, err := app.Services.Templates.Update(cmd.Context(), id, req, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated template %q (version %d)\n", tpl.Name, tpl.Version)
	return nil
}

type templateOp func(*service.TemplateService, context.Context, uuid.UUID, uuid.UUID) (*models.Template, error)

func templateAction(cmd *cobra.Command, rawID string, op templateOp) error {
	id, err := service.ParseID(rawID)
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	tpl, err := op(app.Services.Templates, cmd.Context(), id, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %q (%s) active=%t\n", cmd.Name(), tpl.Name, tpl.ID, tpl.IsActive)
	return nil
}

func runTemplateDelete(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Services.Templates.Delete(cmd.Context(), id, actor); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", id)
	return nil
}

func runTemplateBulk(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args[1:])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Services.Templates.BulkAction(cmd.Context(), args[0], ids, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d of %d templates affected\n", res.Action, res.Affected, res.Requested)
	return nil
}

func runTemplateStats(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.Services.Templates.UsageStatistics(cmd.Context(), id)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Template:          %s\n", stats.Name)
	fmt.Fprintf(out, "Usage count:       %d\n", stats.UsageCount)
	fmt.Fprintf(out, "Documents created: %d\n", stats.DocumentsCreated)
	if len(stats.RecentDocuments) == 0 {
		return nil
	}
	fmt.Fprintln(out, "\nRecent documents:")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENTITY\tVERSION\tSTATUS\tCREATED")
	for _, d := range stats.RecentDocuments {
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%d\t%s\t%s\n", d.ID, truncate(d.Name, 40), d.EntityType, d.EntityID, d.Version, d.Status, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runTemplatePreview(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	sample, err := parseData(tplPreviewData, tplPreviewSet)
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Services.Templates.Preview(cmd.Context(), id, sample)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res.Content)
	if len(res.Missing) > 0 {
		fmt.Fprintf(out, "\nMissing values: %v\n", res.Missing)
	}
	return nil
}

func runTemplateExport(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	format, err := templatefile.ParseFormat(tplExportFormat)
	if tplExportOutput != "" && !cmd.Flags().Changed("format") {
		format, err = templatefile.FormatFromPath(tplExportOutput)
	}
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	data, err := app.Services.Templates.Export(cmd.Context(), id, format)
	if err != nil {
		return err
	}
	if tplExportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(tplExportOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tplExportOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported template to %s\n", tplExportOutput)
	return nil
}

func runTemplateImport(cmd *cobra.Command, args []string) error {
	actor, err := actorID()
	if err != nil {
		return err
	}

	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := templatefile.Glob(arg, tplImportGlob)
		if err != nil {
			return err
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no template files found")
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	for _, path := range paths {
		format, err := templatefile.FormatFromPath(path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		tpl, err := app.Services.Templates.Import(cmd.Context(), data, format, actor)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %q (%s)\n", path, tpl.Name, tpl.ID)
	}
	return nil
}
