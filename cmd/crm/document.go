package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tahakubilay/Full-CRM-Claude/internal/models"
	"github.com/tahakubilay/Full-CRM-Claude/internal/service"
	"github.com/tahakubilay/Full-CRM-Claude/internal/store"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Generate and manage documents",
}

var (
	genTemplate   string
	genEntityType string
	genEntityID   string
	genName       string
	genData       string
	genSet        []string
)

var documentGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a document from a template for a CRM record",
	Long: `Generate a document from a template. current_date, current_time and
current_year always take the generation time. Other placeholders are filled
from the record's attributes, then from --data/--set values. The new document
starts a chain at version 1.

Examples:
  crm document generate --template <id> --entity-type company --entity-id <id>
  crm document generate --template <id> --entity-type person --entity-id <id> --set amount=100 --name "Offer"`,
	Args: cobra.NoArgs,
	RunE: runDocumentGenerate,
}

var (
	docName        string
	docType        string
	docEntityType  string
	docEntityID    string
	docTemplate    string
	docContent     string
	docContentFile string
	docDate        string
	docStatus      string
	docMetadata    string
	docMetadataSet []string
)

var documentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a document by hand",
	Args:  cobra.NoArgs,
	RunE:  runDocumentCreate,
}

var documentGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var (
	docListSearch     string
	docListType       string
	docListStatus     string
	docListEntityType string
	docListEntityID   string
	docListTemplate   string
	docListFrom       string
	docListTo         string
	docListSort       string
	docListOrder      string
	docListPage       int
	docListLimit      int
)

var documentListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List documents",
	Args:    cobra.NoArgs,
	RunE:    runDocumentList,
}

var documentVersionsCmd = &cobra.Command{
	Use:   "versions <id>",
	Short: "List every version in a document's chain",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentVersions,
}

var documentHistoryCmd = &cobra.Command{
	Use:   "history <name> <entity-type> <entity-id>",
	Short: "List every document sharing a name and entity",
	Args:  cobra.ExactArgs(3),
	RunE:  runDocumentHistory,
}

var documentNewVersionCmd = &cobra.Command{
	Use:   "new-version <id>",
	Short: "Copy a document into a new draft version at the head of its chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return documentAction(cmd, args[0], (*service.DocumentService).CreateVersion)
	},
}

var documentUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a document (content only while DRAFT)",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentUpdate,
}

var documentActivateCmd = &cobra.Command{
	Use:   "activate <id>",
	Short: "Move a draft document to ACTIVE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return documentAction(cmd, args[0], (*service.DocumentService).Activate)
	},
}

var documentArchiveCmd = &cobra.Command{
	Use:   "archive <id>",
	Short: "Archive a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return documentAction(cmd, args[0], (*service.DocumentService).Archive)
	},
}

var documentDuplicateCmd = &cobra.Command{
	Use:   "duplicate <id>",
	Short: "Copy a document into a new chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return documentAction(cmd, args[0], (*service.DocumentService).Duplicate)
	},
}

var documentDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete the head version of a chain",
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentDelete,
}

var documentBulkCmd = &cobra.Command{
	Use:   "bulk <delete|archive|activate> <id>...",
	Short: "Apply an action to several documents",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDocumentBulk,
}

func init() {
	documentGenerateCmd.Flags().StringVarP(&genTemplate, "template", "t", "", "Template id (required)")
	documentGenerateCmd.Flags().StringVar(&genEntityType, "entity-type", "", "company, brand, branch or person (required)")
	documentGenerateCmd.Flags().StringVar(&genEntityID, "entity-id", "", "Record id (required)")
	documentGenerateCmd.Flags().StringVar(&genName, "name", "", "Document name")
	documentGenerateCmd.Flags().StringVar(&genData, "data", "", "Extra values as a JSON object")
	documentGenerateCmd.Flags().StringArrayVar(&genSet, "set", nil, "Extra value as key=value (repeatable)")
	documentGenerateCmd.MarkFlagRequired("template")
	documentGenerateCmd.MarkFlagRequired("entity-type")
	documentGenerateCmd.MarkFlagRequired("entity-id")

	for _, c := range []*cobra.Command{documentCreateCmd, documentUpdateCmd} {
		c.Flags().StringVar(&docName, "name", "", "Document name")
		c.Flags().StringVar(&docType, "type", "", "Document type")
		c.Flags().StringVar(&docContent, "content", "", "Document content")
		c.Flags().StringVar(&docContentFile, "content-file", "", "Read the content from a file")
		c.Flags().StringVar(&docDate, "date", "", "Document date (YYYY-MM-DD)")
		c.Flags().StringVar(&docMetadata, "metadata", "", "Metadata as a JSON object")
		c.Flags().StringArrayVar(&docMetadataSet, "set", nil, "Metadata value as key=value (repeatable)")
	}
	documentCreateCmd.Flags().StringVar(&docEntityType, "entity-type", "", "company, brand, branch or person (required)")
	documentCreateCmd.Flags().StringVar(&docEntityID, "entity-id", "", "Record id (required)")
	documentCreateCmd.Flags().StringVarP(&docTemplate, "template", "t", "", "Template whose body is copied when --content is empty")
	documentCreateCmd.Flags().StringVar(&docStatus, "status", "", "Initial status (default DRAFT)")

	documentListCmd.Flags().StringVarP(&docListSearch, "search", "q", "", "Search name, type and content")
	documentListCmd.Flags().StringVar(&docListType, "type", "", "Filter by type")
	documentListCmd.Flags().StringVar(&docListStatus, "status", "", "Filter by status")
	documentListCmd.Flags().StringVar(&docListEntityType, "entity-type", "", "Filter by entity type")
	documentListCmd.Flags().StringVar(&docListEntityID, "entity-id", "", "Filter by entity id")
	documentListCmd.Flags().StringVarP(&docListTemplate, "template", "t", "", "Filter by template id")
	documentListCmd.Flags().StringVar(&docListFrom, "from", "", "Document date on or after")
	documentListCmd.Flags().StringVar(&docListTo, "to", "", "Document date on or before")
	documentListCmd.Flags().StringVar(&docListSort, "sort", "createdAt", "Sort by createdAt, updatedAt, name, documentDate or version")
	documentListCmd.Flags().StringVar(&docListOrder, "order", "desc", "Sort order: asc or desc")
	documentListCmd.Flags().IntVar(&docListPage, "page", 1, "Page number")
	documentListCmd.Flags().IntVar(&docListLimit, "limit", 10, "Page size (max 100)")

	documentCmd.AddCommand(documentGenerateCmd)
	documentCmd.AddCommand(documentCreateCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentVersionsCmd)
	documentCmd.AddCommand(documentHistoryCmd)
	documentCmd.AddCommand(documentNewVersionCmd)
	documentCmd.AddCommand(documentUpdateCmd)
	documentCmd.AddCommand(documentActivateCmd)
	documentCmd.AddCommand(documentArchiveCmd)
	documentCmd.AddCommand(documentDuplicateCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentBulkCmd)
}

func runDocumentGenerate(cmd *cobra.Command, args []string) error {
	tplID, err := service.ParseID(genTemplate)
	if err != nil {
		return err
	}
	data, err := parseData(genData, genSet)
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

	doc, err := app.Services.Documents.GenerateFromTemplate(cmd.Context(), service.GenerateRequest{
		TemplateID: tplID,
		EntityType: genEntityType,
		EntityID:   genEntityID,
		Data:       data,
		Name:       genName,
	}, actor)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Generated %q (%s) version %d\n\n", doc.Name, doc.ID, doc.Version)
	fmt.Fprintln(out, doc.Content)
	return nil
}

func documentContent() (string, error) {
	if docContentFile == "" {
		return docContent, nil
	}
	data, err := os.ReadFile(docContentFile)
	if err != nil {
		return "", fmt.Errorf("failed to read content file: %w", err)
	}
	return string(data), nil
}

func runDocumentCreate(cmd *cobra.Command, args []string) error {
	actor, err := actorID()
	if err != nil {
		return err
	}
	content, err := documentContent()
	if err != nil {
		return err
	}
	date, err := parseDate(docDate)
	if err != nil {
		return err
	}
	metadata, err := parseData(docMetadata, docMetadataSet)
	if err != nil {
		return err
	}
	req := service.CreateDocumentRequest{
		Name:         docName,
		Type:         docType,
		EntityType:   docEntityType,
		EntityID:     docEntityID,
		Content:      content,
		Metadata:     metadata,
		DocumentDate: date,
		Status:       docStatus,
	}
	if docTemplate != "" {
		id, err := service.ParseID(docTemplate)
		if err != nil {
			return err
		}
		req.TemplateID = &id
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	doc, err := app.Services.Documents.Create(cmd.Context(), req, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created document %q (%s)\n", doc.Name, doc.ID)
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	doc, err := app.Services.Documents.Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), doc)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	from, err := parseDate(docListFrom)
	if err != nil {
		return err
	}
	to, err := parseDate(docListTo)
	if err != nil {
		return err
	}
	f := store.DocumentFilter{
		Paging:     store.Paging{Page: docListPage, Limit: docListLimit},
		Search:     docListSearch,
		Type:       docListType,
		Status:     models.DocumentStatus(strings.ToUpper(docListStatus)),
		EntityType: docListEntityType,
		EntityID:   docListEntityID,
		StartDate:  from,
		EndDate:    to,
		SortBy:     docListSort,
		SortOrder:  docListOrder,
	}
	if docListTemplate != "" {
		id, err := service.ParseID(docListTemplate)
		if err != nil {
			return err
		}
		f.TemplateID = &id
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	page, err := app.Services.Documents.List(cmd.Context(), f)
	if err != nil {
		return err
	}
	if err := printDocuments(cmd, page.Items); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nPage %d of %d (%d documents)\n", page.Page, page.TotalPages, page.Total)
	return nil
}

func printDocuments(cmd *cobra.Command, docs []models.Document) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENTITY\tVERSION\tSTATUS\tUPDATED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s/%s\t%d\t%s\t%s\n",
			d.ID, truncate(d.Name, 40), d.EntityType, d.EntityID, d.Version, d.Status,
			d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runDocumentVersions(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	docs, err := app.Services.Documents.GetVersions(cmd.Context(), id)
	if err != nil {
		return err
	}
	return printDocuments(cmd, docs)
}

func runDocumentHistory(cmd *cobra.Command, args []string) error {
	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	docs, err := app.Services.Documents.History(cmd.Context(), args[0], args[1], args[2])
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No documents found")
		return nil
	}
	return printDocuments(cmd, docs)
}

func runDocumentUpdate(cmd *cobra.Command, args []string) error {
	id, err := service.ParseID(args[0])
	if err != nil {
		return err
	}
	actor, err := actorID()
	if err != nil {
		return err
	}

	var req service.UpdateDocumentRequest
	flags := cmd.Flags()
	if flags.Changed("name") {
		req.Name = &docName
	}
	if flags.Changed("type") {
		req.Type = &docType
	}
	if flags.Changed("content") || flags.Changed("content-file") {
		content, err := documentContent()
		if err != nil {
			return err
		}
		req.Content = &content
	}
	if flags.Changed("date") {
		if req.DocumentDate, err = parseDate(docDate); err != nil {
			return err
		}
	}
	if flags.Changed("metadata") || flags.Changed("set") {
		if req.Metadata, err = parseData(docMetadata, docMetadataSet); err != nil {
			return err
		}
	}

	app, err := openApp()
	if err != nil {
		return err
	}
	defer app.Close()

	doc, err := app.Services.Documents.Update(cmd.Context(), id, req, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated document %q (%s)\n", doc.Name, doc.ID)
	return nil
}

type documentOp func(*service.DocumentService, context.Context, uuid.UUID, uuid.UUID) (*models.Document, error)

func documentAction(cmd *cobra.Command, rawID string, op documentOp) error {
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

	doc, err := op(app.Services.Documents, cmd.Context(), id, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %q (%s) version %d status %s\n", cmd.Name(), doc.Name, doc.ID, doc.Version, doc.Status)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
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

	if err := app.Services.Documents.Delete(cmd.Context(), id, actor); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted document %s\n", id)
	return nil
}

func runDocumentBulk(cmd *cobra.Command, args []string) error {
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

	res, err := app.Services.Documents.BulkAction(cmd.Context(), args[0], ids, actor)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d of %d documents affected\n", res.Action, res.Affected, res.Requested)
	for _, id := range res.Skipped {
		fmt.Fprintf(out, "  skipped %s\n", id)
	}
	return nil
}
