package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Inspect ingested documents",
	Long:  `List documents per source and view their files, versions, and events.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list [source-id]",
	Short: "List documents for a source",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentList,
}

var documentShowCmd = &cobra.Command{
	Use:   "show [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentShow,
}

var documentEventsCmd = &cobra.Command{
	Use:   "events [doc-id]",
	Short: "Show a document's event history",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentEvents,
}

func init() {
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentShowCmd)
	documentCmd.AddCommand(documentEventsCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	sourceID := args[0]
	docs, err := documentStore.ListDocuments(cmd.Context(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Printf("No documents found for source: %s\n", sourceID)
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Label: %s\n", docs[i].Label)
		if docs[i].DocumentType != "" {
			cmd.Printf("    Type:  %s\n", docs[i].DocumentType)
		}
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentShow(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	ctx := cmd.Context()
	doc, err := documentStore.GetDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Label:    %s\n", doc.Label)
	cmd.Printf("  Source:   %s\n", doc.SourceID)
	if doc.DocumentType != "" {
		cmd.Printf("  Type:     %s\n", doc.DocumentType)
	}
	if doc.Language != "" {
		cmd.Printf("  Language: %s\n", doc.Language)
	}
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Updated:  %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(doc.Metadata) > 0 {
		cmd.Println("\n  Metadata:")
		for k, v := range doc.Metadata {
			cmd.Printf("    %s: %s\n", k, v)
		}
	}
	if len(doc.Tags) > 0 {
		cmd.Printf("\n  Tags: %s\n", strings.Join(doc.Tags, ", "))
	}
	if len(doc.Cabinets) > 0 {
		cmd.Printf("  Cabinets: %s\n", strings.Join(doc.Cabinets, ", "))
	}

	files, err := documentStore.ListFiles(ctx, doc.ID)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	if len(files) > 0 {
		cmd.Println("\n  Files:")
		for _, file := range files {
			cmd.Printf("    %s  %s (%d bytes, %s)\n",
				file.ID, file.Filename, file.Size, file.MIMEType)
		}
	}

	return nil
}

func runDocumentEvents(cmd *cobra.Command, args []string) error {
	if documentStore == nil {
		return errors.New("document store not configured")
	}

	events, err := documentStore.ListEvents(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}

	if len(events) == 0 {
		cmd.Println("No events recorded.")
		return nil
	}

	for _, event := range events {
		line := fmt.Sprintf("%s  %s",
			event.CreatedAt.Format("2006-01-02 15:04:05"), event.Name)
		if event.TargetID != "" {
			line += "  " + event.TargetID
		}
		if event.UserID != "" {
			line += "  by " + event.UserID
		}
		cmd.Println(line)
	}
	return nil
}
