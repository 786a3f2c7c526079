package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/intake-cli/internal/core/domain"
	"github.com/custodia-labs/intake-cli/internal/core/ports/driving"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [source-id] [file]",
	Short: "Upload a document through a source",
	Long: `Uploads a file through an interactive source. The source's upload
policy decides whether archives are expanded into one document per
member; --expand answers "yes" for sources configured to ask.`,
	Args: cobra.ExactArgs(2),
	RunE: runUpload,
}

var (
	uploadType     string
	uploadLanguage string
	uploadExpand   bool
	uploadTags     []string
	uploadMetadata []string
)

func init() {
	uploadCmd.Flags().StringVarP(&uploadType, "type", "t", "", "Document type")
	uploadCmd.Flags().StringVar(&uploadLanguage, "language", "", "ISO 639 language hint")
	uploadCmd.Flags().BoolVar(&uploadExpand, "expand", false,
		"Expand archives when the source policy asks")
	uploadCmd.Flags().StringArrayVar(&uploadTags, "tag", nil, "Tag to attach (repeatable)")
	uploadCmd.Flags().StringArrayVarP(&uploadMetadata, "metadata", "m", nil,
		"Metadata as key=value (repeatable)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	if uploadService == nil {
		return errors.New("upload service not configured")
	}

	sourceID, path := args[0], args[1]
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	query := url.Values{}
	for _, raw := range uploadMetadata {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid metadata flag %q, expected key=value", raw)
		}
		query.Set("metadata_"+key, value)
	}
	if len(uploadTags) > 0 {
		query.Set("tags", strings.Join(uploadTags, ","))
	}

	req := driving.UploadRequest{
		SourceID:     sourceID,
		DocumentType: uploadType,
		Language:     uploadLanguage,
		Query:        query,
		Args: domain.ActionArgs{
			Values: map[string]string{},
			File: &domain.UploadedFile{
				Filename: filepath.Base(path),
				Content:  content,
			},
		},
	}
	if uploadExpand {
		req.Args.Values["expand"] = "true"
	}

	ids, err := uploadService.Upload(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	if len(ids) == 0 {
		cmd.Println("No documents created (all members skipped).")
		return nil
	}
	cmd.Printf("Created %d document(s):\n", len(ids))
	for _, id := range ids {
		cmd.Printf("  %s\n", id)
	}
	return nil
}
