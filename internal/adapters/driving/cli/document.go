package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:     "document",
	Aliases: []string{"doc"},
	Short:   "Manage documents",
	Long:    `Upload, process, inspect and delete documents.`,
}

var documentUploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload and process documents",
	Long: `Uploads each file and, unless --no-process is given, splits and indexes it.
A file that fails processing is reported and left in the failed state.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDocumentUpload,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentChunksCmd = &cobra.Command{
	Use:   "chunks [doc-id]",
	Short: "Print document chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentChunks,
}

var documentProcessCmd = &cobra.Command{
	Use:   "process [doc-id]",
	Short: "Process an uploaded or failed document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentProcess,
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its index entries",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentDelete,
}

var documentSummariseCmd = &cobra.Command{
	Use:     "summarise [doc-id]",
	Aliases: []string{"summarize"},
	Short:   "Summarise a ready document",
	Args:    cobra.ExactArgs(1),
	RunE:    runDocumentSummarise,
}

var (
	uploadNoProcess bool
	listSkip        int
	listLimit       int
	chunksFull      bool
)

const chunkPreviewLength = 200

func init() {
	documentUploadCmd.Flags().BoolVar(&uploadNoProcess, "no-process", false, "upload without processing")
	documentListCmd.Flags().IntVar(&listSkip, "skip", 0, "number of documents to skip")
	documentListCmd.Flags().IntVarP(&listLimit, "limit", "n", 20, "maximum number of documents")
	documentChunksCmd.Flags().BoolVar(&chunksFull, "full", false, "print whole chunks instead of previews")

	documentCmd.AddCommand(documentUploadCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentChunksCmd)
	documentCmd.AddCommand(documentProcessCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	documentCmd.AddCommand(documentSummariseCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentUpload(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}
	ctx := commandContext(cmd)

	failed := 0
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		req := domain.UploadRequest{Filename: filepath.Base(path), Content: content}

		var doc *domain.Document
		if uploadNoProcess {
			doc, err = documentService.Upload(ctx, req)
		} else {
			doc, err = documentService.Ingest(ctx, req)
		}
		if err != nil {
			return explain("failed to upload "+path, err)
		}

		switch doc.Status {
		case domain.StatusFailed:
			failed++
			cmd.Printf("%s  %s  failed: %s\n", doc.ID, doc.Filename, doc.FailureReason)
		case domain.StatusReady:
			cmd.Printf("%s  %s  ready (%d chunks)\n", doc.ID, doc.Filename, doc.ChunkCount)
		default:
			cmd.Printf("%s  %s  %s\n", doc.ID, doc.Filename, doc.Status)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed processing", failed, len(args))
	}
	return nil
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(commandContext(cmd), listSkip, listLimit)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s  %-10s  %s\n", docs[i].ID, docs[i].Status, docs[i].Filename)
		if docs[i].FailureReason != "" {
			cmd.Printf("      %s\n", docs[i].FailureReason)
		}
	}
	cmd.Println()
	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	doc, err := documentService.Get(commandContext(cmd), args[0])
	if err != nil {
		return explain("failed to get document", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Filename: %s\n", doc.Filename)
	cmd.Printf("  Type:     %s\n", doc.FileType)
	cmd.Printf("  Size:     %d bytes\n", doc.Size)
	cmd.Printf("  Status:   %s\n", doc.Status)
	if doc.FailureReason != "" {
		cmd.Printf("  Reason:   %s\n", doc.FailureReason)
	}
	cmd.Printf("  Chunks:   %d\n", doc.ChunkCount)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if doc.ReadyAt != nil {
		cmd.Printf("  Ready:    %s\n", doc.ReadyAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runDocumentChunks(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	chunks, err := documentService.Chunks(commandContext(cmd), args[0])
	if err != nil {
		return explain("failed to get chunks", err)
	}

	if len(chunks) == 0 {
		cmd.Println("No chunks. Documents have chunks once they are ready.")
		return nil
	}

	for i := range chunks {
		c := &chunks[i]
		cmd.Printf("[%d] chars %d-%d, %d tokens\n", c.Index, c.StartChar, c.EndChar, c.Tokens)
		content := c.Content
		if !chunksFull {
			content = previewText(content, chunkPreviewLength)
		}
		cmd.Printf("    %s\n\n", content)
	}
	return nil
}

func runDocumentProcess(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	cmd.Printf("Processing %s...\n", args[0])
	doc, err := documentService.Process(commandContext(cmd), args[0])
	if err != nil {
		return explain("failed to process document", err)
	}
	if doc.Status == domain.StatusFailed {
		return fmt.Errorf("processing failed: %s", doc.FailureReason)
	}

	cmd.Printf("Document %s is %s (%d chunks).\n", doc.ID, doc.Status, doc.ChunkCount)
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Delete(commandContext(cmd), args[0]); err != nil {
		return explain("failed to delete document", err)
	}

	cmd.Printf("Deleted document: %s\n", args[0])
	return nil
}

func runDocumentSummarise(cmd *cobra.Command, args []string) error {
	if summaryService == nil {
		return errors.New("summary service not configured")
	}

	summary, err := summaryService.Summarise(commandContext(cmd), args[0])
	if err != nil {
		return explain("failed to summarise document", err)
	}

	cmd.Println(summary)
	return nil
}

// previewText collapses whitespace and cuts text to n characters.
func previewText(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}
