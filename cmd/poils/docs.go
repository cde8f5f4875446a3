package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/r1cksync/poils-cli/internal/api"
	"github.com/r1cksync/poils-cli/internal/docscan"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage uploaded documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List uploaded documents and their processing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		docs, err := a.client.Documents.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			printWarning("No documents uploaded yet")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATUS\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				d.ID, d.OriginalName, formatSize(d.FileSize),
				statusLabel(d.Status), d.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var docsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one document's details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		doc, err := a.client.Documents.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printStatus("Name", "%s", doc.OriginalName)
		printStatus("Size", "%s", formatSize(doc.FileSize))
		printStatus("Type", "%s", doc.MimeType)
		printStatus("Status", "%s", statusLabel(doc.Status))
		if doc.ChatID != "" {
			printStatus("Chat", "%s", doc.ChatID)
		}
		if doc.ErrorMessage != "" {
			printStatus("Error", "%s", doc.ErrorMessage)
		}
		if doc.ExtractedText != "" {
			fmt.Println(doc.ExtractedText)
		}
		return nil
	},
}

var docsUploadCmd = &cobra.Command{
	Use:   "upload <path>",
	Short: "Upload a document for digitization",
	Long: `Upload a document for digitization.

The file is inspected locally before any bytes leave the machine: empty
files and unsupported formats are rejected, and PDFs must parse.

Examples:
  poils docs upload ./lease.pdf
  poils docs upload --chat chat-42 ./scan.jpg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chatID, _ := cmd.Flags().GetString("chat")

		info, err := docscan.Inspect(args[0])
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		printStep("Uploading %s (%s, %s)", info.Name, info.MimeType, formatSize(info.Size))
		doc, err := a.client.Documents.Upload(cmd.Context(), f, info.Name, chatID)
		if err != nil {
			return err
		}
		printSuccess("Uploaded %s as %s", doc.OriginalName, doc.ID)
		printStatus("Status", "%s", statusLabel(doc.Status))
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an uploaded document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.requireAuth(cmd.Context()); err != nil {
			return err
		}

		if err := a.client.Documents.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess("Deleted document %s", args[0])
		return nil
	},
}

func init() {
	docsUploadCmd.Flags().String("chat", "", "attach the document to an existing conversation")

	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsShowCmd)
	docsCmd.AddCommand(docsUploadCmd)
	docsCmd.AddCommand(docsDeleteCmd)
}

func statusLabel(status string) string {
	switch status {
	case api.StatusCompleted:
		return colorize(colorGreen, status)
	case api.StatusFailed:
		return colorize(colorRed, status)
	default:
		return colorize(colorYellow, status)
	}
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
