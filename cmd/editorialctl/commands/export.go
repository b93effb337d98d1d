package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"editorial/api/internal/app"
	"editorial/api/internal/bootstrap"
	"editorial/api/internal/export"

	"github.com/spf13/cobra"
)

var (
	// Export flags
	exportBookID int64
	exportFormat string
	exportLang   string
	exportPaper  string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render a published book",
	Long: `Render the published chain of a book as HTML, PDF or DOCX.

Examples:
  editorialctl export --book 3                      # HTML named book-<number>-<title>-<lang>.html
  editorialctl export --book 3 --format pdf --lang fr --paper letter
  editorialctl export --book 3 --format docx -o handbook.docx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportBookID <= 0 {
			return errors.New("--book is required")
		}
		format, err := export.ParseFormat(exportFormat)
		if err != nil {
			return err
		}
		paper, err := export.ParsePaper(exportPaper)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Close()

		stack, err := bootstrap.Build(context.Background(), cfg, logger.Logger, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer stack.Close()

		result, err := stack.Service.ExportBook(cmd.Context(), exportBookID, app.ExportOptions{Format: format, Lang: exportLang, Paper: paper})
		if err != nil {
			return err
		}
		if result.URL != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s\n%s\n", result.Key, result.URL)
			return nil
		}

		path := exportOutput
		if path == "" {
			path = result.Filename
		}
		if err := os.WriteFile(path, result.Data, 0o644); err != nil {
			return fmt.Errorf("write export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, len(result.Data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Int64Var(&exportBookID, "book", 0, "Book id to export")
	exportCmd.Flags().StringVar(&exportFormat, "format", "html", "Output format: html, pdf or docx")
	exportCmd.Flags().StringVar(&exportLang, "lang", "en", "Preferred language: en or fr")
	exportCmd.Flags().StringVar(&exportPaper, "paper", "a4", "PDF page size: a4 or letter")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (defaults to the rendered filename)")
}
