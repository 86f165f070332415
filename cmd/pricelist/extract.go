package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/export"
	"github.com/ralborta/pdf-microservice/internal/ingest"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

func newExtractCmd(root *rootOptions) *cobra.Command {
	var (
		filename string
		format   string
		out      string
		maxBytes int64
	)
	cmd := &cobra.Command{
		Use:   "extract [file|-]",
		Short: "Extract records from one text or XLSX file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := root.newService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var res entity.ExtractionResult
			if len(args) == 0 || args[0] == "-" {
				text, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				res = svc.ExtractText(ctx, extraction.TextRequest{Text: string(text), Filename: filename})
			} else {
				ing := ingest.NewFSIngestor(root.logger)
				ing.MaxBytes = maxBytes
				doc, err := ing.Load(args[0])
				if err != nil {
					return err
				}
				if filename != "" {
					doc.Filename = filename
				}
				res = svc.ExtractDocument(ctx, doc)
			}

			if out != "" && res.OK() {
				if err := writeXLSX(out, res.Records, root); err != nil {
					return err
				}
			}
			if err := writeOutput(cmd.OutOrStdout(), format, res); err != nil {
				return err
			}
			if !res.OK() {
				return errResultNotOK
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filename, "filename", "", "filename hint used for profile detection")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	cmd.Flags().StringVarP(&out, "out", "o", "", "also write the records to this XLSX file")
	cmd.Flags().Int64Var(&maxBytes, "max-bytes", 0, "reject input files larger than this (0 = no limit)")
	return cmd
}

func writeXLSX(path string, records []entity.ProductRecord, root *rootOptions) error {
	b, err := export.WriteProductsXLSX(records, root.logger)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
