package main

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ralborta/pdf-microservice/internal/ingest"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

func newBatchCmd(root *rootOptions) *cobra.Command {
	var (
		workers    int
		timeout    time.Duration
		outDir     string
		skipHidden bool
		exts       []string
		watch      bool
		debounce   time.Duration
		format     string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir> [dir...]",
		Short: "Extract every supported file under a directory, optionally watching for new ones",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := root.newService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			ing := ingest.NewFSIngestor(root.logger)
			if len(exts) > 0 {
				ing.AllowedExts = ingest.ParseExts(exts)
			}

			if watch {
				out := cmd.OutOrStdout()
				err := svc.Watch(ctx, ing, extraction.WatchOptions{
					Roots:      args,
					SkipHidden: skipHidden,
					Debounce:   debounce,
					OutDir:     outDir,
				}, func(f extraction.BatchFile) {
					if err := writeOutput(out, format, f); err != nil {
						root.logger.Warn("batch.watch.output_failed", "path", f.Path, "error", err)
					}
				})
				if errors.Is(err, ctx.Err()) {
					return nil
				}
				return err
			}

			failed := false
			for _, dir := range args {
				report, err := svc.RunBatch(ctx, ing, extraction.BatchOptions{
					Root:       dir,
					SkipHidden: skipHidden,
					Workers:    workers,
					Timeout:    timeout,
					OutDir:     outDir,
				})
				if err != nil {
					return err
				}
				if err := writeOutput(cmd.OutOrStdout(), format, report); err != nil {
					return err
				}
				failed = failed || report.Failed > 0 || report.Invalid > 0
			}
			if failed {
				return errResultNotOK
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&workers, "workers", "w", 4, "files extracted concurrently")
	f.DurationVar(&timeout, "timeout", 5*time.Minute, "per-file extraction timeout")
	f.StringVar(&outDir, "out-dir", "", "write one XLSX per successful file into this directory")
	f.BoolVar(&skipHidden, "skip-hidden", true, "ignore dot files and dot directories")
	f.StringSliceVar(&exts, "ext", nil, "file extensions to pick up (default txt,text,xlsx)")
	f.BoolVar(&watch, "watch", false, "keep running and extract files as they appear")
	f.DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before a changed file is extracted")
	f.StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}
