package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cfdi-tracker/internal/export"
	"github.com/joseph-ayodele/cfdi-tracker/internal/ingest"
)

func (a *app) extractCmd() *cobra.Command {
	var dir, out string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract every .xml file under a directory and write an XLSX report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir == "" {
				return errors.New("--dir is required")
			}
			if out == "" {
				out = filepath.Join(filepath.Dir(filepath.Clean(dir)), export.FileName(time.Now()))
			}
			ctx := cmd.Context()

			uploads, pathErrs, stats, err := ingest.Directory(dir, true)
			if err != nil {
				return fmt.Errorf("scan %s: %w", dir, err)
			}
			for _, pe := range pathErrs {
				a.logger.Warn("ingest.path.failed", "path", pe.Path, "err", pe.Err)
			}
			a.logger.Info("ingest.directory.scanned",
				"dir", dir,
				"scanned", stats.Scanned,
				"matched", stats.Matched,
				"skipped", stats.Skipped,
				"failed", stats.Failed,
			)

			agg, err := a.aggregator(nil)
			if err != nil {
				return err
			}
			res, err := agg.Process(ctx, uploads)
			if err != nil {
				return err
			}

			data, err := export.BuildXLSX(res.Records)
			if err != nil {
				return fmt.Errorf("build xlsx: %w", err)
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Extraction complete!\n")
			fmt.Fprintf(w, "- Files processed: %d\n", len(res.Records))
			fmt.Fprintf(w, "- Succeeded: %d\n", res.Succeeded)
			fmt.Fprintf(w, "- Failed: %d\n", res.Failed)
			for _, f := range res.FailedFiles {
				fmt.Fprintf(w, "    %s\n", f)
			}
			if len(res.Rejected) > 0 {
				fmt.Fprintf(w, "- Rejected: %d\n", len(res.Rejected))
				for _, r := range res.Rejected {
					fmt.Fprintf(w, "    %s: %s\n", r.FileName, r.Reason)
				}
			}
			fmt.Fprintf(w, "- Output: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to process (required)")
	cmd.Flags().StringVar(&out, "out", "", "output XLSX path (defaults to a timestamped file next to --dir)")
	return cmd
}
