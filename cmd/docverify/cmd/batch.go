package cmd

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/export"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

// imageExtensions are the file types batch picks up.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".bmp"}

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [directory]",
	Short: "Extract every document image in a directory",
	Long: `Extract the fields of every image in a directory as one document type
and export the results, one row per image.

The export format follows the output extension: .xlsx writes a workbook,
.json a JSON array.

Examples:
  docverify batch --type passport ./scans --output passports.xlsx
  docverify batch --type nicop-back --recursive --workers 4 ./uploads --output backs.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		typeName, _ := cmd.Flags().GetString("type")
		t, err := extract.ParseDocumentType(typeName)
		if err != nil {
			return err
		}
		output, _ := cmd.Flags().GetString("output")
		recursive, _ := cmd.Flags().GetBool("recursive")
		quiet, _ := cmd.Flags().GetBool("quiet")

		items, err := collectImages(args[0], recursive)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no images found in %s", args[0])
		}

		ctx := cmd.Context()
		p, err := buildPipeline(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := engine.ShutdownShared(); err != nil {
				slog.Warn("failed to close OCR engine", "error", err)
			}
		}()

		var progress pipeline.ProgressCallback = pipeline.NoOpProgressCallback{}
		if !quiet {
			progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Processing ")
		}

		start := time.Now()
		results := p.ProcessBatch(ctx, t, items, pipeline.BatchConfig{
			Workers:  cfg.Batch.Workers,
			Progress: progress,
		})
		stats := pipeline.CalculateBatchStats(results, time.Since(start))

		if err := export.WriteFile(output, results); err != nil {
			return err
		}
		slog.Info("batch exported", "output", output, "total", stats.Total,
			"succeeded", stats.Succeeded, "no_text", stats.NoText, "failed", stats.Failed)
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d documents: %d extracted, %d without text, %d failed -> %s\n",
			stats.Total, stats.Succeeded, stats.NoText, stats.Failed, output)
		return ctx.Err()
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().StringP("type", "t", "", "document type")
	_ = batchCmd.MarkFlagRequired("type")
	batchCmd.Flags().StringP("output", "o", "results.xlsx", "export file (.xlsx or .json)")
	batchCmd.Flags().IntP("workers", "w", 2, "number of documents processed in parallel")
	batchCmd.Flags().BoolP("recursive", "r", false, "include subdirectories")
	batchCmd.Flags().BoolP("quiet", "q", false, "do not print progress")

	_ = viper.BindPFlag("batch.workers", batchCmd.Flags().Lookup("workers"))
}

// collectImages lists image files under dir in lexical order.
func collectImages(dir string, recursive bool) ([]pipeline.BatchItem, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	var items []pipeline.BatchItem
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path))) {
			return nil
		}
		name, err := filepath.Rel(dir, path)
		if err != nil {
			name = path
		}
		items = append(items, pipeline.BatchItem{Name: name, Source: pipeline.FromPath(path)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return items, nil
}
