package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/docverify/internal/engine"
	"github.com/MeKo-Tech/docverify/internal/export"
	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatText = "text"
)

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract [image]",
	Short: "Extract the fields of one document image",
	Long: `Extract the printed fields of a single document image.

Supported document types: nicop-front, nicop-back, passport, iqama,
saudi-national-id.

Examples:
  docverify extract --type nicop-front card.jpg
  docverify extract --type iqama --iqama-mode extended --format yaml iqama.png
  docverify extract --type passport --details scan.png`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		typeName, _ := cmd.Flags().GetString("type")
		t, err := extract.ParseDocumentType(typeName)
		if err != nil {
			return err
		}
		details, _ := cmd.Flags().GetBool("details")

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

		out, err := p.Process(ctx, t, pipeline.FromPath(args[0]))
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}

		w := cmd.OutOrStdout()
		if cfg.Output.File != "" {
			f, err := os.Create(cfg.Output.File) //nolint:gosec // G304: output path comes from the command line
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}

		var v any = out.Record
		if details {
			v = out
		}
		return writeResult(w, cfg.Output.Format, v)
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().StringP("type", "t", "", "document type")
	_ = extractCmd.MarkFlagRequired("type")
	extractCmd.Flags().StringP("format", "f", formatJSON, "output format (json, yaml, text)")
	extractCmd.Flags().StringP("output-file", "o", "", "write output to file instead of stdout")
	extractCmd.Flags().String("iqama-mode", "minimal", "iqama extraction mode (minimal, extended)")
	extractCmd.Flags().String("rules", "", "YAML file overriding the extraction rules")
	extractCmd.Flags().String("visualize-dir", "", "write an annotated detection image to this directory")
	extractCmd.Flags().Bool("details", false, "include detections and pass summaries in the output")

	_ = viper.BindPFlag("output.format", extractCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("output.file", extractCmd.Flags().Lookup("output-file"))
	_ = viper.BindPFlag("extract.iqama_mode", extractCmd.Flags().Lookup("iqama-mode"))
	_ = viper.BindPFlag("extract.rules_file", extractCmd.Flags().Lookup("rules"))
	_ = viper.BindPFlag("server.visualization_dir", extractCmd.Flags().Lookup("visualize-dir"))
}

// writeResult renders v as JSON, YAML or "key: value" lines.
func writeResult(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case formatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Go through JSON so YAML keys match the JSON field names.
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	case formatText:
		return writeText(w, v)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func toGeneric(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeText(w io.Writer, v any) error {
	var rec extract.Record
	switch x := v.(type) {
	case extract.Record:
		rec = x
	case *pipeline.Outcome:
		rec = x.Record
		_, _ = fmt.Fprintf(w, "document: %s\ndetections: %d\nduration: %s\n", x.Document, len(x.Detections), x.Duration)
	default:
		return fmt.Errorf("cannot render %T as text", v)
	}
	fields, err := export.Fields(rec)
	if err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		if _, err := fmt.Fprintf(w, "%s: %s\n", k, fields[k]); err != nil {
			return err
		}
	}
	return nil
}
