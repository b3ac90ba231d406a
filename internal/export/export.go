// Package export writes batch extraction results as XLSX workbooks or JSON.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/pipeline"
)

// SheetName is the worksheet the results are written to.
const SheetName = "Documents"

// Row status values.
const (
	StatusOK     = "ok"
	StatusNoText = "no_text"
	StatusError  = "error"
)

// fixedHeaders precede the record field columns.
var fixedHeaders = []string{"File", "Document", "Status", "Error", "Detections", "Duration (ms)"}

// Row is the flattened form of one batch result.
type Row struct {
	Name       string            `json:"name"`
	Document   string            `json:"document_type,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Detections int               `json:"detections"`
	DurationMS int64             `json:"duration_ms"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// Status classifies a batch result.
func Status(r pipeline.BatchResult) string {
	switch {
	case r.Err == nil:
		return StatusOK
	case pipeline.IsNoText(r.Err):
		return StatusNoText
	default:
		return StatusError
	}
}

// Fields flattens a record into its JSON field names and string values.
// List values are joined with " | ".
func Fields(rec extract.Record) (map[string]string, error) {
	if rec == nil {
		return nil, nil
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s record: %w", rec.DocumentType(), err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to flatten %s record: %w", rec.DocumentType(), err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = cellText(v)
	}
	return out, nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, cellText(e))
		}
		return strings.Join(parts, " | ")
	default:
		return fmt.Sprint(x)
	}
}

// Rows flattens results, keeping their order.
func Rows(results []pipeline.BatchResult) ([]Row, error) {
	rows := make([]Row, 0, len(results))
	for _, r := range results {
		row := Row{Name: r.Name, Status: Status(r)}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		if out := r.Outcome; out != nil {
			row.Document = string(out.Document)
			row.Detections = len(out.Detections)
			row.DurationMS = out.Duration.Milliseconds()
			fields, err := Fields(out.Record)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", r.Name, err)
			}
			row.Fields = fields
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Columns returns the sorted union of field names across rows.
func Columns(rows []Row) []string {
	var cols []string
	for _, r := range rows {
		for k := range r.Fields {
			if !slices.Contains(cols, k) {
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return cols
}

// WriteXLSX writes one worksheet row per result.
func WriteXLSX(w io.Writer, results []pipeline.BatchResult) error {
	rows, err := Rows(results)
	if err != nil {
		return err
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	cols := Columns(rows)
	headers := append(slices.Clone(fixedHeaders), cols...)
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}

	for i, r := range rows {
		line := i + 2
		values := []any{r.Name, r.Document, r.Status, r.Error, r.Detections, r.DurationMS}
		for _, c := range cols {
			values = append(values, r.Fields[c])
		}
		cell, _ := excelize.CoordinatesToCellName(1, line)
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("xlsx row %d: %w", line, err)
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 32)
	_ = f.SetColWidth(SheetName, "B", "C", 14)
	_ = f.SetColWidth(SheetName, "D", "D", 40)
	if len(cols) > 0 {
		first, _ := excelize.ColumnNumberToName(len(fixedHeaders) + 1)
		last, _ := excelize.ColumnNumberToName(len(headers))
		_ = f.SetColWidth(SheetName, first, last, 24)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// WriteJSON writes the flattened rows as an indented JSON array.
func WriteJSON(w io.Writer, results []pipeline.BatchResult) error {
	rows, err := Rows(results)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// ErrUnsupportedFormat is returned for output paths that are neither
// .xlsx nor .json.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// WriteFile picks the format from the extension of path.
func WriteFile(path string, results []pipeline.BatchResult) (err error) {
	var write func(io.Writer, []pipeline.BatchResult) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		write = WriteXLSX
	case ".json":
		write = WriteJSON
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Create(path) //nolint:gosec // G304: output path comes from the command line
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return write(f, results)
}
