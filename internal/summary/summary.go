// Package summary writes and renders the per-configuration result
// files. Each training configuration produces one JSON summary holding
// the run parameters plus, per output column and metric, the raw
// per-seed values, their mean and standard deviation, and a rounded
// display string.
package summary

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/eamonbyrne/promoter-models/internal/metrics"
)

// FileName returns the summary file name for a run name format.
func FileName(nameFormat string) string {
	return nameFormat + "_dlseed.json"
}

// Write merges the run parameters with the aggregated metrics and
// writes the summary JSON, returning its path.
func Write(dir, nameFormat string, params map[string]any, agg *metrics.Aggregator) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create summaries directory: %w", err)
	}

	doc := make(map[string]any, len(params))
	for k, v := range params {
		doc[k] = v
	}
	for k, v := range agg.Summarize() {
		doc[k] = sanitize(v)
	}

	path := filepath.Join(dir, FileName(nameFormat))
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}

// sanitize maps non-finite metric values to null: tiny percentile
// subsets can yield NaN correlations, which JSON cannot carry.
func sanitize(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return x
	case []float64:
		out := make([]any, len(x))
		for i, f := range x {
			out[i] = sanitize(f)
		}
		return out
	default:
		return v
	}
}

// Read loads a summary JSON file.
func Read(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary: %w", err)
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse summary %s: %w", path, err)
	}
	return doc, nil
}

// dispSuffix marks the pre-rendered "mean +- std" entries.
const dispSuffix = "_disp"

// Render prints the display entries of a summary as a table, one row
// per output/metric pair, sorted by key.
func Render(w io.Writer, doc map[string]any) {
	type row struct{ output, metric, value string }
	var rows []row
	for k, v := range doc {
		if !strings.HasSuffix(k, dispSuffix) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		// key shape: {output}_avg_{metric}_disp
		trimmed := strings.TrimSuffix(k, dispSuffix)
		i := strings.LastIndex(trimmed, "_avg_")
		if i < 0 {
			continue
		}
		rows = append(rows, row{output: trimmed[:i], metric: trimmed[i+len("_avg_"):], value: s})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].output != rows[j].output {
			return rows[i].output < rows[j].output
		}
		return rows[i].metric < rows[j].metric
	})

	if len(rows) == 0 {
		fmt.Fprintln(w, "(no aggregated metrics)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Output", "Metric", "Mean +- Std"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.output, r.metric, r.value})
	}
	t.Render()
}

// List returns the summary files under dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read summaries directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "_dlseed.json") {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}
