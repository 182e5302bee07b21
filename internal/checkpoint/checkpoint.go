// Package checkpoint manages checkpoint files named after the monitored
// validation metric, plus the done sentinel that marks a finished
// training run. Filenames look like
//
//	best-07-val_FluorescenceData_mean_SpearmanR=0.61237.ckpt
//
// and a duplicate name gets a -v1, -v2, ... suffix before the extension.
package checkpoint

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	// Ext is the checkpoint file extension.
	Ext = ".ckpt"
	// DoneFile marks a training directory as complete.
	DoneFile = "done.txt"
)

// Direction says whether the monitored metric is optimal when minimized
// or maximized.
type Direction string

const (
	Min Direction = "min"
	Max Direction = "max"
)

// ParseDirection validates a direction flag value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Min, Max:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("invalid metric direction %q: must be %q or %q", s, Min, Max)
	}
}

// Better reports whether candidate improves on best under the direction.
func (d Direction) Better(candidate, best float64) bool {
	if d == Min {
		return candidate < best
	}
	return candidate > best
}

// Worst is the sentinel starting value for a best-so-far comparison.
func (d Direction) Worst() float64 {
	if d == Min {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// Filename renders the checkpoint filename for an epoch and monitored
// metric value.
func Filename(epoch int, metric string, value float64) string {
	return fmt.Sprintf("best-%02d-%s=%.5f%s", epoch, metric, value, Ext)
}

var versionSuffix = regexp.MustCompile(`-v\d+$`)

// ParseValue extracts the metric value embedded in a checkpoint filename.
// The value is everything after the last "=", with the extension and any
// -vN duplicate suffix stripped.
func ParseValue(name string) (float64, error) {
	base := strings.TrimSuffix(filepath.Base(name), Ext)
	idx := strings.LastIndex(base, "=")
	if idx < 0 {
		return 0, fmt.Errorf("checkpoint name %q has no metric value", name)
	}
	raw := versionSuffix.ReplaceAllString(base[idx+1:], "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("checkpoint name %q has unparseable metric value: %w", name, err)
	}
	return value, nil
}

// UniquePath returns a path in dir for name that does not collide with an
// existing file, appending -v1, -v2, ... before the extension as needed.
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	base := strings.TrimSuffix(name, Ext)
	for v := 1; ; v++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-v%d%s", base, v, Ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}

// FindBest scans dir for checkpoint files and returns the path of the one
// whose embedded metric value is optimal under direction.
func FindBest(dir string, direction Direction) (string, float64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	best := direction.Worst()
	bestPath := ""
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		value, err := ParseValue(entry.Name())
		if err != nil {
			continue
		}
		if bestPath == "" || direction.Better(value, best) {
			best = value
			bestPath = filepath.Join(dir, entry.Name())
		}
	}
	if bestPath == "" {
		return "", 0, fmt.Errorf("no checkpoints found in %s", dir)
	}
	return bestPath, best, nil
}

// Prune keeps the topK best checkpoints in dir and removes the rest.
func Prune(dir string, direction Direction, topK int) error {
	if topK <= 0 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	type ckpt struct {
		path  string
		value float64
	}
	var all []ckpt
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Ext) {
			continue
		}
		value, err := ParseValue(entry.Name())
		if err != nil {
			continue
		}
		all = append(all, ckpt{path: filepath.Join(dir, entry.Name()), value: value})
	}

	sort.Slice(all, func(i, j int) bool {
		return direction.Better(all[i].value, all[j].value)
	})
	for _, c := range all[min(topK, len(all)):] {
		if err := os.Remove(c.path); err != nil {
			return fmt.Errorf("failed to prune checkpoint %s: %w", c.path, err)
		}
	}
	return nil
}

// WriteDone writes the done sentinel into dir.
func WriteDone(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, DoneFile), []byte("done"), 0o644); err != nil {
		return fmt.Errorf("failed to write done sentinel: %w", err)
	}
	return nil
}

// IsDone reports whether the done sentinel exists in dir.
func IsDone(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, DoneFile))
	return err == nil
}
