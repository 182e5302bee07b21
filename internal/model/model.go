// Package model maps backbone names to network topologies. The default
// backbone is MTLucifer; motif-based backbones consume k-mer count
// features and are restricted to a small set of single tasks.
package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eamonbyrne/promoter-models/internal/dataset"
	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// DefaultName is the backbone used when no model name is configured.
// Run names carry a backbone prefix only for non-default backbones.
const DefaultName = "MTLucifer"

const motifPrefix = "MotifBased"

// motifTasks are the only tasks motif-based backbones may train on.
var motifTasks = map[string]bool{
	"FluorescenceData":    true,
	"FluorescenceData_DE": true,
	"Malinois_MPRA":       true,
}

// Backbone describes one registered network topology.
type Backbone struct {
	Name string
	// Hidden lists trunk layer widths.
	Hidden []int
	// MotifBased backbones take k-mer count features instead of
	// one-hot sequence.
	MotifBased bool
}

var backbones = map[string]Backbone{}

func register(b Backbone) {
	if _, dup := backbones[b.Name]; dup {
		panic(fmt.Sprintf("model: duplicate backbone %q", b.Name))
	}
	backbones[b.Name] = b
}

func init() {
	register(Backbone{Name: DefaultName, Hidden: []int{256, 128}})
	register(Backbone{Name: "MTLuciferDeep", Hidden: []int{512, 256, 128}})
	register(Backbone{Name: "MotifBasedFCN", Hidden: []int{128, 64}, MotifBased: true})
	register(Backbone{Name: "MotifBasedFCNLarge", Hidden: []int{256, 128, 64}, MotifBased: true})
	register(Backbone{Name: "Linear", Hidden: nil})
}

// Get resolves a backbone name. Empty means the default.
func Get(name string) (Backbone, error) {
	if name == "" {
		name = DefaultName
	}
	b, ok := backbones[name]
	if !ok {
		return Backbone{}, fmt.Errorf("unknown backbone %q (run %q to list backbones)", name, "promod backbones")
	}
	return b, nil
}

// Names returns the registered backbone names in sorted order.
func Names() []string {
	names := make([]string, 0, len(backbones))
	for name := range backbones {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsMotifBased reports whether a backbone name selects motif features.
func IsMotifBased(name string) bool {
	return strings.HasPrefix(name, motifPrefix)
}

// CheckTasks validates the backbone against the requested tasks.
// Motif-based backbones accept exactly one task from the fluorescence
// and Malinois set.
func CheckTasks(name string, tasks []string) error {
	if !IsMotifBased(name) {
		return nil
	}
	if len(tasks) != 1 {
		return fmt.Errorf("motif-based backbones train on a single task, got %d", len(tasks))
	}
	if !motifTasks[tasks[0]] {
		return fmt.Errorf("motif-based backbones support FluorescenceData, FluorescenceData_DE or Malinois_MPRA, not %q", tasks[0])
	}
	return nil
}

// Build constructs a network for the backbone over the given loaders.
// Input width comes from the loaders' first sample, so callers load the
// datasets before building.
func (b Backbone) Build(inputs int, loaders []dataset.Loader, seed int64) (*nn.Network, error) {
	if inputs <= 0 {
		return nil, fmt.Errorf("backbone %s needs a positive input width, got %d", b.Name, inputs)
	}
	heads := make([]nn.Head, 0, len(loaders))
	for _, l := range loaders {
		outputs := l.OutputNames()
		if len(outputs) == 0 {
			return nil, fmt.Errorf("dataset %s reports no outputs", l.Name())
		}
		heads = append(heads, nn.Head{
			Name:           l.Name(),
			Outputs:        len(outputs),
			Classification: l.TaskType() == dataset.Classification,
		})
	}
	return nn.New(inputs, b.Hidden, heads, seed), nil
}
