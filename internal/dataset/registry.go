package dataset

import (
	"fmt"
	"sort"
)

// builder constructs the loaders backing a task name. Most tasks map to
// a single loader; SuRE tasks expand into one loader per genome and the
// RNASeq group expands into LL100, CCLE and Roadmap.
type builder func(opts Options) ([]Loader, error)

var builders = map[string]builder{}

func register(name string, b builder) {
	if _, dup := builders[name]; dup {
		panic(fmt.Sprintf("dataset: duplicate task %q", name))
	}
	builders[name] = b
}

func init() {
	register("FluorescenceData", func(opts Options) ([]Loader, error) {
		return []Loader{newFluorescence(opts, fluorescenceConfig{})}, nil
	})
	register("FluorescenceData_DE", func(opts Options) ([]Loader, error) {
		return []Loader{newFluorescence(opts, fluorescenceConfig{predictDE: true})}, nil
	})
	register("FluorescenceData_classification", func(opts Options) ([]Loader, error) {
		return []Loader{newFluorescence(opts, fluorescenceConfig{classification: true})}, nil
	})
	register("FluorescenceData_JURKAT", func(opts Options) ([]Loader, error) {
		return []Loader{newFluorescence(opts, fluorescenceConfig{cells: []string{"JURKAT"}})}, nil
	})
	register("FluorescenceData_K562", func(opts Options) ([]Loader, error) {
		return []Loader{newFluorescence(opts, fluorescenceConfig{cells: []string{"K562"}})}, nil
	})
	register("FluorescenceData_THP1", func(opts Options) ([]Loader, error) {
		return []Loader{newFluorescence(opts, fluorescenceConfig{cells: []string{"THP1"}})}, nil
	})
	register("LL100", func(opts Options) ([]Loader, error) {
		return []Loader{newRNASeq(opts, "LL100")}, nil
	})
	register("CCLE", func(opts Options) ([]Loader, error) {
		return []Loader{newRNASeq(opts, "CCLE")}, nil
	})
	register("Roadmap", func(opts Options) ([]Loader, error) {
		return []Loader{newRNASeq(opts, "Roadmap")}, nil
	})
	register("RNASeq", func(opts Options) ([]Loader, error) {
		return []Loader{
			newRNASeq(opts, "LL100"),
			newRNASeq(opts, "CCLE"),
			newRNASeq(opts, "Roadmap"),
		}, nil
	})
	register("Sharpr_MPRA", func(opts Options) ([]Loader, error) {
		return []Loader{newSharpr(opts)}, nil
	})
	register("lentiMPRA", func(opts Options) ([]Loader, error) {
		return []Loader{newLentiMPRA(opts)}, nil
	})
	register("Malinois_MPRA", func(opts Options) ([]Loader, error) {
		return []Loader{newMalinois(opts)}, nil
	})
	register("STARRSeq", func(opts Options) ([]Loader, error) {
		return []Loader{newSTARRSeq(opts)}, nil
	})
	register("ENCODETFChIPSeq", func(opts Options) ([]Loader, error) {
		return []Loader{newENCODE(opts)}, nil
	})
	register("SuRE_regression", func(opts Options) ([]Loader, error) {
		return sureLoaders(opts, Regression), nil
	})
	register("SuRE_classification", func(opts Options) ([]Loader, error) {
		return sureLoaders(opts, Classification), nil
	})
}

// Build resolves a task name into its loaders.
func Build(task string, opts Options) ([]Loader, error) {
	b, ok := builders[task]
	if !ok {
		return nil, fmt.Errorf("unknown task %q (run %q to list tasks)", task, "promod tasks")
	}
	return b(opts)
}

// BuildAll resolves a list of task names, preserving order.
func BuildAll(tasks []string, opts Options) ([]Loader, error) {
	var out []Loader
	seen := make(map[string]bool)
	for _, task := range tasks {
		loaders, err := Build(task, opts)
		if err != nil {
			return nil, err
		}
		for _, l := range loaders {
			if seen[l.Name()] {
				return nil, fmt.Errorf("task list produces duplicate dataset %q", l.Name())
			}
			seen[l.Name()] = true
			out = append(out, l)
		}
	}
	return out, nil
}

// Tasks returns the registered task names in sorted order.
func Tasks() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
