package dataset

import "path/filepath"

// sureGenomes are the four SuRE library genomes. Each genome is an
// independent dataset with its own loader.
var sureGenomes = []string{
	"SuRE42_HG02601",
	"SuRE43_GM18983",
	"SuRE44_HG01241",
	"SuRE45_HG03464",
}

// sureLoaders builds one loader per SuRE genome. The classification
// variant binarizes the per-cell expression bins at their median.
func sureLoaders(opts Options, task TaskType) []Loader {
	out := make([]Loader, 0, len(sureGenomes))
	for _, genome := range sureGenomes {
		spec := tableSpec{
			name:        genome,
			path:        filepath.Join("SuRE", genome+".tsv"),
			splitColumn: "split",
			task:        task,
			binarize:    task == Classification,
			shrinkable:  true,
		}
		out = append(out, newTableLoader(opts, spec))
	}
	return out
}
