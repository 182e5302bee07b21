package dataset

import "path/filepath"

// The RNA-seq expression tasks share one layout: a tab-separated file
// with the promoter sequence, a fixed split column, and one expression
// column per cell line or tissue.

func newRNASeq(opts Options, name string) *tableLoader {
	return newTableLoader(opts, tableSpec{
		name:        name,
		path:        filepath.Join(name, "expression.tsv"),
		splitColumn: "split",
		task:        Regression,
	})
}
