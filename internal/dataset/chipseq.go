package dataset

import "path/filepath"

func newSTARRSeq(opts Options) *tableLoader {
	return newTableLoader(opts, tableSpec{
		name:        "STARRSeq",
		path:        filepath.Join("STARRSeq", "activity.tsv"),
		splitColumn: "split",
		task:        Regression,
	})
}

// ENCODE TF ChIP-seq is a binding classification task. Targets arrive
// as numeric binding scores and are binarized at the per-factor
// median; the raw scores drive the percentile test subsets.
func newENCODE(opts Options) *tableLoader {
	return newTableLoader(opts, tableSpec{
		name:        "ENCODETFChIPSeq",
		path:        filepath.Join("ENCODETFChIPSeq", "binding.tsv"),
		splitColumn: "split",
		task:        Classification,
		binarize:    true,
		shrinkable:  true,
	})
}
