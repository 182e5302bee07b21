package dataset

import "path/filepath"

// malinoisMask marks cell types a sequence was not assayed in. Rows
// keep their remaining targets; masked entries are excluded from both
// training and metrics.
const malinoisMask = -100000

func newSharpr(opts Options) *tableLoader {
	return newTableLoader(opts, tableSpec{
		name:        "Sharpr_MPRA",
		path:        filepath.Join("Sharpr_MPRA", "activity.tsv"),
		splitColumn: "split",
		task:        Regression,
	})
}

func newLentiMPRA(opts Options) *tableLoader {
	return newTableLoader(opts, tableSpec{
		name:        "lentiMPRA",
		path:        filepath.Join("lentiMPRA", "activity.tsv"),
		splitColumn: "split",
		task:        Regression,
		shrinkable:  true,
	})
}

func newMalinois(opts Options) *tableLoader {
	name := "Malinois_MPRA"
	if opts.motifBased() {
		name = "Malinois_MPRA_with_motifs"
	}
	return newTableLoader(opts, tableSpec{
		name:            name,
		path:            filepath.Join("Malinois_MPRA", "activity.tsv"),
		splitColumn:     "split",
		task:            Regression,
		maskSentinel:    malinoisMask,
		hasMaskSentinel: true,
	})
}
