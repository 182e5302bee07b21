package dataset

import "strings"

// baseIndex maps a nucleotide to its one-hot channel, or -1 for ambiguity
// codes.
func baseIndex(b byte) int {
	switch b {
	case 'A', 'a':
		return 0
	case 'C', 'c':
		return 1
	case 'G', 'g':
		return 2
	case 'T', 't':
		return 3
	default:
		return -1
	}
}

// OneHot encodes a DNA sequence as a flat 4*len vector. Ambiguous bases
// (N and friends) get a uniform 0.25 across channels.
func OneHot(seq string) []float64 {
	out := make([]float64, FeatureSize(len(seq), false))
	for i := 0; i < len(seq); i++ {
		idx := baseIndex(seq[i])
		if idx < 0 {
			for c := 0; c < 4; c++ {
				out[i*4+c] = 0.25
			}
			continue
		}
		out[i*4+idx] = 1
	}
	return out
}

// motifK is the k-mer size used for motif-count features.
const motifK = 3

// MotifFeatures encodes a sequence as normalized k-mer counts, the
// feature space of the motif-based backbones. Windows containing
// ambiguous bases are skipped. The vector has 4^motifK entries.
func MotifFeatures(seq string) []float64 {
	out := make([]float64, FeatureSize(len(seq), true))

	windows := len(seq) - motifK + 1
	if windows <= 0 {
		return out
	}
	var counted float64
	for i := 0; i < windows; i++ {
		code := 0
		ok := true
		for j := 0; j < motifK; j++ {
			idx := baseIndex(seq[i+j])
			if idx < 0 {
				ok = false
				break
			}
			code = code*4 + idx
		}
		if !ok {
			continue
		}
		out[code]++
		counted++
	}
	if counted > 0 {
		for i := range out {
			out[i] /= counted
		}
	}
	return out
}

// FeatureSize returns the encoded width for a sequence length under the
// given options.
func FeatureSize(seqLen int, motif bool) int {
	if motif {
		size := 1
		for i := 0; i < motifK; i++ {
			size *= 4
		}
		return size
	}
	return 4 * seqLen
}

// encode applies the variant selected by opts to one sequence.
func encode(seq string, motif bool) []float64 {
	seq = strings.TrimSpace(seq)
	if motif {
		return MotifFeatures(seq)
	}
	return OneHot(seq)
}
