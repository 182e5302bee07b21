package train

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/eamonbyrne/promoter-models/internal/dataset"
	"github.com/eamonbyrne/promoter-models/internal/nn"
)

// fitSimpleRegression fits each head by ordinary least squares on the
// frozen trunk embeddings of its train split, writes the solution into
// the head parameters, and returns the mean squared training residual.
func (e *Engine) fitSimpleRegression(net *nn.Network, splits []*dataset.Splits) (float64, error) {
	embedSize := net.EmbeddingSize()
	var sse float64
	var count int

	for head := range splits {
		train := splits[head].Train
		outputs := net.Heads[head].Outputs

		// cache embeddings once per head
		embeds := make([][]float64, len(train))
		for k := range train {
			embeds[k] = net.Embed(train[k].Input)
		}

		for j := 0; j < outputs; j++ {
			var rows int
			for k := range train {
				if train[k].Mask == nil || train[k].Mask[j] {
					rows++
				}
			}
			if rows <= embedSize {
				return 0, fmt.Errorf("head %s output %d has %d samples for %d features, least squares is underdetermined",
					net.Heads[head].Name, j, rows, embedSize)
			}

			// design matrix with a trailing bias column
			x := mat.NewDense(rows, embedSize+1, nil)
			y := mat.NewVecDense(rows, nil)
			r := 0
			for k := range train {
				if train[k].Mask != nil && !train[k].Mask[j] {
					continue
				}
				for c := 0; c < embedSize; c++ {
					x.Set(r, c, embeds[k][c])
				}
				x.Set(r, embedSize, 1)
				y.SetVec(r, train[k].Target[j])
				r++
			}

			var w mat.VecDense
			if err := w.SolveVec(x, y); err != nil {
				// a Condition error still carries a usable solution
				if _, nearSingular := err.(mat.Condition); !nearSingular {
					return 0, fmt.Errorf("least squares fit failed for head %s output %d: %w",
						net.Heads[head].Name, j, err)
				}
				e.logger.Warn("ill-conditioned least squares system",
					"head", net.Heads[head].Name, "output", j)
			}

			for c := 0; c < embedSize; c++ {
				net.HeadWeights[head].Set(j, c, w.AtVec(c))
			}
			net.HeadBiases[head].Data[j] = w.AtVec(embedSize)

			var fitted mat.VecDense
			fitted.MulVec(x, &w)
			for r := 0; r < rows; r++ {
				d := fitted.AtVec(r) - y.AtVec(r)
				sse += d * d
				count++
			}
		}
	}
	if count == 0 {
		return 0, fmt.Errorf("no training samples for simple regression")
	}
	return sse / float64(count), nil
}
