package nn

import "math"

// Adam moment decay rates.
const (
	beta1 = 0.9
	beta2 = 0.999
	eps   = 1e-8
)

// Gradient accumulates raw gradient values and carries Adam moment state
// for a single parameter.
type Gradient struct {
	Value float64
	M1    float64
	M2    float64
}

func (g *Gradient) Update(delta float64) {
	g.Value += delta
}

func (g *Gradient) Reset() {
	g.Value = 0
}

// step updates the moments and returns the Adam step for the accumulated
// gradient. A zero accumulated value still decays the moments.
func (g *Gradient) step(lr float64) float64 {
	g.M1 = g.M1*beta1 + g.Value*(1-beta1)
	g.M2 = g.M2*beta2 + (g.Value*g.Value)*(1-beta2)
	return lr * g.M1 / (math.Sqrt(g.M2) + eps)
}

// Apply performs a decoupled weight decay (AdamW) update on elem and
// resets the accumulated value.
func (g *Gradient) Apply(elem *float64, lr, weightDecay float64) {
	*elem -= g.step(lr) + lr*weightDecay*(*elem)
	g.Reset()
}

// Gradients holds Adam state for every parameter of one weight matrix.
type Gradients struct {
	Data []Gradient
	Rows int
	Cols int
}

func NewGradients(rows, cols int) Gradients {
	return Gradients{
		Data: make([]Gradient, rows*cols),
		Rows: rows,
		Cols: cols,
	}
}

// AddMatrix folds a worker's raw gradient accumulator into the Adam state.
func (g *Gradients) AddMatrix(m *Matrix) {
	for i := range g.Data {
		g.Data[i].Update(m.Data[i])
	}
}

// Apply steps every parameter of m and resets the accumulated gradients.
func (g *Gradients) Apply(m *Matrix, lr, weightDecay float64) {
	for i := range g.Data {
		g.Data[i].Apply(&m.Data[i], lr, weightDecay)
	}
}
