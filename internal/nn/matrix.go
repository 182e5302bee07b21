package nn

// Matrix is a dense row-major float64 matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) Matrix {
	return Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

func (m *Matrix) Get(row, col int) float64 {
	return m.Data[row*m.Cols+col]
}

func (m *Matrix) Set(row, col int, value float64) {
	m.Data[row*m.Cols+col] = value
}

func (m *Matrix) Add(row, col int, delta float64) {
	m.Data[row*m.Cols+col] += delta
}

// Reset zeroes the matrix in place.
func (m *Matrix) Reset() {
	for i := range m.Data {
		m.Data[i] = 0
	}
}

// Clone returns a deep copy of the matrix.
func (m *Matrix) Clone() Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}
