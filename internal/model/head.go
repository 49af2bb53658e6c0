package model

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// MLP is the trainable classifier head: standardized features, an optional
// ReLU hidden layer with dropout, and a linear output of class logits.
type MLP struct {
	In, Hidden, Out int

	// feature standardization fitted on the training set
	Mean, Std []float64

	W1 *mat.Dense // Hidden x In, nil without hidden layer
	B1 []float64
	W2 *mat.Dense // Out x Hidden (or Out x In)
	B2 []float64
}

// NewMLP initializes a head with uniform(-1/sqrt(fan_in), 1/sqrt(fan_in))
// weights and biases. hidden 0 gives a linear classifier.
func NewMLP(in, hidden, out int, rng *rand.Rand) (*MLP, error) {
	if in <= 0 || out <= 0 || hidden < 0 {
		return nil, fmt.Errorf("invalid head shape %d-%d-%d", in, hidden, out)
	}

	m := &MLP{In: in, Hidden: hidden, Out: out, Mean: make([]float64, in), Std: make([]float64, in)}
	for i := range m.Std {
		m.Std[i] = 1
	}

	fanIn := in
	if hidden > 0 {
		m.W1, m.B1 = initLayer(hidden, in, rng)
		fanIn = hidden
	}
	m.W2, m.B2 = initLayer(out, fanIn, rng)
	return m, nil
}

func initLayer(rows, cols int, rng *rand.Rand) (*mat.Dense, []float64) {
	bound := 1 / math.Sqrt(float64(cols))
	w := make([]float64, rows*cols)
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
	b := make([]float64, rows)
	for i := range b {
		b[i] = (2*rng.Float64() - 1) * bound
	}
	return mat.NewDense(rows, cols, w), b
}

// FitStandardizer sets Mean and Std from the training features. Constant
// features keep a unit scale.
func (m *MLP) FitStandardizer(features [][]float32) {
	if len(features) == 0 {
		return
	}
	n := float64(len(features))
	for j := range m.In {
		var sum float64
		for _, f := range features {
			sum += float64(f[j])
		}
		mean := sum / n

		var ss float64
		for _, f := range features {
			d := float64(f[j]) - mean
			ss += d * d
		}
		std := math.Sqrt(ss / n)
		if std < 1e-8 {
			std = 1
		}
		m.Mean[j], m.Std[j] = mean, std
	}
}

// Params returns the trainable parameter slices in a fixed order
func (m *MLP) Params() [][]float64 {
	params := make([][]float64, 0, 4)
	if m.W1 != nil {
		params = append(params, m.W1.RawMatrix().Data, m.B1)
	}
	return append(params, m.W2.RawMatrix().Data, m.B2)
}

// input standardizes a batch into a dense matrix
func (m *MLP) input(batch [][]float32) (*mat.Dense, error) {
	x := mat.NewDense(len(batch), m.In, nil)
	for i, f := range batch {
		if len(f) != m.In {
			return nil, fmt.Errorf("feature vector %d has %d values, head expects %d", i, len(f), m.In)
		}
		row := x.RawRowView(i)
		for j, v := range f {
			row[j] = (float64(v) - m.Mean[j]) / m.Std[j]
		}
	}
	return x, nil
}

func affine(x *mat.Dense, w *mat.Dense, b []float64) *mat.Dense {
	var out mat.Dense
	out.Mul(x, w.T())
	r, _ := out.Dims()
	for i := range r {
		row := out.RawRowView(i)
		for j := range row {
			row[j] += b[j]
		}
	}
	return &out
}

// Logits runs the head in inference mode
func (m *MLP) Logits(batch [][]float32) ([][]float64, error) {
	x, err := m.input(batch)
	if err != nil {
		return nil, err
	}
	h := x
	if m.W1 != nil {
		h = affine(x, m.W1, m.B1)
		h.Apply(func(_, _ int, v float64) float64 { return max(v, 0) }, h)
	}
	return rows(affine(h, m.W2, m.B2)), nil
}

// Gradients holds one gradient slice per parameter, in Params order
type Gradients [][]float64

// TrainStep runs forward and backward passes on a batch with inverted
// dropout on the hidden layer. It returns the mean cross-entropy, the logits
// and the gradients of the mean loss.
func (m *MLP) TrainStep(batch [][]float32, labels []int, dropout float64, rng *rand.Rand) (float64, [][]float64, Gradients, error) {
	if len(batch) != len(labels) || len(batch) == 0 {
		return 0, nil, nil, fmt.Errorf("batch of %d features with %d labels", len(batch), len(labels))
	}
	if dropout < 0 || dropout >= 1 {
		return 0, nil, nil, fmt.Errorf("dropout must be in [0, 1), got %g", dropout)
	}
	x, err := m.input(batch)
	if err != nil {
		return 0, nil, nil, err
	}

	h := x
	var mask *mat.Dense
	if m.W1 != nil {
		h = affine(x, m.W1, m.B1)
		keep := 1 - dropout
		mask = mat.NewDense(len(batch), m.Hidden, nil)
		mask.Apply(func(i, j int, _ float64) float64 {
			if h.At(i, j) <= 0 {
				return 0
			}
			if dropout > 0 && rng.Float64() >= keep {
				return 0
			}
			return 1 / keep
		}, mask)
		h.MulElem(h, mask)
	}

	logits := affine(h, m.W2, m.B2)
	loss, dLogits, err := CrossEntropy(rows(logits), labels)
	if err != nil {
		return 0, nil, nil, err
	}
	dz := mat.NewDense(len(batch), m.Out, flatten(dLogits))

	var dW2 mat.Dense
	dW2.Mul(dz.T(), h)
	grads := Gradients{dW2.RawMatrix().Data, colSums(dz)}

	if m.W1 != nil {
		var dh mat.Dense
		dh.Mul(dz, m.W2)
		dh.MulElem(&dh, mask)

		var dW1 mat.Dense
		dW1.Mul(dh.T(), x)
		grads = append(Gradients{dW1.RawMatrix().Data, colSums(&dh)}, grads...)
	}

	return loss, rows(logits), grads, nil
}

// CrossEntropy returns the mean softmax cross-entropy of logits against
// labels and its gradient with respect to the logits.
func CrossEntropy(logits [][]float64, labels []int) (float64, [][]float64, error) {
	n := float64(len(logits))
	grad := make([][]float64, len(logits))
	var loss float64
	for i, row := range logits {
		if labels[i] < 0 || labels[i] >= len(row) {
			return 0, nil, fmt.Errorf("label %d out of range for %d classes", labels[i], len(row))
		}
		maxV := row[0]
		for _, v := range row[1:] {
			maxV = max(maxV, v)
		}
		var sum float64
		for _, v := range row {
			sum += math.Exp(v - maxV)
		}
		logSum := maxV + math.Log(sum)
		loss += logSum - row[labels[i]]

		g := make([]float64, len(row))
		for j, v := range row {
			g[j] = math.Exp(v-logSum) / n
		}
		g[labels[i]] -= 1 / n
		grad[i] = g
	}
	return loss / n, grad, nil
}

func rows(d *mat.Dense) [][]float64 {
	r, c := d.Dims()
	out := make([][]float64, r)
	for i := range r {
		out[i] = make([]float64, c)
		copy(out[i], d.RawRowView(i))
	}
	return out
}

func flatten(m [][]float64) []float64 {
	if len(m) == 0 {
		return nil
	}
	out := make([]float64, 0, len(m)*len(m[0]))
	for _, r := range m {
		out = append(out, r...)
	}
	return out
}

func colSums(d *mat.Dense) []float64 {
	r, c := d.Dims()
	out := make([]float64, c)
	for i := range r {
		for j, v := range d.RawRowView(i) {
			out[j] += v
		}
	}
	return out
}
