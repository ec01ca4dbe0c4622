package diagnosis

import (
	"fmt"
	"math"

	"github.com/Skufu/GoCyto/internal/features"
)

// Activation names a layer nonlinearity.
type Activation string

const (
	ActivationReLU     Activation = "relu"
	ActivationTanh     Activation = "tanh"
	ActivationLogistic Activation = "logistic"
	ActivationIdentity Activation = "identity"
	ActivationSoftmax  Activation = "softmax"
)

// Layer is one dense layer. Weights are laid out [in][out], the layout the
// multilayer perceptron exports its coefficient matrices in.
type Layer struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
}

func (l Layer) in() int  { return len(l.Weights) }
func (l Layer) out() int { return len(l.Biases) }

// MLP is a feed-forward classifier. A single output unit is read as the
// class-1 probability through a logistic; two go through softmax.
type MLP struct {
	layers []Layer
	hidden Activation
	output Activation
}

// NewMLP validates that layer widths chain from the feature schema to the
// output layer. An empty output activation is inferred from the width of
// the last layer.
func NewMLP(layers []Layer, hidden, output Activation) (*MLP, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: mlp has no layers", ErrInvalidModel)
	}
	if hidden == "" {
		hidden = ActivationReLU
	}
	switch hidden {
	case ActivationReLU, ActivationTanh, ActivationLogistic, ActivationIdentity:
	default:
		return nil, fmt.Errorf("%w: unsupported hidden activation %q", ErrInvalidModel, hidden)
	}

	width := features.Count
	for i, l := range layers {
		if l.in() != width {
			return nil, fmt.Errorf("%w: layer %d expects %d inputs, previous layer yields %d",
				ErrInvalidModel, i, l.in(), width)
		}
		for r, row := range l.Weights {
			if len(row) != l.out() {
				return nil, fmt.Errorf("%w: layer %d row %d has %d weights, want %d",
					ErrInvalidModel, i, r, len(row), l.out())
			}
		}
		width = l.out()
	}

	var want Activation
	switch width {
	case 1:
		want = ActivationLogistic
	case 2:
		want = ActivationSoftmax
	default:
		return nil, fmt.Errorf("%w: mlp has %d output units, want 1 or 2", ErrInvalidModel, width)
	}
	if output == "" {
		output = want
	}
	if output != want {
		return nil, fmt.Errorf("%w: output activation %q does not fit %d output units",
			ErrInvalidModel, output, width)
	}
	return &MLP{layers: layers, hidden: hidden, output: output}, nil
}

func (m *MLP) Proba(x []float64) ([]float64, error) {
	a := x
	last := len(m.layers) - 1
	for i, l := range m.layers {
		z := make([]float64, l.out())
		copy(z, l.Biases)
		for j, v := range a {
			if v == 0 {
				continue
			}
			for k, w := range l.Weights[j] {
				z[k] += v * w
			}
		}
		if i < last {
			activate(m.hidden, z)
		}
		a = z
	}

	if m.output == ActivationLogistic {
		p := logistic(a[0])
		return []float64{1 - p, p}, nil
	}
	return softmax(a), nil
}

func activate(fn Activation, z []float64) {
	for i, v := range z {
		switch fn {
		case ActivationReLU:
			if v < 0 {
				z[i] = 0
			}
		case ActivationTanh:
			z[i] = math.Tanh(v)
		case ActivationLogistic:
			z[i] = logistic(v)
		}
	}
}
