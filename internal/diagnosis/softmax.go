package diagnosis

import (
	"fmt"
	"math"

	"github.com/Skufu/GoCyto/internal/features"
)

// Softmax is a linear classifier: logits = W·x + b followed by a
// normalized exponential.
type Softmax struct {
	weights [][]float64 // [class][feature]
	bias    []float64
}

// NewSoftmax validates shapes: one weight row per class, exactly two
// classes, each row as wide as the feature schema.
func NewSoftmax(weights [][]float64, bias []float64) (*Softmax, error) {
	if len(weights) != 2 || len(bias) != 2 {
		return nil, fmt.Errorf("%w: softmax has %d weight rows and %d biases",
			ErrInvalidModel, len(weights), len(bias))
	}
	for i, row := range weights {
		if len(row) != features.Count {
			return nil, fmt.Errorf("%w: softmax row %d has %d weights, want %d",
				ErrInvalidModel, i, len(row), features.Count)
		}
	}
	return &Softmax{weights: weights, bias: bias}, nil
}

func (s *Softmax) Proba(x []float64) ([]float64, error) {
	logits := make([]float64, len(s.weights))
	for c, row := range s.weights {
		sum := s.bias[c]
		for j, w := range row {
			sum += w * x[j]
		}
		logits[c] = sum
	}
	return softmax(logits), nil
}

// softmax subtracts the max logit before exponentiating. An infinite max
// logit yields a one-hot vector on the first class holding it; a NaN logit
// yields all NaN so the caller rejects the output.
func softmax(z []float64) []float64 {
	out := make([]float64, len(z))
	hi, top := math.Inf(-1), 0
	for i, v := range z {
		if math.IsNaN(v) {
			for j := range out {
				out[j] = math.NaN()
			}
			return out
		}
		if v > hi {
			hi, top = v, i
		}
	}
	if math.IsInf(hi, 0) {
		out[top] = 1
		return out
	}
	var sum float64
	for i, v := range z {
		out[i] = math.Exp(v - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func logistic(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
