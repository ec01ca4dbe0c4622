package diagnosis

import (
	"fmt"
	"math"
)

// maxStandardized bounds a standardized value. Extreme but finite inputs
// would otherwise overflow to Inf in the dot products that follow and turn
// the probabilities into NaN.
const maxStandardized = 1e150

// Scaler is a fitted per-column standardization: (x - Mean) / Scale.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Validate checks both vectors have width n.
func (s Scaler) Validate(n int) error {
	if len(s.Mean) != n || len(s.Scale) != n {
		return fmt.Errorf("%w: scaler has %d means and %d scales, want %d",
			ErrInvalidModel, len(s.Mean), len(s.Scale), n)
	}
	return nil
}

// Transform returns a standardized copy of x. A zero scale leaves the
// centred value unscaled, matching how the scalers were fitted. Results are
// clamped to ±maxStandardized.
func (s Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = math.Max(-maxStandardized, math.Min(maxStandardized, (v-s.Mean[i])/scale))
	}
	return out
}
