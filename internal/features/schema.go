// Package features reconciles loosely keyed feature mappings against the
// fixed 30-measurement schema the classifiers were fitted on.
package features

// Count is the number of canonical features every model expects.
const Count = 30

// Aggregations in schema order.
var aggregations = []string{"mean", "se", "worst"}

// Measurements in schema order. The concave points name keeps its space;
// trained artifacts were produced with that spelling.
var measurements = []string{
	"radius", "texture", "perimeter", "area", "smoothness",
	"compactness", "concavity", "concave points", "symmetry", "fractal_dimension",
}

// Names is the canonical feature order. Scalers and models index their
// coefficients by position in this slice; never reorder it.
var Names = buildNames()

var index = buildIndex()

func buildNames() []string {
	names := make([]string, 0, Count)
	for _, agg := range aggregations {
		for _, m := range measurements {
			names = append(names, m+"_"+agg)
		}
	}
	return names
}

func buildIndex() map[string]int {
	idx := make(map[string]int, Count)
	for i, n := range Names {
		idx[n] = i
	}
	return idx
}

// IsCanonical reports whether name is one of the 30 schema names.
func IsCanonical(name string) bool {
	_, ok := index[name]
	return ok
}

// MatchesSchema reports whether names lists exactly the canonical features
// in canonical order.
func MatchesSchema(names []string) bool {
	if len(names) != Count {
		return false
	}
	for i, n := range names {
		if Names[i] != n {
			return false
		}
	}
	return true
}
