package features

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// synonyms maps the natural-language spellings produced by text extraction
// to canonical names. One entry per canonical feature.
var synonyms = map[string]string{
	"mean radius":            "radius_mean",
	"mean texture":           "texture_mean",
	"mean perimeter":         "perimeter_mean",
	"mean area":              "area_mean",
	"mean smoothness":        "smoothness_mean",
	"mean compactness":       "compactness_mean",
	"mean concavity":         "concavity_mean",
	"mean concave points":    "concave points_mean",
	"mean symmetry":          "symmetry_mean",
	"mean fractal dimension": "fractal_dimension_mean",

	"radius error":            "radius_se",
	"texture error":           "texture_se",
	"perimeter error":         "perimeter_se",
	"area error":              "area_se",
	"smoothness error":        "smoothness_se",
	"compactness error":       "compactness_se",
	"concavity error":         "concavity_se",
	"concave points error":    "concave points_se",
	"symmetry error":          "symmetry_se",
	"fractal dimension error": "fractal_dimension_se",

	"worst radius":            "radius_worst",
	"worst texture":           "texture_worst",
	"worst perimeter":         "perimeter_worst",
	"worst area":              "area_worst",
	"worst smoothness":        "smoothness_worst",
	"worst compactness":       "compactness_worst",
	"worst concavity":         "concavity_worst",
	"worst concave points":    "concave points_worst",
	"worst symmetry":          "symmetry_worst",
	"worst fractal dimension": "fractal_dimension_worst",
}

// foldKey puts a key in the form used for lookups: NFC and no surrounding
// whitespace. Case is preserved.
func foldKey(k string) string {
	return strings.TrimSpace(norm.NFC.String(k))
}

// Canonical resolves key to a canonical feature name. The second result is
// false when key is neither canonical nor a known synonym.
func Canonical(key string) (name string, synonym bool, ok bool) {
	k := foldKey(key)
	if IsCanonical(k) {
		return k, false, true
	}
	if c, found := synonyms[k]; found {
		return c, true, true
	}
	return "", false, false
}
