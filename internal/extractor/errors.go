package extractor

import (
	"errors"
	"fmt"
)

// ErrExtraction is the root of every failure to turn a report into a
// feature mapping.
var ErrExtraction = errors.New("extractor: extraction failed")

var (
	ErrEmptyReport  = fmt.Errorf("%w: report text is empty", ErrExtraction)
	ErrNoJSONObject = fmt.Errorf("%w: no JSON object found in model output", ErrExtraction)
)

// ProviderError reports a failed call to the language model service. It is
// not an ErrExtraction: the report may be fine and the upstream down.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extractor: %s provider returned status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("extractor: %s provider unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// invalidOutput wraps a decoding or validation failure of model output.
func invalidOutput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExtraction, fmt.Sprintf(format, args...))
}
