package harness

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrOutputTooLarge is returned when a completion exceeds the configured size.
var ErrOutputTooLarge = errors.New("output too large")

// OutputGuard applies the output policies to completions before they are graded
// and persisted.
type OutputGuard struct {
	maxOutputSize int              // bytes; zero disables the check
	outputFilters []*regexp.Regexp // regex patterns masked before persisting
}

// NewOutputGuard creates a guard with the default redaction patterns.
func NewOutputGuard(maxOutputSize int) *OutputGuard {
	return &OutputGuard{
		maxOutputSize: maxOutputSize,
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)password[:=]\s*\S+`),
			regexp.MustCompile(`(?i)api[_-]?key[:=]\s*\S+`),
			regexp.MustCompile(`(?i)secret[:=]\s*\S+`),
			regexp.MustCompile(`sk-[A-Za-z0-9]{16,}`),
		},
	}
}

// ValidateOutputSize checks if output size is within limits.
func (g *OutputGuard) ValidateOutputSize(output string) error {
	if g.maxOutputSize > 0 && len(output) > g.maxOutputSize {
		return fmt.Errorf("%w: output size %d exceeds maximum %d", ErrOutputTooLarge, len(output), g.maxOutputSize)
	}
	return nil
}

// SanitizeOutput masks credentials a model may echo back. It is applied to the
// stored copy of a completion only; grading always sees the original text.
func (g *OutputGuard) SanitizeOutput(output string) string {
	sanitized := output
	for _, filter := range g.outputFilters {
		sanitized = filter.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
