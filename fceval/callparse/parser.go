// Package callparse recovers function calls from the bracketed call-list text models
// are asked to emit: [func_a(x=1, y=true), func_b(z=text)].
package callparse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidFormat means the text is not wrapped in [ and ].
	ErrInvalidFormat = errors.New("invalid format")
	// ErrNoCalls means every fragment inside the brackets was malformed.
	ErrNoCalls = errors.New("no valid function calls")
)

// ParseError carries the offending text for diagnostics.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	if errors.Is(e.Err, ErrInvalidFormat) {
		return fmt.Sprintf("Invalid format: %s", e.Raw)
	}
	return fmt.Sprintf("%s: %s", e.Err, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parser converts raw completion text into calls.
type Parser struct {
	logger zerolog.Logger
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used to report dropped fragments.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Parser) { p.logger = logger }
}

// NewParser creates a parser. Without options it logs nothing.
func NewParser(opts ...Option) *Parser {
	p := &Parser{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var defaultParser = NewParser()

// Parse parses text with a parser that does not log.
func Parse(text string) (Output, error) {
	return defaultParser.Parse(text)
}

// Parse recovers the calls in text, left to right. "[]" yields no calls and no error.
func (p *Parser) Parse(text string) (Output, error) {
	content := strings.TrimSpace(text)
	if !strings.HasPrefix(content, "[") || !strings.HasSuffix(content, "]") || len(content) < 2 {
		return Output{}, &ParseError{Raw: content, Err: ErrInvalidFormat}
	}

	body := strings.TrimSpace(content[1 : len(content)-1])
	if body == "" {
		return Output{}, nil
	}

	var calls []Call
	for _, fragment := range splitTopLevel(body) {
		call, ok := p.parseCall(fragment)
		if !ok {
			continue
		}
		calls = append(calls, call)
	}

	if len(calls) == 0 {
		return Output{}, &ParseError{Raw: content, Err: ErrNoCalls}
	}
	return Output{Calls: calls}, nil
}

// parseCall turns name(k=v, ...) into a Call. Fragments lacking parentheses are dropped.
func (p *Parser) parseCall(fragment string) (Call, bool) {
	open := strings.IndexByte(fragment, '(')
	if open < 0 || !strings.Contains(fragment, ")") {
		p.logger.Debug().Str("fragment", fragment).Msg("Dropping malformed call fragment")
		return Call{}, false
	}

	call := Call{Name: strings.TrimSpace(fragment[:open])}

	params := strings.TrimSpace(fragment[open+1:])
	params = strings.TrimSuffix(params, ")")

	for _, pair := range splitTopLevel(params) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			p.logger.Debug().Str("call", call.Name).Str("pair", pair).Msg("Ignoring argument without '='")
			continue
		}
		call.Arguments.set(strings.TrimSpace(key), CoerceLiteral(value))
	}

	return call, true
}

// splitTopLevel splits s on commas that sit outside any (), [] or {} nesting and
// outside quoted spans. A quote only opens a span at the start of a token, so bare
// words such as O'Brien stay intact. A quote left open at the end of s is treated as
// an ordinary character and s is split again. Empty pieces are discarded; pieces are
// trimmed.
func splitTopLevel(s string) []string {
	literal := make(map[int]bool)
	for {
		parts, unclosed := splitOnce(s, literal)
		if unclosed < 0 {
			return parts
		}
		literal[unclosed] = true
	}
}

// splitOnce runs one pass of splitTopLevel. It returns the offset of a quote that
// never closed, or -1. Quotes at offsets in literal never open a span.
func splitOnce(s string, literal map[int]bool) ([]string, int) {
	var (
		parts  []string
		depth  int
		quote  byte
		quoted int
		start  int
		prev   byte = ','
	)

	flush := func(end int) {
		if piece := strings.TrimSpace(s[start:end]); piece != "" {
			parts = append(parts, piece)
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && i+1 < len(s) {
				i++
				continue
			}
			if c == quote {
				quote = 0
				prev = c
			}
			continue
		}

		switch c {
		case '"', '\'':
			if opensToken(prev) && !literal[i] {
				quote = c
				quoted = i
			}
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}

		if c != ' ' && c != '\t' && c != '\n' {
			prev = c
		}
	}
	if quote != 0 {
		return nil, quoted
	}
	flush(len(s))

	return parts, -1
}

func opensToken(prev byte) bool {
	switch prev {
	case ',', '=', '(', '[', '{', ':':
		return true
	}
	return false
}
