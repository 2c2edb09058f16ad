// Package similarity scores how alike two item names are using normalized edit distance.
package similarity

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// ErrInvalidArgument is returned for malformed input to a scorer or matcher.
var ErrInvalidArgument = errors.New("invalid argument")

type options struct {
	caseSensitive bool
}

// Option configures a comparison.
type Option func(*options)

// CaseSensitive disables case folding.
func CaseSensitive() Option {
	return func(o *options) {
		o.caseSensitive = true
	}
}

func normalize(s string, opts []Option) string {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	s = strings.TrimSpace(s)
	if !o.caseSensitive {
		s = strings.ToLower(s)
	}

	return s
}

// Distance is the Levenshtein edit distance between a and b, counted in runes,
// where insertion, deletion and substitution each cost 1.
func Distance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// Similarity returns 1 - Distance(a, b)/max(len(a), len(b)) over the trimmed and, unless
// CaseSensitive is given, case-folded inputs. Two empty strings are fully similar.
func Similarity(a, b string, opts ...Option) float64 {
	a, b = normalize(a, opts), normalize(b, opts)

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1.0
	}

	return 1 - float64(Distance(a, b))/float64(longest)
}

// Score is Similarity for untyped values, as found in decoded documents.
// Both values must be strings.
func Score(a, b any, opts ...Option) (float64, error) {
	sa, ok := a.(string)
	if !ok {
		return 0, fmt.Errorf("%w: first value is %T, want string", ErrInvalidArgument, a)
	}

	sb, ok := b.(string)
	if !ok {
		return 0, fmt.Errorf("%w: second value is %T, want string", ErrInvalidArgument, b)
	}

	return Similarity(sa, sb, opts...), nil
}
