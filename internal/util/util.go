package util

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Set[T comparable] map[T]struct{}

func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s.Add(item)
	}
	return s
}

func (s Set[T]) Add(item T) {
	s[item] = struct{}{}
}

func (s Set[T]) Has(item T) bool {
	_, ok := s[item]
	return ok
}

func SafeParseInt(str string, fallback int) int {
	if str == "" {
		return fallback
	}
	v, err := strconv.Atoi(str)
	if err != nil {
		return fallback
	}
	return v
}

func ZeroPadInt(value, width int) string {
	return fmt.Sprintf("%0*d", width, value)
}

func HasDurationPassedSince(t time.Time, d time.Duration) bool {
	return time.Since(t) > d
}

func HandlePanic(recovered any, withStack bool) (err error, stack string) {
	if recovered == nil {
		return nil, ""
	}
	if e, ok := recovered.(error); ok {
		err = e
	} else {
		err = fmt.Errorf("%v", recovered)
	}
	if withStack {
		stack = string(debug.Stack())
	}
	return err, stack
}

// StringNormalizer folds a title down to lowercase alphanumerics so that
// release-name punctuation does not defeat comparisons.
type StringNormalizer struct {
	memo sync.Map
}

func NewStringNormalizer() *StringNormalizer {
	return &StringNormalizer{}
}

var deaccenter = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func (sn *StringNormalizer) Normalize(str string) string {
	if normalized, ok := sn.memo.Load(str); ok {
		return normalized.(string)
	}
	if folded, _, err := transform.String(deaccenter, str); err == nil {
		str = folded
	}
	var b strings.Builder
	b.Grow(len(str))
	for _, r := range strings.ToLower(str) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	normalized := b.String()
	sn.memo.Store(str, normalized)
	return normalized
}

// MaxLevenshteinDistance reports whether a and b are within maxDist edits
// of each other after normalization.
func MaxLevenshteinDistance(maxDist int, a, b string, sn *StringNormalizer) bool {
	na, nb := sn.Normalize(a), sn.Normalize(b)
	if na == nb {
		return true
	}
	return levenshtein.ComputeDistance(na, nb) <= maxDist
}
