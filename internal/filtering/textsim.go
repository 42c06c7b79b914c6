package filtering

import "strings"

// stopWords are dropped before token similarity.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {},
	"with": {}, "by": {}, "will": {}, "be": {}, "is": {}, "are": {},
}

// Tokenize lowercases, splits on non-alphanumerics, and removes stop
// words. Shared with feature extraction.
func Tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// Jaccard computes intersection-over-union of two token sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Intersection counts the shared tokens of two sets.
func Intersection(a, b map[string]struct{}) int {
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return inter
}
