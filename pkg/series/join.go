// Package series joins and rolls up block-ordered samples.
package series

import (
	"net/http"

	"github.com/ragetrade/vaultmetrics/pkg/fault"
)

// Keyed is implemented by elements that carry a block-ordered key.
type Keyed interface {
	Key() uint64
}

// Combine pairs a and b positionally and merges each pair. Both inputs must
// come from the same ordered stream: different lengths or a pair whose keys
// differ is a server error.
func Combine[A, B Keyed, C any](a []A, b []B, merge func(A, B) C) ([]C, error) {
	if len(a) != len(b) {
		return nil, fault.Newf(http.StatusInternalServerError, "cannot combine series of lengths %d and %d", len(a), len(b))
	}
	out := make([]C, len(a))
	for i := range a {
		if a[i].Key() != b[i].Key() {
			return nil, fault.Newf(http.StatusInternalServerError, "cannot combine series: position %d has blocks %d and %d", i, a[i].Key(), b[i].Key())
		}
		out[i] = merge(a[i], b[i])
	}
	return out, nil
}

// AlignPrefix trims the longer of two series sampled from the same stream
// start so both end at the last key of the shorter. It leaves the inputs
// untouched when they do not share a prefix; Combine reports that case.
func AlignPrefix[A, B Keyed](a []A, b []B) ([]A, []B) {
	switch {
	case len(a) > len(b):
		return trimTo(a, lastKey(b)), b
	case len(b) > len(a):
		return a, trimTo(b, lastKey(a))
	default:
		return a, b
	}
}

func lastKey[T Keyed](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1].Key()
}

func trimTo[T Keyed](s []T, key uint64) []T {
	n := 0
	for n < len(s) && s[n].Key() <= key {
		n++
	}
	return s[:n]
}

// Deltas maps each element and its predecessor to a running difference.
// The first element is diffed against nothing, so diff receives ok=false.
func Deltas[T, D any](s []T, diff func(prev, cur T, ok bool) D) []D {
	out := make([]D, len(s))
	for i := range s {
		if i == 0 {
			var zero T
			out[i] = diff(zero, s[i], false)
			continue
		}
		out[i] = diff(s[i-1], s[i], true)
	}
	return out
}
