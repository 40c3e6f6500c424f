// Package imageset computes the new image list of a listing after an edit.
package imageset

import "strings"

// Reconcile orders current by requested and appends new references.
//
// Each entry of requested places one occurrence of that reference from
// current. Entries with no occurrence left, including unknown references,
// are ignored. Whatever current still holds afterwards keeps its relative
// order after the placed entries, so the result is always a permutation of
// current followed by appended. An empty requested keeps current as is. The
// result never shares memory with the inputs.
//
//	Reconcile([a b c], [c x a], [d]) == [c a b d]
//	Reconcile([a a b], [a], nil)     == [a a b]
func Reconcile(current, requested, appended []string) []string {
	out := make([]string, 0, len(current)+len(appended))

	if len(requested) == 0 {
		out = append(out, current...)
		return append(out, appended...)
	}

	left := make(map[string]int, len(current))
	for _, ref := range current {
		left[ref]++
	}

	for _, ref := range requested {
		if left[ref] == 0 {
			continue
		}
		left[ref]--
		out = append(out, ref)
	}

	// placed counts the occurrences of each reference already in out, so
	// the trailing pass skips exactly that many from the front of current.
	placed := make(map[string]int, len(out))
	for _, ref := range out {
		placed[ref]++
	}
	for _, ref := range current {
		if placed[ref] > 0 {
			placed[ref]--
			continue
		}
		out = append(out, ref)
	}

	return append(out, appended...)
}

// ParseOrder splits a comma-separated order field into trimmed, non-empty
// references.
func ParseOrder(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
