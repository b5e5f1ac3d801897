// Package change decides whether a newly filtered page differs from the
// last stored snapshot.
package change

// HasChanged reports whether next must be stored. A missing previous
// observation always counts as a change; otherwise the comparison is exact.
func HasChanged(prev *string, next string) bool {
	if prev == nil {
		return true
	}
	return *prev != next
}
