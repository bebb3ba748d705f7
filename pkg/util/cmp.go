package util

import "sort"

// SameIDs reports whether got and want hold the same entity IDs,
// regardless of registration order — the only shape comparison the
// entity registry's tests need (Registry.All has no defined order).
func SameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}

	a := append([]string(nil), got...)
	b := append([]string(nil), want...)
	sort.Strings(a)
	sort.Strings(b)

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
