package utils

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// SortedKeys returns the keys of the given map in ascending order. Map
// iteration order is not deterministic in Go, so every walk that influences
// output ordering goes through this helper.
func SortedKeys[K ~string, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// MapFetchCasted obtains a key from a given map, automatically casting its value.
// Returns the value as the correct type, or nil if it could not be found or type converted.
func MapFetchCasted[K comparable, V any](m map[K]any, key K) *V {
	// Try to obtain the result
	if genericResult, ok := m[key]; ok {
		if castedResult, ok := genericResult.(V); ok {
			return &castedResult
		}
	}
	return nil
}
