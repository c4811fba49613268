// Package strid derives stable 32-bit identifiers from human-readable
// strings, used to turn event type names into EventTypeIds.
package strid

import "hash/fnv"

// Hash returns the FNV-1a hash of name as a stable 32-bit identifier.
func Hash(name string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return h.Sum32()
}
