package utils

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// Hash64 is FNV-1a. Broker picks and property set versions are derived from
// it, so it must not change between releases.
func Hash64(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Fingerprint hashes newline-joined lines into a fixed-width hex string.
func Fingerprint(lines []string) string {
	return fmt.Sprintf("%016x", Hash64(strings.Join(lines, "\n")))
}
