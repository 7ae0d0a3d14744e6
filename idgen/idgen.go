// Package idgen generates identifiers for ingestion runs and HTTP traces.
//
// Components take a Generator rather than calling uuid directly, so tests
// can substitute a deterministic sequence.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator of RFC 9562 UUID v7 strings. They sort by
// creation time, which keeps run ids in log order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed prepends a fixed prefix to every id ("run_", "trc_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator of "<prefix>1", "<prefix>2", ... for tests.
// It is not safe for concurrent use.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// New produces an id using Default.
func New() string {
	return Default()
}
