// Package id generates prefixed identifiers for sessions, ranges and merges.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used across the agent.
const (
	PrefixSession = "ses"
	PrefixRange   = "rng"
	PrefixMerge   = "mrg"
)

// Generate returns prefix + "-" + a 21 character NanoID.
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// Short returns a compact id without prefix, used for request correlation.
func Short() string {
	v, err := gonanoid.Generate("0123456789abcdefghijklmnopqrstuvwxyz", 8)
	if err != nil {
		return "00000000"
	}
	return v
}
