package container

import (
	"strings"

	"golang.org/x/text/cases"
)

// Identity folds a declared name into its case-insensitive identity.
func Identity(name string) string {
	// cases.Caser is stateful; a fresh one per call keeps this safe to use
	// from any goroutine.
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameIdentity reports whether two declared names denote the same identity.
func SameIdentity(a, b string) bool {
	return Identity(a) == Identity(b)
}
