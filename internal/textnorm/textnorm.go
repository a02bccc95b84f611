// Package textnorm normalizes user-supplied text before it is validated or stored.
package textnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Clean trims surrounding whitespace and converts s to Unicode NFC so that
// visually identical titles compare and store the same way.
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// CleanPtr applies Clean to an optional value. Empty results become nil.
func CleanPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := Clean(*s)
	if v == "" {
		return nil
	}
	return &v
}
