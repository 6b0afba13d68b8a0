// Package encoding normalizes bone and blendshape names before they are matched or serialized.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// EUCKRToUTF8 converts EUC-KR encoded bytes to a UTF-8 string.
// Returns the original bytes as a string if conversion fails.
func EUCKRToUTF8(data []byte) string {
	decoder := korean.EUCKR.NewDecoder()
	result, _, err := transform.Bytes(decoder, data)
	if err != nil {
		return string(data)
	}
	return string(result)
}

// NormalizeName returns the canonical form of an imported name.
// Names that are not valid UTF-8 are assumed to come from legacy EUC-KR content.
// Trailing NULs and surrounding whitespace are dropped and the result is NFC.
func NormalizeName(name string) string {
	data := bytes.TrimRight([]byte(name), "\x00")
	if !utf8.Valid(data) {
		name = EUCKRToUTF8(data)
	} else {
		name = string(data)
	}
	return norm.NFC.String(strings.TrimSpace(name))
}

// NormalizeNames applies NormalizeName to every element, returning a new slice.
func NormalizeNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeName(n)
	}
	return out
}
