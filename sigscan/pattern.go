// Package sigscan locates engine internals inside the code of a loaded module
// by matching byte signatures with wildcards.
package sigscan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrNotFound is returned when a pattern does not match inside the scanned range.
var ErrNotFound = errors.New("signature not found")

var errInvalidPattern = errors.New("invalid pattern")

// Pattern is a byte signature. Bytes flagged as wildcard match any value.
type Pattern struct {
	Name     string
	Bytes    []byte
	Wildcard []bool

	// Occurrence selects the match to return, 0 returns the first match.
	Occurrence int
	// Offset is added to the address of the match before returning it.
	Offset int
}

// Parse parses a pattern string like "48 8B 0D ?? ?? ?? ??". Whitespace is
// ignored, every two characters form one byte and "??" is a wildcard byte.
func Parse(name, s string) (Pattern, error) {
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	if compact == "" || len(compact)%2 != 0 {
		return Pattern{}, fmt.Errorf("%w '%s': expected an even number of nibbles", errInvalidPattern, name)
	}

	p := Pattern{
		Name:     name,
		Bytes:    make([]byte, 0, len(compact)/2),
		Wildcard: make([]bool, 0, len(compact)/2),
	}
	for i := 0; i < len(compact); i += 2 {
		token := compact[i : i+2]
		if token == "??" {
			p.Bytes = append(p.Bytes, 0)
			p.Wildcard = append(p.Wildcard, true)
			continue
		}
		value, err := strconv.ParseUint(token, 16, 8)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w '%s': invalid byte '%s' at position %d",
				errInvalidPattern, name, token, i/2)
		}
		p.Bytes = append(p.Bytes, byte(value))
		p.Wildcard = append(p.Wildcard, false)
	}
	return p, nil
}

// MustParse is like Parse but panics on invalid patterns. It is intended for
// package level signature tables.
func MustParse(name, s string, offset int) Pattern {
	p, err := Parse(name, s)
	if err != nil {
		panic(err)
	}
	p.Offset = offset
	return p
}

// Len returns the length of the pattern in bytes.
func (p Pattern) Len() int {
	return len(p.Bytes)
}

// Match returns whether the pattern matches data at the given index.
func (p Pattern) Match(data []byte, index int) bool {
	if index < 0 || index+len(p.Bytes) > len(data) {
		return false
	}
	for i, b := range p.Bytes {
		if !p.Wildcard[i] && data[index+i] != b {
			return false
		}
	}
	return true
}

// String returns the pattern in its parseable form.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, b := range p.Bytes {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if p.Wildcard[i] {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", b)
		}
	}
	return sb.String()
}
