// internal/dlmm/ref.go
package dlmm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Ref is an identifier that the API may send either as a JSON number or as a
// JSON string. Both forms decode to the same canonical string so that a bin's
// pool reference 123 equals the pool id "123".
type Ref string

// UnmarshalJSON accepts numbers and strings.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode ref: %w", err)
		}
		*r = Ref(NormalizeRef(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode ref: %w", err)
	}
	*r = Ref(NormalizeRef(n.String()))
	return nil
}

// String returns the canonical form.
func (r Ref) String() string {
	return string(r)
}

// Equal compares two refs after normalization.
func (r Ref) Equal(other Ref) bool {
	return NormalizeRef(string(r)) == NormalizeRef(string(other))
}

// NormalizeRef trims whitespace and strips the fractional part of integral
// numeric identifiers ("123.0" -> "123").
func NormalizeRef(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '.'); i > 0 && isDigits(s[:i]) && strings.Trim(s[i+1:], "0") == "" {
		return s[:i]
	}
	return s
}

// Short returns the first n characters of the ref.
func (r Ref) Short(n int) string {
	s := string(r)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
