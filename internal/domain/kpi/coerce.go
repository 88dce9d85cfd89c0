package kpi

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Coerce converts an extracted raw value into a number.
// Numbers pass through. Strings keep digits, '.' and a '-' placed before every digit.
// Anything unparseable or missing becomes 0.
func Coerce(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		return CoerceString(s)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// CoerceString applies the string branch of Coerce.
func CoerceString(s string) float64 {
	var b strings.Builder
	sawDigit, sawMinus := false, false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			sawDigit = true
			b.WriteRune(r)
		case r == '.':
			b.WriteRune(r)
		case r == '-' && !sawDigit && !sawMinus:
			sawMinus = true
			b.WriteRune(r)
		}
	}
	f, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
