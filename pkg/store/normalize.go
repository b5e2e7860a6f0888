package store

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NormalizeDisplayText makes Engine-provided text safe to render: it repairs
// UTF-8 that was decoded as Latin-1 ("CompaÃ±Ã­a" -> "Compañía"), drops control
// characters other than newline and tab, and applies NFC.
func NormalizeDisplayText(s string) string {
	s = repairMojibake(s)
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(norm.NFC.String(s))
}

func repairMojibake(s string) string {
	if !strings.ContainsAny(s, "ÃÂ") {
		return s
	}
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFF {
			return s
		}
		buf = append(buf, byte(r))
	}
	if !utf8.Valid(buf) {
		return s
	}
	return string(buf)
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		return NormalizeDisplayText(t)
	case map[string]interface{}:
		for k, inner := range t {
			t[k] = normalizeValue(inner)
		}
		return t
	case []interface{}:
		for i, inner := range t {
			t[i] = normalizeValue(inner)
		}
		return t
	}
	return v
}
