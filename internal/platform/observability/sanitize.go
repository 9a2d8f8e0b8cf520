package observability

import (
	"strings"
	"unicode"
)

// Upper bounds for values copied from the request into log entries.
const (
	maxRouteLen  = 180
	maxMethodLen = 10
	maxIDLen     = 64
	maxFieldLen  = 256
)

// clip drops control characters other than whitespace and caps the result at limit runes so a
// crafted path or cookie cannot forge log lines.
func clip(value string, limit int) string {
	if limit <= 0 {
		limit = maxFieldLen
	}
	var b strings.Builder
	n := 0
	for _, r := range value {
		if n == limit {
			break
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

func cleanRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clip(route, maxRouteLen)
}

func cleanMethod(method string) string {
	return clip(strings.ToUpper(method), maxMethodLen)
}

// cleanID bounds visitor and user identifiers.
func cleanID(id string) string {
	return clip(strings.TrimSpace(id), maxIDLen)
}
