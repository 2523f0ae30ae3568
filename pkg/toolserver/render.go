package toolserver

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// renderRow formats one result row in tuple form: (1, 'alice', None).
// A single column keeps the trailing comma: ('alice',).
func renderRow(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = renderValue(v)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return renderFloat(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case string:
		return quote(val)
	case []byte:
		return "b" + quote(string(val))
	case time.Time:
		return quote(formatTime(val, ""))
	default:
		return quote(fmt.Sprint(val))
	}
}

// formatTime renders a value the driver parsed out of a DATE, DATETIME or
// TIMESTAMP column. Fractional seconds and a non-UTC offset are kept, and a
// DATE without a time of day stays a bare date.
func formatTime(t time.Time, declType string) string {
	if strings.EqualFold(declType, "DATE") && t.Equal(t.Truncate(24*time.Hour)) {
		return t.Format(time.DateOnly)
	}
	layout := "2006-01-02 15:04:05.999999999"
	if _, offset := t.Zone(); offset != 0 {
		layout += "-07:00"
	}
	return t.Format(layout)
}

// renderFloat always shows a fractional part or an exponent: 3.0, 0.5, 1e+16.
func renderFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// quote wraps s in single quotes, switching to double quotes when s holds a
// single quote but no double quote.
func quote(s string) string {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	var b strings.Builder
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}
