package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Fields is the substitution source for a filename template. Values are
// already rendered as text.
type Fields map[string]string

// FieldsFromJSON extracts template fields from raw. The boolean result is
// false when raw is valid JSON but not an object, which no template can be
// applied to. Text that is not JSON at all yields empty fields.
func FieldsFromJSON(raw string) (Fields, bool) {
	if !json.Valid([]byte(raw)) {
		return Fields{}, true
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return Fields{}, true
	}

	obj, ok := value.(map[string]any)
	if !ok {
		return nil, false
	}
	fields := make(Fields, len(obj))
	for k, v := range obj {
		fields[k] = stringify(v)
	}
	return fields, true
}

// stringify renders a decoded JSON value for use in a filename. Numbers are
// rendered as decimal text (see formatNumber); arrays and objects are written
// as compact JSON.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return formatNumber(val)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(val); err != nil {
			return fmt.Sprint(val)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}

// formatNumber renders a JSON number literal. Integers are written in plain
// decimal. Anything with a fraction or exponent is a float: the shortest
// representation that round-trips, always with a decimal point ("2.50" gives
// "2.5", "1e2" gives "100.0"), switching to exponent form below 1e-4 and from
// 1e16 up.
func formatNumber(n json.Number) string {
	lit := n.String()
	if !strings.ContainsAny(lit, ".eE") {
		if i, ok := new(big.Int).SetString(lit, 10); ok {
			return i.String()
		}
		return lit
	}

	f, err := strconv.ParseFloat(lit, 64)
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case err != nil:
		return lit
	}

	if abs := math.Abs(f); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Expand substitutes {name} placeholders in tmpl with values from fields.
// "{{" and "}}" produce literal braces. Placeholders are processed left to
// right; the first problem stops expansion. A name absent from fields yields
// *MissingTemplateKeyError. Positional or empty names, unbalanced braces,
// attribute or index access, conversions and format specs yield
// *TemplateFormatError.
func Expand(tmpl string, fields Fields) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				sb.WriteByte('}')
				i++
				continue
			}
			return "", formatError(tmpl, "single '}' encountered")
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(tmpl[i+1:], '}')
			if end < 0 {
				return "", formatError(tmpl, "single '{' encountered")
			}
			field := tmpl[i+1 : i+1+end]
			value, err := lookup(tmpl, field, fields)
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
			i += end + 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

// lookup resolves one placeholder body. The key is checked before any
// modifiers so a missing key is always reported as such.
func lookup(tmpl, field string, fields Fields) (string, error) {
	if strings.ContainsRune(field, '{') {
		return "", formatError(tmpl, "nested placeholder in %q", field)
	}

	name, modifiers := field, ""
	if idx := strings.IndexAny(field, "!:.["); idx >= 0 {
		name, modifiers = field[:idx], field[idx:]
	}
	if name == "" {
		return "", formatError(tmpl, "positional placeholder {%s}", field)
	}
	if isDigits(name) {
		return "", formatError(tmpl, "positional placeholder {%s}", field)
	}

	value, ok := fields[name]
	if !ok {
		return "", &MissingTemplateKeyError{Key: name}
	}
	if modifiers != "" {
		return "", formatError(tmpl, "unsupported placeholder modifier %q", modifiers)
	}
	return value, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func formatError(tmpl, format string, args ...any) *TemplateFormatError {
	return &TemplateFormatError{
		Template: tmpl,
		Message:  fmt.Sprintf(format, args...),
	}
}
