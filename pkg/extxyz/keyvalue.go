package extxyz

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/psantana5/dftd-labeler/pkg/models"
)

// pair is one key=value entry of a comment line, in file order
type pair struct {
	Key   string
	Value string
	Bare  bool // key given without "=value"
}

// splitKeyValues tokenizes an extxyz comment line.
// Values may be bare, double-quoted (with \" escapes) or wrapped in {} / [].
func splitKeyValues(line string) ([]pair, error) {
	var pairs []pair
	rs := []rune(line)
	i := 0
	for {
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
		if i >= len(rs) {
			return pairs, nil
		}

		start := i
		for i < len(rs) && rs[i] != '=' && !unicode.IsSpace(rs[i]) {
			i++
		}
		key := string(rs[start:i])
		if key == "" {
			return nil, fmt.Errorf("empty key at column %d", start+1)
		}

		// Tolerate spaces around '='
		j := i
		for j < len(rs) && unicode.IsSpace(rs[j]) {
			j++
		}
		if j >= len(rs) || rs[j] != '=' {
			pairs = append(pairs, pair{Key: key, Bare: true})
			i = j
			continue
		}
		i = j + 1
		for i < len(rs) && unicode.IsSpace(rs[i]) {
			i++
		}
		if i >= len(rs) {
			return nil, fmt.Errorf("key %q has no value", key)
		}

		var value strings.Builder
		switch rs[i] {
		case '"':
			i++
			closed := false
			for i < len(rs) {
				if rs[i] == '\\' && i+1 < len(rs) {
					value.WriteRune(rs[i+1])
					i += 2
					continue
				}
				if rs[i] == '"' {
					closed = true
					i++
					break
				}
				value.WriteRune(rs[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quote in value of %q", key)
			}
		case '{', '[':
			open, closer := rs[i], map[rune]rune{'{': '}', '[': ']'}[rs[i]]
			depth := 0
			for i < len(rs) {
				if rs[i] == open {
					depth++
				} else if rs[i] == closer {
					depth--
				}
				value.WriteRune(rs[i])
				i++
				if depth == 0 {
					break
				}
			}
			if depth != 0 {
				return nil, fmt.Errorf("unbalanced %c in value of %q", open, key)
			}
		default:
			for i < len(rs) && !unicode.IsSpace(rs[i]) {
				value.WriteRune(rs[i])
				i++
			}
		}
		pairs = append(pairs, pair{Key: key, Value: value.String()})
	}
}

// parseValue infers the type of an info value
func parseValue(raw string, bare bool) models.Value {
	if bare {
		return models.BoolValue(true)
	}

	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		inner := strings.NewReplacer("[", " ", "]", " ", "{", " ", "}", " ", ",", " ").Replace(s)
		if reals, ok := parseReals(strings.Fields(inner)); ok {
			return models.RealArrayValue(reals)
		}
		return models.StringValue(raw)
	}

	fields := strings.Fields(s)
	if len(fields) > 1 {
		if reals, ok := parseReals(fields); ok {
			return models.RealArrayValue(reals)
		}
		return models.StringValue(raw)
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.IntValue(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return models.RealValue(f)
	}
	if b, ok := parseBool(s); ok {
		return models.BoolValue(b)
	}
	return models.StringValue(raw)
}

func parseReals(fields []string) ([]float64, bool) {
	if len(fields) == 0 {
		return nil, false
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func parseBool(s string) (bool, bool) {
	switch s {
	case "T", "True", "true", "TRUE":
		return true, true
	case "F", "False", "false", "FALSE":
		return false, true
	}
	return false, false
}

// formatValue renders an info value for a comment line
func formatValue(v models.Value) string {
	switch v.Kind {
	case models.KindReal:
		return formatReal(v.Real)
	case models.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case models.KindBool:
		if v.Bool {
			return "T"
		}
		return "F"
	case models.KindRealArray:
		parts := make([]string, len(v.Reals))
		for i, r := range v.Reals {
			parts[i] = formatReal(r)
		}
		return `"` + strings.Join(parts, " ") + `"`
	default:
		return quoteIfNeeded(v.Str)
	}
}

func formatReal(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func quoteIfNeeded(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"=\\{}[]") {
		return s
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s) + `"`
}
