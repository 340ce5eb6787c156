package sqlgen

import (
	"fmt"
	"strconv"
	"strings"
)

// Inline substitutes args into '?' placeholders as SQL literals. View
// definitions cannot carry bound parameters, so compiled WHERE clauses are
// inlined before CREATE VIEW. Strings are quoted with doubled single
// quotes; everything else renders to an unambiguous literal or an error.
func Inline(sql string, args []any) (string, error) {
	var sb strings.Builder
	argIdx := 0
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			inString = !inString
		}
		if ch == '?' && !inString {
			if argIdx >= len(args) {
				return "", fmt.Errorf("placeholder %d has no argument", argIdx+1)
			}
			lit, err := literal(args[argIdx])
			if err != nil {
				return "", err
			}
			sb.WriteString(lit)
			argIdx++
			continue
		}
		sb.WriteByte(ch)
	}
	if argIdx != len(args) {
		return "", fmt.Errorf("%d arguments for %d placeholders", len(args), argIdx)
	}
	return sb.String(), nil
}

func literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot inline %T as a SQL literal", v)
	}
}
