package schema

import (
	"strings"
	"time"
)

// Properties whose string values are stored as timestamps. Mirrors the
// envelope and common observable time properties.
var timestampProps = map[string]struct{}{
	"accessed":       {},
	"created":        {},
	"date":           {},
	"end":            {},
	"first_observed": {},
	"last_observed":  {},
	"modified":       {},
	"start":          {},
	"timestamp":      {},
}

// IsTimestampProp reports whether the property name holds a timestamp.
func IsTimestampProp(name string) bool {
	_, ok := timestampProps[lastSegment(name)]
	return ok
}

func lastSegment(name string) string {
	if i := strings.LastIndexAny(name, ".:"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// IsRefProp reports whether the property name is a singular reference.
func IsRefProp(name string) bool {
	return strings.HasSuffix(lastSegment(name), "_ref")
}

// IsRefListProp reports whether the property name is a 1:N reference list.
func IsRefListProp(name string) bool {
	return strings.HasSuffix(lastSegment(name), "_refs")
}

// InferKind maps an observed property value onto a column kind. It is a
// pure function of the property name and the value's shape, so the same
// record always infers the same schema.
func InferKind(name string, value any) Kind {
	switch {
	case name == "id":
		return KindText
	case IsRefProp(name):
		return KindRef
	case IsRefListProp(name):
		return KindList
	}
	switch v := value.(type) {
	case bool:
		return KindBoolean
	case int, int32, int64:
		return KindInteger
	case float64:
		// JSON decoding yields float64 for every number; keep integral
		// values in integer columns.
		if v == float64(int64(v)) {
			return KindInteger
		}
		return KindFloat
	case float32:
		return KindFloat
	case []any, []string:
		return KindList
	case string:
		if IsTimestampProp(name) && validTimestamp(v) {
			return KindTimestamp
		}
		return KindText
	default:
		return KindText
	}
}

// validTimestamp accepts strict ISO-8601 UTC with optional fraction.
func validTimestamp(s string) bool {
	if !strings.HasSuffix(s, "Z") {
		return false
	}
	if _, err := time.Parse("2006-01-02T15:04:05Z", s); err == nil {
		return true
	}
	_, err := time.Parse("2006-01-02T15:04:05.999999999Z", s)
	return err == nil
}
