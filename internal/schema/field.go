// Package schema describes the relational layout of the model: which columns
// each table holds, which of them carry change history, and how values are
// normalized for storage and for change detection.
package schema

import (
	"strconv"
	"time"
)

// Type is the logical type of a column.
type Type int

const (
	TypeString Type = iota
	TypeInteger
	TypeFloat
	TypeBoolean
	TypeTimestamp
)

func (t Type) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// Field is one column of a table.
type Field struct {
	Name     string
	Type     Type
	Nullable bool
	// Tracked fields produce change records when their value differs
	// between the stored row and the model.
	Tracked bool
}

// FormatForStorage converts a model value into the representation written to
// the database. Pointers are dereferenced, booleans become 0/1 and times
// RFC3339 text in UTC.
func (f Field) FormatForStorage(v any) any {
	v = deref(v)
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		return x.UTC().Format(time.RFC3339)
	case int:
		return int64(x)
	case []byte:
		return string(x)
	}
	return v
}

// FormatForComparison renders v as the canonical text used to decide whether
// a field changed. Absent values, empty strings and the literal "None" are all
// reported as nil so that none of them counts as a change against another.
func (f Field) FormatForComparison(v any) *string {
	v = deref(v)
	var s string
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" || x == "None" {
			return nil
		}
		s = f.coerceText(x)
	case []byte:
		if len(x) == 0 || string(x) == "None" {
			return nil
		}
		s = f.coerceText(string(x))
	case bool:
		s = "0"
		if x {
			s = "1"
		}
	case int:
		s = f.formatInt(int64(x))
	case int32:
		s = f.formatInt(int64(x))
	case int64:
		s = f.formatInt(x)
	case float32:
		s = strconv.FormatFloat(float64(x), 'f', -1, 64)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		if x.IsZero() {
			return nil
		}
		s = x.UTC().Format(time.RFC3339)
	default:
		return nil
	}
	return &s
}

func (f Field) formatInt(v int64) string {
	if f.Type == TypeBoolean {
		if v != 0 {
			return "1"
		}
		return "0"
	}
	return strconv.FormatInt(v, 10)
}

// coerceText normalizes numeric text read back from drivers that return
// numbers as strings.
func (f Field) coerceText(s string) string {
	switch f.Type {
	case TypeFloat:
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	case TypeInteger:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return strconv.FormatInt(v, 10)
		}
	case TypeBoolean:
		switch s {
		case "true", "t", "1":
			return "1"
		case "false", "f", "0":
			return "0"
		}
	case TypeTimestamp:
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return s
}

func deref(v any) any {
	switch x := v.(type) {
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case *int:
		if x == nil {
			return nil
		}
		return *x
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *float64:
		if x == nil {
			return nil
		}
		return *x
	case *bool:
		if x == nil {
			return nil
		}
		return *x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	}
	return v
}
