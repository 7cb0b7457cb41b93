package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind tags the runtime type of a Value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindText
	KindBool
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "NULL"
	case KindInt:
		return "INT"
	case KindText:
		return "TEXT"
	case KindBool:
		return "BOOL"
	case KindDate:
		return "DATE"
	default:
		return "UNKNOWN"
	}
}

// dateLayouts are the formats accepted when a text value stands in for a date.
var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// Value is a tagged value held in a record field. The zero Value is null.
type Value struct {
	kind Kind
	i    int64
	s    string
	b    bool
	t    time.Time
}

func Null() Value               { return Value{kind: KindNull} }
func NewInt(v int64) Value      { return Value{kind: KindInt, i: v} }
func NewText(v string) Value    { return Value{kind: KindText, s: v} }
func NewBool(v bool) Value      { return Value{kind: KindBool, b: v} }
func NewDate(v time.Time) Value { return Value{kind: KindDate, t: v.UTC().Truncate(time.Second)} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) Int() int64      { return v.i }
func (v Value) Text() string    { return v.s }
func (v Value) Bool() bool      { return v.b }
func (v Value) Date() time.Time { return v.t }

// ParseLiteral interprets a raw SQL literal: quoted strings, true/false,
// null, else number-or-string.
func ParseLiteral(raw string) Value {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return NewText(raw[1 : len(raw)-1])
		}
	}
	switch strings.ToLower(raw) {
	case "null":
		return Null()
	case "true":
		return NewBool(true)
	case "false":
		return NewBool(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return NewInt(n)
	}
	return NewText(raw)
}

// ParseDate parses a date from its text form.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("'%s' is not a parseable date", s)
}

// MatchesType reports whether the value can be stored in a column of the
// given type. Null is valid for every column type.
func (v Value) MatchesType(dt DataType) bool {
	if v.kind == KindNull {
		return true
	}
	switch dt {
	case TypeInt:
		return v.kind == KindInt
	case TypeVarchar:
		return v.kind == KindText
	case TypeBoolean:
		return v.kind == KindBool
	case TypeDate:
		if v.kind == KindDate {
			return true
		}
		if v.kind == KindText {
			_, err := ParseDate(v.s)
			return err == nil
		}
	}
	return false
}

// CoerceToType normalizes a value for storage in a column of the given type.
// Text values standing in for dates become date values.
func CoerceToType(v Value, dt DataType) (Value, error) {
	if v.kind == KindNull {
		return v, nil
	}
	if dt == TypeDate && v.kind == KindText {
		t, err := ParseDate(v.s)
		if err != nil {
			return Value{}, err
		}
		return NewDate(t), nil
	}
	if !v.MatchesType(dt) {
		return Value{}, fmt.Errorf("value %s has type %s, expected %s", v, v.kind, dt)
	}
	return v, nil
}

// Equal reports strict equality. Null equals only null. A date compared
// against its text form is coerced first.
func (v Value) Equal(other Value) bool {
	if v.kind == KindNull || other.kind == KindNull {
		return v.kind == KindNull && other.kind == KindNull
	}
	a, b, ok := align(v, other)
	if !ok {
		return false
	}
	switch a.kind {
	case KindInt:
		return a.i == b.i
	case KindText:
		return a.s == b.s
	case KindBool:
		return a.b == b.b
	case KindDate:
		return a.t.Equal(b.t)
	}
	return false
}

// Compare orders two non-null values of the same kind. It returns an error
// for null operands and for kinds that cannot be ordered against each other.
func (v Value) Compare(other Value) (int, error) {
	if v.kind == KindNull || other.kind == KindNull {
		return 0, fmt.Errorf("cannot order null values")
	}
	a, b, ok := align(v, other)
	if !ok {
		return 0, fmt.Errorf("cannot compare %s with %s", v.kind, other.kind)
	}
	switch a.kind {
	case KindInt:
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}
		return 0, nil
	case KindText:
		return strings.Compare(a.s, b.s), nil
	case KindDate:
		switch {
		case a.t.Before(b.t):
			return -1, nil
		case a.t.After(b.t):
			return 1, nil
		}
		return 0, nil
	case KindBool:
		return 0, fmt.Errorf("boolean values have no ordering")
	}
	return 0, fmt.Errorf("cannot compare %s values", a.kind)
}

// align reconciles the kinds of two values, coercing text to date when the
// other side is a date.
func align(a, b Value) (Value, Value, bool) {
	if a.kind == b.kind {
		return a, b, true
	}
	if a.kind == KindDate && b.kind == KindText {
		if t, err := ParseDate(b.s); err == nil {
			return a, NewDate(t), true
		}
	}
	if a.kind == KindText && b.kind == KindDate {
		if t, err := ParseDate(a.s); err == nil {
			return NewDate(t), b, true
		}
	}
	return a, b, false
}

// Key returns a canonical string form used as a hash bucket key. Values that
// are Equal produce the same key.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "n:"
	case KindInt:
		return "i:" + strconv.FormatInt(v.i, 10)
	case KindText:
		return "s:" + v.s
	case KindBool:
		return "b:" + strconv.FormatBool(v.b)
	case KindDate:
		return "d:" + v.t.Format(time.RFC3339)
	}
	return ""
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "NULL"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return "'" + v.s + "'"
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindDate:
		return v.t.Format("2006-01-02")
	}
	return "?"
}
