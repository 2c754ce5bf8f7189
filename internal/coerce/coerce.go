// Package coerce canonicalizes heterogeneous source cell values into the
// single nullable-text representation every destination table stores.
//
// Every pipeline (delimited text, spreadsheet, audit file) funnels raw values
// through Coerce before insert, so a column holds either NULL or a plain
// string regardless of the source container's native typing.
package coerce

import (
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the storage form for date/time-typed source values.
const TimeLayout = "2006-01-02 15:04:05"

// Kind discriminates the variants a raw source value can take.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindNumber
	KindBool
	KindTime
	KindList
)

// Value is a tagged variant for a single raw cell or element value.
//
// Sources produce exactly these cases: text, number, boolean, date/time,
// empty, or a list-like composite. Construct values with the package
// constructors; the zero Value is the null value.
type Value struct {
	kind Kind
	text string
	num  float64
	b    bool
	t    time.Time
	list []Value
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Time returns a date/time value.
func Time(t time.Time) Value { return Value{kind: KindTime, t: t} }

// List returns a composite value holding the given elements.
func List(elems ...Value) Value { return Value{kind: KindList, list: elems} }

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Coerce converts a raw source value into its storage representation.
//
// Rules:
//   - Null, the empty string, and an empty list coerce to nil (stored NULL).
//   - Date/time values format as "2006-01-02 15:04:05".
//   - Lists join their elements' text forms with a single space, then coerce
//     as text (so a list of empties still collapses toward NULL).
//   - Everything else becomes its plain text form.
//
// Coerce is total: it never fails, whatever v holds.
func Coerce(v Value) any {
	switch v.kind {
	case KindNull:
		return nil
	case KindText:
		if v.text == "" {
			return nil
		}
		return v.text
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindTime:
		return v.t.Format(TimeLayout)
	case KindList:
		if len(v.list) == 0 {
			return nil
		}
		return Coerce(Text(joinList(v.list)))
	default:
		return nil
	}
}

// joinList renders each element in its text form and joins with one space.
// Null elements contribute an empty segment, matching a plain string join.
func joinList(elems []Value) string {
	parts := make([]string, 0, len(elems))
	for _, e := range elems {
		parts = append(parts, textForm(e))
	}
	return strings.Join(parts, " ")
}

func textForm(v Value) string {
	c := Coerce(v)
	if c == nil {
		return ""
	}
	return c.(string)
}
