package coerce

import (
	"strings"
	"testing"
	"time"
)

func TestCoerce_TableDriven(t *testing.T) {
	t.Parallel()

	ts := time.Date(2021, 3, 14, 9, 26, 53, 0, time.UTC)

	tests := []struct {
		name string
		in   Value
		want any
	}{
		{name: "null", in: Null(), want: nil},
		{name: "zero_value_is_null", in: Value{}, want: nil},
		{name: "empty_text", in: Text(""), want: nil},
		{name: "empty_list", in: List(), want: nil},
		{name: "text", in: Text("Ann"), want: "Ann"},
		{name: "spaces_preserved", in: Text("  x  "), want: "  x  "},
		{name: "integer_number", in: Number(42), want: "42"},
		{name: "fractional_number", in: Number(3.5), want: "3.5"},
		{name: "bool_true", in: Bool(true), want: "true"},
		{name: "bool_false", in: Bool(false), want: "false"},
		{name: "time_format", in: Time(ts), want: "2021-03-14 09:26:53"},
		{name: "list_joined", in: List(Text("a"), Text("b"), Number(7)), want: "a b 7"},
		{name: "list_of_empty_texts", in: List(Text(""), Text("")), want: " "},
		{name: "list_single_null", in: List(Null()), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Coerce(tt.in)
			if got != tt.want {
				t.Fatalf("Coerce(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

// Coerce(list) must equal Coerce(join(list, " ")) for text lists.
func TestCoerce_ListEqualsJoinedText(t *testing.T) {
	t.Parallel()

	cases := [][]string{
		{"a", "b", "c"},
		{"only"},
		{"", "x"},
		{},
	}
	for _, elems := range cases {
		vals := make([]Value, 0, len(elems))
		for _, e := range elems {
			vals = append(vals, Text(e))
		}
		gotList := Coerce(List(vals...))
		gotJoin := Coerce(Text(strings.Join(elems, " ")))
		if gotList != gotJoin {
			t.Fatalf("Coerce(List(%q)) = %#v, Coerce(Text(join)) = %#v", elems, gotList, gotJoin)
		}
	}
}

func TestCoerce_TimeAlwaysDateTimeLayout(t *testing.T) {
	t.Parallel()

	in := time.Date(1999, 12, 31, 23, 59, 59, 123456789, time.FixedZone("X", 3600))
	got := Coerce(Time(in))
	s, ok := got.(string)
	if !ok {
		t.Fatalf("Coerce(Time) = %#v, want string", got)
	}
	if _, err := time.Parse(TimeLayout, s); err != nil {
		t.Fatalf("Coerce(Time) = %q does not match layout %q: %v", s, TimeLayout, err)
	}
}
