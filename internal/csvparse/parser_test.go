package csvparse

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected [][]string
	}{
		{
			"simple rows",
			"email,status\na@x.com,pending\n",
			[][]string{{"email", "status"}, {"a@x.com", "pending"}},
		},
		{
			"no trailing newline",
			"email,status\na@x.com,pending",
			[][]string{{"email", "status"}, {"a@x.com", "pending"}},
		},
		{
			"crlf line endings",
			"email,status\r\na@x.com,active\r\n",
			[][]string{{"email", "status"}, {"a@x.com", "active"}},
		},
		{
			"quoted field with comma",
			`a@x.com,"ops, infra"` + "\n",
			[][]string{{"a@x.com", "ops, infra"}},
		},
		{
			"quoted field with newline",
			"a@x.com,\"line one\nline two\"\n",
			[][]string{{"a@x.com", "line one\nline two"}},
		},
		{
			"doubled quote escape",
			`a@x.com,"say ""hi"""` + "\n",
			[][]string{{"a@x.com", `say "hi"`}},
		},
		{
			"empty fields preserved",
			"a@x.com,,\n",
			[][]string{{"a@x.com", "", ""}},
		},
		{
			"blank physical row preserved",
			"a@x.com\n\nb@x.com\n",
			[][]string{{"a@x.com"}, {""}, {"b@x.com"}},
		},
		{
			"quote opens mid-field",
			`hello "world",x` + "\n",
			[][]string{{"hello world", "x"}},
		},
		{
			"empty input",
			"",
			[][]string{{""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	// Fields containing every special character survive a quote-and-parse cycle.
	fields := []string{"plain", "with,comma", "with\nnewline", `with "quotes"`, ""}

	encoded := ""
	for i, f := range fields {
		if i > 0 {
			encoded += ","
		}
		encoded += `"` + doubleQuotes(f) + `"`
	}
	encoded += "\n"

	rows := Parse(encoded)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[0], fields) {
		t.Errorf("round trip mismatch: got %#v, want %#v", rows[0], fields)
	}
}

func doubleQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '"')
		}
		out = append(out, s[i])
	}
	return string(out)
}

func TestIsBlankRow(t *testing.T) {
	tests := []struct {
		cells    []string
		expected bool
	}{
		{[]string{""}, true},
		{[]string{"", "  ", "\t"}, true},
		{[]string{"", "x"}, false},
		{[]string{"a@x.com"}, false},
	}

	for _, tt := range tests {
		if got := IsBlankRow(tt.cells); got != tt.expected {
			t.Errorf("IsBlankRow(%#v) = %v, want %v", tt.cells, got, tt.expected)
		}
	}
}
