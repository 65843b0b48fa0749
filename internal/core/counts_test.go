package core

import "testing"

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		out  int64
		kind CountKind
	}{
		{"0", 0, CountExact},
		{"12", 12, CountExact},
		{" 7 ", 7, CountExact},
		{"+4", 4, CountExact},
		{"3.0", 3, CountExact},
		{"3.00", 3, CountExact},
		{"1e3", 1000, CountExact},
		{"", 0, CountMissing},
		{"   ", 0, CountMissing},
		{"NA", 0, CountMissing},
		{"NaN", 0, CountMissing},
		{"null", 0, CountMissing},
		{"<NA>", 0, CountMissing},
		{"3.5", 4, CountRounded},
		{"2.4", 2, CountRounded},
		{".5", 1, CountRounded},
		{"-1", 0, CountInvalid},
		{"-2.5", 0, CountInvalid},
		{"abc", 0, CountInvalid},
		{"1.2.3", 0, CountInvalid},
		{"inf", 0, CountInvalid},
		{"99999999999999999999", 0, CountInvalid},
	}
	for _, tc := range cases {
		got, kind := ParseCount(tc.in)
		if got != tc.out || kind != tc.kind {
			t.Fatalf("%q expected (%d, %d), got (%d, %d)", tc.in, tc.out, tc.kind, got, kind)
		}
	}
}
