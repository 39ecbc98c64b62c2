package domain

import "testing"

func TestNormalizeClassID(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"0", "0"},
		{"7", "7"},
		{"007", "7"},
		{"0042", "42"},
		{" 13 ", "13"},
	}
	for _, tc := range cases {
		got, err := NormalizeClassID(tc.raw)
		if err != nil {
			t.Fatalf("NormalizeClassID(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeClassID(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeClassIDRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "-1", "12ab", "stop", "1.5", "1_2"} {
		if _, err := NormalizeClassID(raw); !IsKind(err, ErrMalformedClassID) {
			t.Fatalf("NormalizeClassID(%q): expected malformed class id error, got %v", raw, err)
		}
	}
}

func TestNormalizedVariantsCollapse(t *testing.T) {
	a, _ := NormalizeClassID("007")
	b, _ := NormalizeClassID("7")
	if a != b {
		t.Fatalf("zero-padded variants must share a canonical id: %q vs %q", a, b)
	}
}
