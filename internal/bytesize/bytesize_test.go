package bytesize

import "testing"

func TestParseDecimalAndBinarySizes(t *testing.T) {
	cases := map[string]uint64{
		"500MB": 500_000_000,
		"2GiB":  2_147_483_648,
		"1GiB":  1_073_741_824,
		"1KB":   1_000,
		"1KiB":  1_024,
		"42":    42,
		"42B":   42,
	}
	for input, want := range cases {
		got, err := Parse(input)
		if err != nil {
			t.Fatalf("Parse(%q): %v", input, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseRejectsEmpty(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestParseRejectsUnknownUnit(t *testing.T) {
	if _, err := Parse("5XB"); err == nil {
		t.Fatal("expected error for unknown unit")
	}
}

func TestParseRejectsMissingValue(t *testing.T) {
	if _, err := Parse("MB"); err == nil {
		t.Fatal("expected error for missing numeric value")
	}
}

func TestParseIgnoresWhitespace(t *testing.T) {
	got, err := Parse(" 5 MB ")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != 5_000_000 {
		t.Fatalf("got %d, want 5000000", got)
	}
}
