package zips

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10001", "10001"},
		{" 10001 ", "10001"},
		{"7093", "07093"},     // leading zero restored
		{"10001.0", "10001"},  // numeric source rendered as float
		{"7093.0", "07093"},
		{"", ""},
		{"E1 6AN", "E1 6AN"},  // non-numeric passes through
	}

	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadMetadata(t *testing.T) {
	src := strings.Join([]string{
		"zip,borough,neighborhood",
		"10001,Manhattan,Chelsea",
		"11201,Brooklyn,Downtown",
		"7093.0,New Jersey,West New York",
	}, "\n")

	table, err := LoadMetadata(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.Len())
	}

	meta, ok := table.Lookup("10001")
	if !ok {
		t.Fatal("expected 10001 to be present")
	}
	if meta.Borough != "Manhattan" || meta.Neighborhood != "Chelsea" {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	// The numeric float zip is findable under its canonical form only.
	if _, ok := table.Lookup("07093"); !ok {
		t.Fatal("expected 07093 to be present under canonical form")
	}
	if _, ok := table.Lookup("7093.0"); ok {
		t.Fatal("raw form should not be a valid key")
	}

	if _, ok := table.Lookup("99999"); ok {
		t.Fatal("expected miss for unknown zip")
	}
}

func TestLoadMetadataEmpty(t *testing.T) {
	if _, err := LoadMetadata(strings.NewReader("zip,borough,neighborhood\n")); err == nil {
		t.Fatal("expected error for metadata with no rows")
	}
}
