package engine

import "testing"

func TestParseCapacityValues(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"12345", 12345},
		{"500MiB", 500_000_000},
		{"2GiB", 2_000_000_000},
		{"1GiB", 1_000_000_000},
	}
	for _, c := range cases {
		got, err := ParseCapacity(c.in)
		if err != nil {
			t.Fatalf("ParseCapacity(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("ParseCapacity(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseCapacityMalformed(t *testing.T) {
	for _, in := range []string{"12x45", "GiB", "MiB", "-1MiB", "1.5GiB", "-7", "two"} {
		_, err := ParseCapacity(in)
		if err == nil {
			t.Fatalf("ParseCapacity(%q): expected error", in)
		}
		if !IsInvalidCapacity(err) {
			t.Fatalf("ParseCapacity(%q): wrong error type: %v", in, err)
		}
	}
}

func TestParseCapacityDecimalMultipliers(t *testing.T) {
	// The unit names look binary but the multipliers are decimal; a change
	// here would silently shrink or grow every configured cache.
	got, err := ParseCapacity("1GiB")
	if err != nil {
		t.Fatalf("ParseCapacity: %v", err)
	}
	if got != 1_000_000_000 {
		t.Fatalf("1GiB = %d, want decimal 1_000_000_000", got)
	}
}
