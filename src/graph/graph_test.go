package graph

import (
	"strings"
	"testing"
)

func TestShortLabel(t *testing.T) {
	unit := "oj8yEksX9Ubq7lLc+p6F2uyHUuynugeVq4+ikT67X6E="
	if l := ShortLabel(unit); l != "oj8yEks..." {
		t.Fatalf("label should be oj8yEks..., not %s", l)
	}
	if l := ShortLabel("abc"); l != "abc" {
		t.Fatalf("short ids are kept, got %s", l)
	}
}

func TestParseTarget(t *testing.T) {
	unit := strings.Repeat("u", UnitHashLength)
	address := strings.Repeat("A", AddressLength)

	a, err := ParseTarget(unit)
	if err != nil || a != UnitAnchor(unit) {
		t.Fatalf("expected a unit anchor, got %v %v", a, err)
	}

	a, err = ParseTarget(address)
	if err != nil || a != AddressAnchor(address) {
		t.Fatalf("expected an address anchor, got %v %v", a, err)
	}

	if _, err := ParseTarget("nonsense"); err == nil {
		t.Fatal("nonsense should not parse")
	}
}

func TestParseDirection(t *testing.T) {
	for _, d := range []Direction{Initial, Older, Newer} {
		parsed, err := ParseDirection(d.String())
		if err != nil || parsed != d {
			t.Fatalf("%s should parse back, got %v %v", d, parsed, err)
		}
	}
	if _, err := ParseDirection("sideways"); err == nil {
		t.Fatal("sideways should not parse")
	}
}
