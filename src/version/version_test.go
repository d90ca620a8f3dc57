package version

import "testing"

// TestFlagEmpty fails if version.Flag is not empty, which releases require.
func TestFlagEmpty(t *testing.T) {
	if len(Flag) > 0 {
		t.Fatalf("Version Flag is not empty: %s", Flag)
	}
}

func TestFull(t *testing.T) {
	cases := []struct {
		flag, commit, expected string
	}{
		{"", "", "0.1.0"},
		{"rc1", "", "0.1.0-rc1"},
		{"", "0123456789abcdef", "0.1.0-01234567"},
		{"rc1", "0123", "0.1.0-rc1"},
	}
	for _, c := range cases {
		if v := full("0.1.0", c.flag, c.commit); v != c.expected {
			t.Fatalf("expected %s, got %s", c.expected, v)
		}
	}
}
