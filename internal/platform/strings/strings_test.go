package strings

import (
	"testing"

	kit "keystat/internal/platform/testkit"
)

func TestOr(t *testing.T) {
	t.Parallel()

	cases := []struct{ in, def, want string }{
		{"run-1", "x", "run-1"},
		{"", "x", "x"},
		{" \t", "x", "x"},
	}
	for _, c := range cases {
		if got := Or(c.in, c.def); got != c.want {
			t.Fatalf("Or(%q, %q) = %q, want %q", c.in, c.def, got, c.want)
		}
	}
}

func TestMustString(t *testing.T) {
	t.Parallel()

	if got := MustString("keystat", "name"); got != "keystat" {
		t.Fatalf("MustString = %q", got)
	}
	kit.MustPanic(t, func() { _ = MustString("  ", "name") })
}

func TestSQLNull(t *testing.T) {
	t.Parallel()

	if SQLNull("  ") != nil {
		t.Fatalf("blank should be NULL")
	}
	if SQLNull("host-a") != "host-a" {
		t.Fatalf("value lost")
	}
}
