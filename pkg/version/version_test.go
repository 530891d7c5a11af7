package version

import (
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "pulse "+Version) {
		t.Fatalf("String() = %q", s)
	}
}
