package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestString(t *testing.T) {
	s := String()
	if !strings.HasPrefix(s, "shokz-sync dev") {
		t.Errorf("String() = %q, want prefix %q", s, "shokz-sync dev")
	}
	if !strings.Contains(s, runtime.Version()) {
		t.Errorf("String() = %q, missing go version", s)
	}
}
