package version

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	v := Get()
	if v == "" {
		t.Fatal("Get() returned empty version")
	}
	if strings.TrimSpace(v) != v {
		t.Errorf("Get() = %q, want trimmed", v)
	}
	if !strings.HasSuffix(String(), v) {
		t.Errorf("String() = %q, want suffix %q", String(), v)
	}
}
