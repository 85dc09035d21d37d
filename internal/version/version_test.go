package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	orig := Version
	Version = "1.2.3"
	defer func() { Version = orig }()

	info := Get()
	if info.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", info.Version)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
	if !strings.HasPrefix(info.String(), "1.2.3 (") {
		t.Errorf("String() = %q", info.String())
	}
}
