package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	orig := Version
	Version = "v1.2.3"
	defer func() { Version = orig }()

	info := Info()
	if info.Version != "v1.2.3" {
		t.Errorf("expected version v1.2.3, got %s", info.Version)
	}
	if !strings.HasPrefix(info.String(), "voteperfx version v1.2.3, commit none") {
		t.Errorf("unexpected version string: %s", info.String())
	}
}
