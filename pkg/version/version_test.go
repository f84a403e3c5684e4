package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	if !strings.HasPrefix(info, "pgedge-storebench "+Version) {
		t.Errorf("Expected info to start with the version, got %q", info)
	}
}

func TestFields(t *testing.T) {
	f := Fields()
	for _, key := range []string{"version", "commit", "build_date", "go_version"} {
		if f[key] == "" {
			t.Errorf("Expected %s to be set", key)
		}
	}
	if f["version"] != Version {
		t.Errorf("Expected version %s, got %s", Version, f["version"])
	}
}
