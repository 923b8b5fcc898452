package core

import (
	"strings"
	"testing"
)

func TestGetVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	for _, part := range []string{Version, "built " + BuildTime, "commit " + GitCommit} {
		if !strings.Contains(info, part) {
			t.Errorf("GetVersionInfo() = %q, missing %q", info, part)
		}
	}
}
