//go:build !windows

package report

import (
	"strings"
	"testing"
)

func TestParseOSRelease(t *testing.T) {
	in := `NAME="Ubuntu"
VERSION_ID="24.04"
ID=ubuntu
PRETTY_NAME="Ubuntu 24.04.1 LTS"
`
	info := parseOSRelease(strings.NewReader(in))
	if info["os_name"] != "Ubuntu 24.04.1 LTS" || info["os_version"] != "24.04" || info["os_id"] != "ubuntu" {
		t.Errorf("info = %v", info)
	}
}
