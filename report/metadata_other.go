//go:build !windows

package report

import (
	"bufio"
	"io"
	"os"
	"strings"
)

func systemInfo() map[string]string {
	f, err := os.Open("/etc/os-release")
	if err != nil {
		return nil
	}
	defer f.Close()
	return parseOSRelease(f)
}

// parseOSRelease maps PRETTY_NAME, VERSION_ID and ID from os-release(5).
func parseOSRelease(r io.Reader) map[string]string {
	keys := map[string]string{"PRETTY_NAME": "os_name", "VERSION_ID": "os_version", "ID": "os_id"}
	info := map[string]string{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok {
			continue
		}
		if name, want := keys[k]; want {
			info[name] = strings.Trim(v, `"'`)
		}
	}
	return info
}
