package report

import (
	"os"
	"os/user"
	"runtime"
	"time"

	"corp/sysrecon/core"
)

const Tool = "sysrecon"

// CollectMetadata fills the host part of Metadata. System details come from
// WMI on Windows and /etc/os-release elsewhere; failures leave them empty.
func CollectMetadata(version string, start time.Time) Metadata {
	m := Metadata{
		Tool:     Tool,
		Version:  version,
		ScanTime: start,
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
	}
	if h, err := os.Hostname(); err == nil {
		m.Hostname = h
	}
	if u, err := user.Current(); err == nil {
		m.Username = u.Username
	}
	m.Privileges = core.EnabledPrivileges()
	if info := systemInfo(); len(info) > 0 {
		m.SystemInfo = info
		if name := info["os_name"]; name != "" {
			m.OS = name
		}
	}
	return m
}

// Hotfix is one installed update (Win32_QuickFixEngineering).
type Hotfix struct {
	ID          string
	InstalledOn time.Time
	Raw         string
}

var hotfixLayouts = []string{"1/2/2006", "01/02/2006", "2006-01-02", "02 Jan 2006", "Jan 02, 2006", "20060102"}

// NewHotfix parses the locale dependent InstalledOn string; an unknown
// layout leaves InstalledOn zero.
func NewHotfix(id, installedOn string) Hotfix {
	h := Hotfix{ID: id, Raw: installedOn}
	for _, layout := range hotfixLayouts {
		if t, err := time.Parse(layout, installedOn); err == nil {
			h.InstalledOn = t
			break
		}
	}
	return h
}

// Date is YYYY-MM-DD, or the raw string when it could not be parsed.
func (h Hotfix) Date() string {
	if h.InstalledOn.IsZero() {
		return h.Raw
	}
	return h.InstalledOn.Format("2006-01-02")
}
