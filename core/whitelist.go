package core

import (
	"strings"
	"sync"
)

// Whitelist answers "is this a known-good system artifact". Modules consult
// it before reporting; the policy data lives behind this interface so it can
// be swapped or extended from configuration.
type Whitelist interface {
	IsSystemProcess(name string) bool
	IsSystemPath(path string) bool
	IsSystemService(name string) bool
	IsSystemDLL(name string) bool
	IsKnownPersistence(name string) bool
	IsSafeUnquotedPath(path string) bool
}

// ShouldReport implements the suppression rule: a whitelisted system
// artifact is dropped only while its level stays Low.
func ShouldReport(level SecurityLevel, whitelisted bool) bool {
	return !whitelisted || level >= LevelMedium
}

// SystemWhitelist is the built-in policy set.
type SystemWhitelist struct {
	mu           sync.RWMutex
	processes    map[string]struct{}
	services     map[string]struct{}
	dlls         map[string]struct{}
	paths        []string
	persistence  []string
	safeUnquoted []string
}

func NewSystemWhitelist() *SystemWhitelist {
	w := &SystemWhitelist{
		processes: map[string]struct{}{},
		services:  map[string]struct{}{},
		dlls:      map[string]struct{}{},
	}
	w.AddProcesses(
		"system", "registry", "smss.exe", "csrss.exe", "wininit.exe", "winlogon.exe",
		"services.exe", "lsass.exe", "svchost.exe", "explorer.exe", "dwm.exe",
		"taskhost.exe", "taskhostw.exe", "spoolsv.exe", "runtimebroker.exe",
		"searchindexer.exe", "wuauclt.exe", "wmiprvse.exe", "dllhost.exe", "msdtc.exe",
		"conhost.exe", "fontdrvhost.exe", "sihost.exe", "ctfmon.exe", "audiodg.exe",
		"dashost.exe", "searchapp.exe", "startmenuexperiencehost.exe",
		"shellexperiencehost.exe", "textinputhost.exe", "securityhealthservice.exe",
		"securityhealthsystray.exe", "msmpeng.exe", "nissrv.exe", "sgrmbroker.exe",
		"searchprotocolhost.exe", "searchfilterhost.exe",
		// linux
		"systemd", "init", "kthreadd", "sshd", "cron", "dbus-daemon", "systemd-journald",
		"systemd-logind", "systemd-udevd", "rsyslogd", "agetty",
	)
	w.AddServices(
		"wuauserv", "bits", "eventlog", "schedule", "winmgmt", "lanmanserver",
		"lanmanworkstation", "dnscache", "dhcp", "nsi", "nlasvc", "mpssvc", "wscsvc",
		"windefend", "securityhealthservice", "sense", "diagtrack", "dmwappushservice",
		"spooler", "stisvc", "themes", "audiosrv", "cryptsvc", "dcomlaunch", "gpsvc",
		"profsvc", "rpcss", "samss", "shellhwdetection", "sysmain", "tokenbroker",
		"usosvc", "wersvc", "wlidsvc", "wsearch",
	)
	w.AddDLLs(
		"ntdll.dll", "kernel32.dll", "kernelbase.dll", "user32.dll", "gdi32.dll",
		"advapi32.dll", "ole32.dll", "oleaut32.dll", "shell32.dll", "comctl32.dll",
		"comdlg32.dll", "ws2_32.dll", "msvcrt.dll", "msvcp140.dll", "vcruntime140.dll",
		"ucrtbase.dll", "bcrypt.dll", "crypt32.dll", "sechost.dll", "rpcrt4.dll",
		"imm32.dll", "msctf.dll", "clbcatq.dll",
	)
	w.AddPaths(
		`c:\windows\system32`, `c:\windows\syswow64`, `c:\windows`,
		`c:\program files\windows defender`, `c:\program files (x86)\windows defender`,
		"/usr/bin", "/usr/sbin", "/bin", "/sbin", "/usr/lib", "/lib", "/usr/libexec",
	)
	w.AddPersistence("Windows Defender", "SecurityHealth", "OneDrive", "Microsoft Edge Update", "Windows Security")
	w.AddSafeUnquoted(`c:\windows\`, `c:\program files\windows`)
	return w
}

func (w *SystemWhitelist) AddProcesses(names ...string) { w.addSet(w.processes, names) }
func (w *SystemWhitelist) AddServices(names ...string)  { w.addSet(w.services, names) }
func (w *SystemWhitelist) AddDLLs(names ...string)      { w.addSet(w.dlls, names) }

func (w *SystemWhitelist) AddPaths(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		if p = normPath(p); p != "" {
			w.paths = append(w.paths, p)
		}
	}
}

func (w *SystemWhitelist) AddPersistence(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			w.persistence = append(w.persistence, strings.ToLower(n))
		}
	}
}

func (w *SystemWhitelist) AddSafeUnquoted(prefixes ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			w.safeUnquoted = append(w.safeUnquoted, p)
		}
	}
}

func (w *SystemWhitelist) addSet(set map[string]struct{}, names []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, n := range names {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" {
			set[n] = struct{}{}
		}
	}
}

func (w *SystemWhitelist) has(set map[string]struct{}, name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := set[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func (w *SystemWhitelist) IsSystemProcess(name string) bool { return w.has(w.processes, name) }
func (w *SystemWhitelist) IsSystemService(name string) bool { return w.has(w.services, name) }
func (w *SystemWhitelist) IsSystemDLL(name string) bool     { return w.has(w.dlls, name) }

// IsSystemPath matches on directory boundaries, so c:\windowsevil is not
// treated as c:\windows.
func (w *SystemWhitelist) IsSystemPath(path string) bool {
	p := normPath(path)
	if p == "" {
		return false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sys := range w.paths {
		if p == sys || strings.HasPrefix(p, sys+`\`) || strings.HasPrefix(p, sys+"/") {
			return true
		}
	}
	return false
}

func (w *SystemWhitelist) IsKnownPersistence(name string) bool {
	n := strings.ToLower(name)
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, k := range w.persistence {
		if strings.Contains(n, k) {
			return true
		}
	}
	return false
}

// IsSafeUnquotedPath: path di bawah prefix aman, atau tidak ada spasi
// sebelum ".exe" (tidak bisa dibajak lewat unquoted path).
func (w *SystemWhitelist) IsSafeUnquotedPath(path string) bool {
	p := strings.ToLower(strings.TrimSpace(path))
	w.mu.RLock()
	for _, safe := range w.safeUnquoted {
		if strings.HasPrefix(p, safe) {
			w.mu.RUnlock()
			return true
		}
	}
	w.mu.RUnlock()
	if idx := strings.Index(p, ".exe"); idx != -1 {
		return !strings.Contains(p[:idx], " ")
	}
	return false
}

func normPath(p string) string {
	p = strings.ToLower(strings.Trim(strings.TrimSpace(p), `"`))
	return strings.TrimRight(p, `\/`)
}
