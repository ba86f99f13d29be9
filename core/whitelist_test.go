package core

import "testing"

func TestShouldReport(t *testing.T) {
	cases := []struct {
		level       SecurityLevel
		whitelisted bool
		want        bool
	}{
		{LevelLow, true, false},
		{LevelMedium, true, true},
		{LevelCritical, true, true},
		{LevelLow, false, true},
	}
	for _, c := range cases {
		if got := ShouldReport(c.level, c.whitelisted); got != c.want {
			t.Errorf("ShouldReport(%v, %v) = %v", c.level, c.whitelisted, got)
		}
	}
}

func TestSystemWhitelist(t *testing.T) {
	w := NewSystemWhitelist()
	if !w.IsSystemProcess("SVCHOST.EXE") || w.IsSystemProcess("evil.exe") {
		t.Error("process set")
	}
	if !w.IsSystemService("WinDefend") {
		t.Error("service set")
	}
	if !w.IsSystemDLL("Kernel32.dll") {
		t.Error("dll set")
	}
	if !w.IsSystemPath(`C:\Windows\System32\svchost.exe`) {
		t.Error("system32 should be a system path")
	}
	if w.IsSystemPath(`C:\WindowsEvil\svchost.exe`) {
		t.Error("prefix match must stop at directory boundary")
	}
	if !w.IsSystemPath("/usr/sbin/sshd") || w.IsSystemPath("/tmp/sshd") {
		t.Error("linux paths")
	}
	if !w.IsKnownPersistence("SecurityHealth") || w.IsKnownPersistence("Updater") {
		t.Error("persistence set")
	}
}

func TestIsSafeUnquotedPath(t *testing.T) {
	w := NewSystemWhitelist()
	cases := map[string]bool{
		`C:\Windows\system32\svchost.exe -k netsvcs`:         true,
		`C:\Tools\agent.exe --flag with spaces`:              true,
		`C:\Program Files\Vendor App\service.exe`:            false,
		`C:\Program Files\Windows Media Player\wmpnetwk.exe`: true,
	}
	for path, want := range cases {
		if got := w.IsSafeUnquotedPath(path); got != want {
			t.Errorf("IsSafeUnquotedPath(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestWhitelistExtend(t *testing.T) {
	w := NewSystemWhitelist()
	w.AddProcesses("agent.exe")
	w.AddPaths(`D:\Corp\Bin\`)
	if !w.IsSystemProcess("Agent.exe") || !w.IsSystemPath(`d:\corp\bin\agent.exe`) {
		t.Error("extension not applied")
	}
}
