package modules

import (
	"reflect"
	"testing"
)

func TestParseCommandLine(t *testing.T) {
	cases := []struct {
		raw      string
		exe      string
		unquoted bool
	}{
		{`"C:\Program Files\App\svc.exe" -k run`, `C:\Program Files\App\svc.exe`, false},
		{`C:\Program Files\App\svc.exe -k run`, `C:\Program Files\App\svc.exe`, true},
		{`C:\Windows\system32\svchost.exe -k netsvcs`, `C:\Windows\system32\svchost.exe`, false},
		{`/usr/sbin/sshd -D`, `/usr/sbin/sshd`, false},
		{`  `, ``, false},
	}
	for _, c := range cases {
		exe, unquoted := ParseCommandLine(c.raw)
		if exe != c.exe || unquoted != c.unquoted {
			t.Errorf("ParseCommandLine(%q) = %q, %v; want %q, %v", c.raw, exe, unquoted, c.exe, c.unquoted)
		}
	}
}

func TestDirNameAndBaseName(t *testing.T) {
	cases := map[string]string{
		`C:\Program Files\App\svc.exe`: `C:\Program Files\App`,
		`C:\svc.exe`:                   `C:\`,
		`/usr/bin/ls`:                  `/usr/bin`,
		`/init`:                        `/`,
		`svc.exe`:                      ``,
	}
	for in, want := range cases {
		if got := DirName(in); got != want {
			t.Errorf("DirName(%q) = %q, want %q", in, got, want)
		}
	}
	if got := BaseName(`C:\Windows\System32\ntdll.dll`); got != "ntdll.dll" {
		t.Errorf("BaseName = %q", got)
	}
	if got := BaseName("/usr/lib/libc.so.6"); got != "libc.so.6" {
		t.Errorf("BaseName = %q", got)
	}
}

func TestSplitPathSegments(t *testing.T) {
	got := SplitPathSegments(`C:\Program Files\App`)
	want := []string{`C:\`, `C:\Program Files`, `C:\Program Files\App`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("windows segments = %q, want %q", got, want)
	}
	got = SplitPathSegments("/opt/vendor/bin")
	want = []string{"/", "/opt", "/opt/vendor", "/opt/vendor/bin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unix segments = %q, want %q", got, want)
	}
	if SplitPathSegments("") != nil {
		t.Error("empty path should have no segments")
	}
}

func TestWritableSegments(t *testing.T) {
	probe := writableDirs{`c:\program files\app`: true}
	got := WritableSegments(`C:\Program Files\App\svc.exe`, probe)
	if len(got) != 1 || got[0] != "C:/Program Files/App" {
		t.Errorf("WritableSegments = %q", got)
	}
	if WritableSegments(`C:\x.exe`, nil) != nil {
		t.Error("nil probe must not report segments")
	}
}

func TestIsUserWritableLocation(t *testing.T) {
	cases := map[string]bool{
		`C:\Users\bob\AppData\Local\Temp\x.exe`: true,
		`C:\Users\Public\run.exe`:               true,
		`C:\Windows\System32\svchost.exe`:       false,
		"/tmp/payload":                          true,
		"/dev/shm/x":                            true,
		"/usr/bin/python3":                      false,
		"/tmp":                                  true,
	}
	for p, want := range cases {
		if got := IsUserWritableLocation(p); got != want {
			t.Errorf("IsUserWritableLocation(%q) = %v, want %v", p, got, want)
		}
	}
}
