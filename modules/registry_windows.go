//go:build windows

package modules

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"

	"corp/sysrecon/core"
)

type winRegistry struct{}

// DefaultRegistrySource reads HKLM/HKCU read-only (QUERY_VALUE).
func DefaultRegistrySource() RegistrySource { return winRegistry{} }

// lokasi autorun yang discan
var autorunLocations = []struct {
	root registry.Key
	path string
	name string
}{
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, "HKLM Run"},
	{registry.CURRENT_USER, `SOFTWARE\Microsoft\Windows\CurrentVersion\Run`, "HKCU Run"},
	{registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Windows\CurrentVersion\RunOnce`, "HKLM RunOnce"},
	{registry.CURRENT_USER, `SOFTWARE\Microsoft\Windows\CurrentVersion\RunOnce`, "HKCU RunOnce"},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\Run`, "HKLM Run (WOW6432Node)"},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Microsoft\Windows\CurrentVersion\RunOnce`, "HKLM RunOnce (WOW6432Node)"},
}

func (winRegistry) Autoruns(ctx context.Context) ([]Autorun, error) {
	var out []Autorun
	opened := 0
	for _, loc := range autorunLocations {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		k, err := registry.OpenKey(loc.root, loc.path, registry.QUERY_VALUE)
		if err != nil {
			// key tidak ada / deny: umum, lewati
			continue
		}
		opened++
		names, err := k.ReadValueNames(0)
		if err != nil {
			k.Close()
			continue
		}
		for _, n := range names {
			val, _, err := k.GetStringValue(n)
			if err != nil || strings.TrimSpace(val) == "" {
				continue
			}
			out = append(out, Autorun{Location: loc.name, Name: n, Command: strings.TrimSpace(val)})
		}
		k.Close()
	}
	if opened == 0 {
		return nil, mapWinErr(registry.ErrNotExist)
	}
	return out, nil
}

// readDWORD membaca satu nilai integer; nilai yang tidak ada → DWORD kosong.
func readDWORD(root registry.Key, path, name string) (DWORD, error) {
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return DWORD{}, nil
		}
		return DWORD{}, mapWinErr(err)
	}
	defer k.Close()
	v, _, err := k.GetIntegerValue(name)
	if err != nil {
		return DWORD{}, nil
	}
	return dword(v), nil
}

func (winRegistry) InstallElevated() (DWORD, DWORD, error) {
	const path = `SOFTWARE\Policies\Microsoft\Windows\Installer`
	hklm, err := readDWORD(registry.LOCAL_MACHINE, path, "AlwaysInstallElevated")
	if err != nil {
		return DWORD{}, DWORD{}, err
	}
	hkcu, err := readDWORD(registry.CURRENT_USER, path, "AlwaysInstallElevated")
	if err != nil {
		return DWORD{}, DWORD{}, err
	}
	return hklm, hkcu, nil
}

func (winRegistry) UAC() (UACPolicy, error) {
	const path = `SOFTWARE\Microsoft\Windows\CurrentVersion\Policies\System`
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, path, registry.QUERY_VALUE)
	if err != nil {
		return UACPolicy{}, mapWinErr(err)
	}
	defer k.Close()
	get := func(name string) DWORD {
		if v, _, err := k.GetIntegerValue(name); err == nil {
			return dword(v)
		}
		return DWORD{}
	}
	return UACPolicy{
		EnableLUA:        get("EnableLUA"),
		ConsentAdmin:     get("ConsentPromptBehaviorAdmin"),
		ConsentUser:      get("ConsentPromptBehaviorUser"),
		SecureDesktop:    get("PromptOnSecureDesktop"),
		FilterAdminToken: get("FilterAdministratorToken"),
	}, nil
}

func (winRegistry) LSA() (LSAConfig, error) {
	const lsaPath = `SYSTEM\CurrentControlSet\Control\Lsa`
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, lsaPath, registry.QUERY_VALUE)
	if err != nil {
		return LSAConfig{}, mapWinErr(err)
	}
	defer k.Close()

	multi := func(name string) []string {
		vals, _, err := k.GetStringsValue(name)
		if err != nil {
			return nil
		}
		out := make([]string, 0, len(vals))
		for _, v := range vals {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	var cfg LSAConfig
	if v, _, err := k.GetIntegerValue("RunAsPPL"); err == nil {
		cfg.RunAsPPL = dword(v)
	}
	cfg.SecurityPackages = multi("Security Packages")
	cfg.AuthenticationPackages = multi("Authentication Packages")
	cfg.NotificationPackages = multi("Notification Packages")
	cfg.WDigestUseLogonCredential, _ = readDWORD(registry.LOCAL_MACHINE,
		`SYSTEM\CurrentControlSet\Control\SecurityProviders\WDigest`, "UseLogonCredential")
	return cfg, nil
}

func (winRegistry) IFEO(ctx context.Context) ([]IFEOEntry, []SilentExit, error) {
	const ifeoRoot = `SOFTWARE\Microsoft\Windows NT\CurrentVersion\Image File Execution Options`
	const speRoot = `SOFTWARE\Microsoft\Windows NT\CurrentVersion\SilentProcessExit`

	var ifeo []IFEOEntry
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, ifeoRoot, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE)
	if err != nil {
		return nil, nil, mapWinErr(err)
	}
	names, _ := k.ReadSubKeyNames(0)
	for _, sub := range names {
		if ctx.Err() != nil {
			break
		}
		sk, err := registry.OpenKey(k, sub, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		dbg, _, _ := sk.GetStringValue("Debugger")
		sk.Close()
		if dbg = strings.TrimSpace(dbg); dbg != "" {
			ifeo = append(ifeo, IFEOEntry{Image: sub, Debugger: dbg})
		}
	}
	k.Close()

	var spe []SilentExit
	if k2, err := registry.OpenKey(registry.LOCAL_MACHINE, speRoot, registry.ENUMERATE_SUB_KEYS|registry.QUERY_VALUE); err == nil {
		names, _ := k2.ReadSubKeyNames(0)
		for _, sub := range names {
			sk, err := registry.OpenKey(k2, sub, registry.QUERY_VALUE)
			if err != nil {
				continue
			}
			mode, _, _ := sk.GetIntegerValue("ReportingMode")
			mon, _, _ := sk.GetStringValue("MonitorProcess")
			sk.Close()
			mon = strings.TrimSpace(mon)
			// hanya entri yang berisi data menarik
			if mode != 0 || mon != "" {
				spe = append(spe, SilentExit{Image: sub, ReportingMode: mode, MonitorProcess: mon})
			}
		}
		k2.Close()
	}
	return ifeo, spe, ctx.Err()
}

// DefenderExclusions membaca Exclusions\{Paths,Processes,Extensions} dari
// key Defender biasa dan key policy. Key yang tidak ada = tidak ada exclusion.
func (winRegistry) DefenderExclusions() ([]DefenderExclusion, error) {
	roots := []struct {
		path   string
		policy bool
	}{
		{`SOFTWARE\Microsoft\Windows Defender\Exclusions`, false},
		{`SOFTWARE\Policies\Microsoft\Windows Defender\Exclusions`, true},
	}
	subs := []struct{ key, kind string }{
		{"Paths", "Path"}, {"Processes", "Process"}, {"Extensions", "Extension"},
	}
	out := make([]DefenderExclusion, 0)
	var denied error
	for _, r := range roots {
		for _, s := range subs {
			k, err := registry.OpenKey(registry.LOCAL_MACHINE, r.path+`\`+s.key, registry.QUERY_VALUE)
			if err != nil {
				if e := mapWinErr(err); errors.Is(e, core.ErrAccessDenied) {
					denied = e
				}
				continue
			}
			names, _ := k.ReadValueNames(0)
			k.Close()
			for _, name := range names {
				out = append(out, DefenderExclusion{Kind: s.kind, Value: name, Policy: r.policy})
			}
		}
	}
	if len(out) == 0 && denied != nil {
		return nil, denied
	}
	return out, nil
}

// ScheduledTasks: schtasks dulu; kalau gagal (diblokir / tidak ada di
// PATH) baca file XML di System32\Tasks.
func (winRegistry) ScheduledTasks(ctx context.Context) ([]ScheduledTask, error) {
	cmd := exec.CommandContext(ctx, "schtasks", "/query", "/fo", "LIST", "/v")
	out, err := cmd.Output()
	if err == nil {
		return ParseSchtasksList(bytes.NewReader(out)), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	root := filepath.Join(os.Getenv("SystemRoot"), "System32", "Tasks")
	var tasks []ScheduledTask
	werr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// folder tanpa akses dilewati
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			return nil
		}
		name, _ := filepath.Rel(root, path)
		tasks = append(tasks, ParseTaskXML(`\`+name, data)...)
		return nil
	})
	if werr != nil {
		return tasks, werr
	}
	if len(tasks) == 0 {
		return nil, mapWinErr(fmt.Errorf("schtasks: %w", err))
	}
	return tasks, nil
}

var hiveKeys = map[string]registry.Key{
	"HKLM": registry.LOCAL_MACHINE,
	"HKCU": registry.CURRENT_USER,
	"HKU":  registry.USERS,
	"HKCR": registry.CLASSES_ROOT,
}

func (winRegistry) Values(key string) ([]RegValue, error) {
	hive, sub, ok := SplitRegistryPath(key)
	if !ok {
		return nil, fmt.Errorf("unknown hive in %q", key)
	}
	k, err := registry.OpenKey(hiveKeys[hive], sub, registry.QUERY_VALUE)
	if err != nil {
		return nil, mapWinErr(err)
	}
	defer k.Close()
	names, err := k.ReadValueNames(0)
	if err != nil {
		return nil, mapWinErr(err)
	}
	display := hive + `\` + sub
	out := make([]RegValue, 0, len(names))
	for _, n := range names {
		v := RegValue{Key: display, Name: n}
		_, typ, err := k.GetValue(n, nil)
		if err != nil {
			continue
		}
		switch typ {
		case registry.SZ, registry.EXPAND_SZ:
			v.Type = "string"
			v.Value, _, _ = k.GetStringValue(n)
		case registry.MULTI_SZ:
			v.Type = "multi_string"
			ss, _, _ := k.GetStringsValue(n)
			v.Value = strings.Join(ss, "; ")
		case registry.DWORD, registry.QWORD:
			v.Type = "integer"
			i, _, _ := k.GetIntegerValue(n)
			v.Value = fmt.Sprint(i)
		default:
			v.Type = "binary"
			b, _, _ := k.GetBinaryValue(n)
			v.Value = hex.EncodeToString(b)
		}
		out = append(out, v)
	}
	return out, nil
}
