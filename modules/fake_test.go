package modules

import (
	"context"
	"strings"

	"corp/sysrecon/core"
)

// writableDirs is a WriteProbe backed by a fixed set of directories.
type writableDirs map[string]bool

func (w writableDirs) Writable(dir string) bool { return w[strings.ToLower(dir)] }

type fakeAccounts struct {
	users     []UserAccount
	members   map[string][]string
	groupErr  error
	groupCall int
}

func (f *fakeAccounts) Users(context.Context) ([]UserAccount, error) {
	out := make([]UserAccount, len(f.users))
	copy(out, f.users)
	return out, nil
}

func (f *fakeAccounts) GroupMembers(context.Context) (map[string][]string, error) {
	f.groupCall++
	return f.members, f.groupErr
}

type fakeServices []Service

func (f fakeServices) Services(context.Context) ([]Service, error) { return f, nil }

type fakeProcesses struct {
	procs   []ProcessInfo
	modules map[uint32][]string
	modErr  map[uint32]error
}

func (f *fakeProcesses) Processes(context.Context) ([]ProcessInfo, error) { return f.procs, nil }

func (f *fakeProcesses) Modules(_ context.Context, pid uint32) ([]string, error) {
	if err := f.modErr[pid]; err != nil {
		return nil, err
	}
	return f.modules[pid], nil
}

type fakeNetwork []Socket

func (f fakeNetwork) Sockets(context.Context) ([]Socket, error) { return f, nil }

type fakeRegistry struct {
	autoruns   []Autorun
	hklm, hkcu DWORD
	uac        UACPolicy
	lsa        LSAConfig
	lsaErr     error
	ifeo       []IFEOEntry
	spe        []SilentExit
	exclusions []DefenderExclusion
	tasks      []ScheduledTask
	values     map[string][]RegValue
	calls      []string
}

func (f *fakeRegistry) Autoruns(context.Context) ([]Autorun, error) {
	f.calls = append(f.calls, "autoruns")
	return f.autoruns, nil
}

func (f *fakeRegistry) InstallElevated() (DWORD, DWORD, error) {
	f.calls = append(f.calls, "install_elevated")
	return f.hklm, f.hkcu, nil
}

func (f *fakeRegistry) UAC() (UACPolicy, error) {
	f.calls = append(f.calls, "uac")
	return f.uac, nil
}

func (f *fakeRegistry) LSA() (LSAConfig, error) {
	f.calls = append(f.calls, "lsa")
	return f.lsa, f.lsaErr
}

func (f *fakeRegistry) IFEO(context.Context) ([]IFEOEntry, []SilentExit, error) {
	f.calls = append(f.calls, "ifeo")
	return f.ifeo, f.spe, nil
}

func (f *fakeRegistry) DefenderExclusions() ([]DefenderExclusion, error) {
	f.calls = append(f.calls, "defender")
	return f.exclusions, nil
}

func (f *fakeRegistry) ScheduledTasks(context.Context) ([]ScheduledTask, error) {
	f.calls = append(f.calls, "tasks")
	return f.tasks, nil
}

func (f *fakeRegistry) Values(key string) ([]RegValue, error) {
	f.calls = append(f.calls, "values")
	v, ok := f.values[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return v, nil
}

func findingFor(fs []core.Finding, item string) (core.Finding, bool) {
	for _, f := range fs {
		if f.Item == item {
			return f, true
		}
	}
	return core.Finding{}, false
}

func newCollector(module string) *core.Collector {
	return core.NewCollector(module, "scan-test", nil)
}
