//go:build windows

package modules

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

/* =========================
   Win32: AccessCheck (tidak ada wrapper di x/sys)
   ========================= */

var (
	modAdvapi32     = windows.NewLazySystemDLL("advapi32.dll")
	procAccessCheck = modAdvapi32.NewProc("AccessCheck")
)

// genericMapping = GENERIC_MAPPING WinAPI
type genericMapping struct {
	GenericRead    uint32
	GenericWrite   uint32
	GenericExecute uint32
	GenericAll     uint32
}

// mapping generik → specific untuk SERVICE object (MSDN)
func serviceGenericMapping() genericMapping {
	return genericMapping{
		GenericRead:    windows.READ_CONTROL | windows.SERVICE_QUERY_CONFIG | windows.SERVICE_QUERY_STATUS | windows.SERVICE_INTERROGATE | windows.SERVICE_ENUMERATE_DEPENDENTS,
		GenericWrite:   windows.READ_CONTROL | windows.SERVICE_CHANGE_CONFIG,
		GenericExecute: windows.READ_CONTROL | windows.SERVICE_START | windows.SERVICE_STOP | windows.SERVICE_PAUSE_CONTINUE | windows.SERVICE_USER_DEFINED_CONTROL,
		GenericAll:     windows.SERVICE_ALL_ACCESS,
	}
}

// impersonationToken: duplikasi primary token → impersonation (syarat AccessCheck)
func impersonationToken() (windows.Token, error) {
	var primary windows.Token
	if err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_QUERY|windows.TOKEN_DUPLICATE, &primary); err != nil {
		return 0, err
	}
	defer primary.Close()
	var imp windows.Token
	err := windows.DuplicateTokenEx(primary, windows.MAXIMUM_ALLOWED, nil,
		windows.SecurityImpersonation, windows.TokenImpersonation, &imp)
	if err != nil {
		return 0, err
	}
	return imp, nil
}

func accessCheck(sd *windows.SECURITY_DESCRIPTOR, tok windows.Token, desired uint32, mapping *genericMapping) (bool, error) {
	priv := make([]byte, 1024)
	privLen := uint32(len(priv))
	var granted, status uint32
	r1, _, e1 := procAccessCheck.Call(
		uintptr(unsafe.Pointer(sd)),
		uintptr(tok),
		uintptr(desired),
		uintptr(unsafe.Pointer(mapping)),
		uintptr(unsafe.Pointer(&priv[0])),
		uintptr(unsafe.Pointer(&privLen)),
		uintptr(unsafe.Pointer(&granted)),
		uintptr(unsafe.Pointer(&status)),
	)
	if r1 == 0 {
		if e1 != syscall.Errno(0) {
			return false, e1
		}
		return false, syscall.EINVAL
	}
	return status != 0, nil
}

// canChangeConfig: apakah token boleh SERVICE_CHANGE_CONFIG pada service
func canChangeConfig(h windows.Handle, tok windows.Token) bool {
	sd, err := windows.GetSecurityInfo(h, windows.SE_SERVICE,
		windows.OWNER_SECURITY_INFORMATION|windows.GROUP_SECURITY_INFORMATION|windows.DACL_SECURITY_INFORMATION)
	if err != nil {
		return false
	}
	mapping := serviceGenericMapping()
	ok, err := accessCheck(sd, tok, windows.SERVICE_CHANGE_CONFIG, &mapping)
	return err == nil && ok
}

/* =========================
   Jalur 1: SCM via svc/mgr
   ========================= */

type scmServices struct{}

// DefaultServiceSource enumerates through the SCM and falls back to the
// Services registry key when the SCM cannot be opened.
func DefaultServiceSource() ServiceSource { return scmServices{} }

func (scmServices) Services(ctx context.Context) ([]Service, error) {
	out, err := servicesViaSCM(ctx)
	if err == nil || ctx.Err() != nil {
		return out, err
	}
	if reg, rerr := servicesViaRegistry(ctx); rerr == nil {
		return reg, nil
	}
	return nil, err
}

func servicesViaSCM(ctx context.Context) ([]Service, error) {
	// mgr.Connect minta SC_MANAGER_ALL_ACCESS; cukup connect + enumerate
	h, err := windows.OpenSCManager(nil, nil, windows.SC_MANAGER_CONNECT|windows.SC_MANAGER_ENUMERATE_SERVICE)
	if err != nil {
		return nil, fmt.Errorf("open SCM: %w", mapWinErr(err))
	}
	m := &mgr.Mgr{Handle: h}
	defer m.Disconnect()

	names, err := m.ListServices()
	if err != nil {
		return nil, fmt.Errorf("list services: %w", mapWinErr(err))
	}
	tok, tokErr := impersonationToken()
	if tokErr == nil {
		defer tok.Close()
	}

	out := make([]Service, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		s, err := openServiceRO(m, name)
		if err != nil {
			continue
		}
		cfg, err := s.Config()
		if err != nil {
			s.Close()
			continue
		}
		entry := Service{
			Name:        name,
			DisplayName: cfg.DisplayName,
			StartMode:   startModeName(cfg.StartType),
			BinaryPath:  NormalizeImagePath(cfg.BinaryPathName),
			Account:     cfg.ServiceStartName,
			Driver:      cfg.ServiceType&windows.SERVICE_DRIVER != 0,
		}
		if st, err := s.Query(); err == nil {
			entry.State = stateName(st.State)
		}
		if tokErr == nil {
			entry.ConfigWritable = canChangeConfig(s.Handle, tok)
		}
		s.Close()
		out = append(out, entry)
	}
	return out, nil
}

// openServiceRO: mgr.OpenService minta SERVICE_ALL_ACCESS, di sini read-only.
func openServiceRO(m *mgr.Mgr, name string) (*mgr.Service, error) {
	p, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, err
	}
	h, err := windows.OpenService(m.Handle, p, windows.SERVICE_QUERY_CONFIG|windows.SERVICE_QUERY_STATUS|windows.READ_CONTROL)
	if err != nil {
		return nil, mapWinErr(err)
	}
	return &mgr.Service{Name: name, Handle: h}, nil
}

func startModeName(t uint32) string {
	switch t {
	case windows.SERVICE_BOOT_START:
		return "Boot"
	case windows.SERVICE_SYSTEM_START:
		return "System"
	case mgr.StartAutomatic:
		return "Auto"
	case mgr.StartManual:
		return "Manual"
	case mgr.StartDisabled:
		return "Disabled"
	}
	return fmt.Sprintf("start(%d)", t)
}

func stateName(s svc.State) string {
	switch s {
	case svc.Stopped:
		return "Stopped"
	case svc.StartPending:
		return "StartPending"
	case svc.StopPending:
		return "StopPending"
	case svc.Running:
		return "Running"
	case svc.ContinuePending:
		return "ContinuePending"
	case svc.PausePending:
		return "PausePending"
	case svc.Paused:
		return "Paused"
	}
	return fmt.Sprintf("state(%d)", s)
}

/* =========================
   Jalur 2: Registry (fallback)
   ========================= */

func servicesViaRegistry(ctx context.Context) ([]Service, error) {
	const base = `SYSTEM\CurrentControlSet\Services`
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, base, registry.ENUMERATE_SUB_KEYS)
	if err != nil {
		return nil, mapWinErr(err)
	}
	defer k.Close()

	names, err := k.ReadSubKeyNames(0)
	if err != nil {
		return nil, err
	}
	out := make([]Service, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		sk, err := registry.OpenKey(registry.LOCAL_MACHINE, base+`\`+name, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		image, _, err := sk.GetStringValue("ImagePath")
		if err != nil || strings.TrimSpace(image) == "" {
			sk.Close()
			continue
		}
		entry := Service{Name: name, BinaryPath: NormalizeImagePath(image)}
		entry.DisplayName, _, _ = sk.GetStringValue("DisplayName")
		entry.Account, _, _ = sk.GetStringValue("ObjectName")
		if start, _, err := sk.GetIntegerValue("Start"); err == nil {
			entry.StartMode = startModeName(uint32(start))
		}
		if typ, _, err := sk.GetIntegerValue("Type"); err == nil {
			entry.Driver = uint32(typ)&windows.SERVICE_DRIVER != 0
		}
		sk.Close()
		out = append(out, entry)
	}
	return out, nil
}
