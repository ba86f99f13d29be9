//go:build windows

package modules

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/yusufpapurcu/wmi"
	"golang.org/x/sys/windows"
)

type toolhelpProcesses struct{}

// DefaultProcessSource uses Toolhelp32 snapshots; image paths come from
// QueryFullProcessImageName with Win32_Process as fallback.
func DefaultProcessSource() ProcessSource { return toolhelpProcesses{} }

type win32Process struct {
	ProcessId      uint32
	ExecutablePath *string
	CommandLine    *string
}

func (toolhelpProcesses) Processes(ctx context.Context) ([]ProcessInfo, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", mapWinErr(err))
	}
	defer windows.CloseHandle(snap)

	var out []ProcessInfo
	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	for err = windows.Process32First(snap, &pe); err == nil; err = windows.Process32Next(snap, &pe) {
		out = append(out, ProcessInfo{
			PID:  pe.ProcessID,
			PPID: pe.ParentProcessID,
			Name: windows.UTF16ToString(pe.ExeFile[:]),
			Path: imagePath(pe.ProcessID),
		})
	}

	// WMI: command line, dan path untuk proses yang tidak bisa dibuka
	var rows []win32Process
	if werr := wmi.QueryNamespace(`SELECT ProcessId,ExecutablePath,CommandLine FROM Win32_Process`, &rows, `root\cimv2`); werr == nil {
		byPID := make(map[uint32]win32Process, len(rows))
		for _, r := range rows {
			byPID[r.ProcessId] = r
		}
		for i := range out {
			r, ok := byPID[out[i].PID]
			if !ok {
				continue
			}
			out[i].CommandLine = safeS(r.CommandLine)
			if out[i].Path == "" {
				out[i].Path = safeS(r.ExecutablePath)
			}
		}
	}
	return out, ctx.Err()
}

func imagePath(pid uint32) string {
	if pid == 0 || pid == 4 {
		return ""
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)
	size := uint32(windows.MAX_LONG_PATH)
	buf := make([]uint16, size)
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

func (toolhelpProcesses) Modules(ctx context.Context, pid uint32) ([]string, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, pid)
	if err != nil {
		return nil, fmt.Errorf("module snapshot pid %d: %w", pid, mapWinErr(err))
	}
	defer windows.CloseHandle(snap)

	var out []string
	var me windows.ModuleEntry32
	me.Size = uint32(windows.SizeofModuleEntry32)
	for err = windows.Module32First(snap, &me); err == nil; err = windows.Module32Next(snap, &me) {
		out = append(out, windows.UTF16ToString(me.ExePath[:]))
	}
	return out, ctx.Err()
}
