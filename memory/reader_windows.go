//go:build windows

package memory

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"corp/sysrecon/core"
)

/* ===================== Win32 bindings ===================== */

var (
	modPsapi                 = windows.NewLazySystemDLL("psapi.dll")
	procGetProcessMemoryInfo = modPsapi.NewProc("GetProcessMemoryInfo")
	procGetMappedFileNameW   = modPsapi.NewProc("GetMappedFileNameW")
)

const (
	// lowest and highest user-mode addresses on x64
	minUserAddress = 0x10000
	maxUserAddress = 0x7FFFFFFEFFFF
)

type processMemoryCountersEx struct {
	CB                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
	PrivateUsage               uintptr
}

/* ===================== handle ===================== */

type winProcess struct {
	pid uint32
	h   windows.Handle
}

func openProcess(pid uint32) (ProcessMemory, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		return nil, fmt.Errorf("open pid %d: %w", pid, mapWinErr(err))
	}
	return &winProcess{pid: pid, h: h}, nil
}

func mapWinErr(err error) error {
	switch {
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%w: %v", core.ErrAccessDenied, err)
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		// pid sudah tidak ada
		return fmt.Errorf("%w: %v", core.ErrNotFound, err)
	case errors.Is(err, windows.ERROR_PARTIAL_COPY):
		return fmt.Errorf("%w: %v", core.ErrTruncated, err)
	}
	return err
}

func (p *winProcess) Bounds() (uint64, uint64) { return minUserAddress, maxUserAddress }

func (p *winProcess) Query(addr uint64) (MemoryRegion, error) {
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQueryEx(p.h, uintptr(addr), &mbi, unsafe.Sizeof(mbi)); err != nil {
		return MemoryRegion{}, mapWinErr(err)
	}
	r := MemoryRegion{
		BaseAddress:    uint64(mbi.BaseAddress),
		Size:           uint64(mbi.RegionSize),
		AllocationBase: uint64(mbi.AllocationBase),
		State:          FromWindowsState(mbi.State),
	}
	if r.State == StateCommitted {
		r.Protection = FromWindowsProtect(mbi.Protect)
		r.AllocationType = FromWindowsType(mbi.Type)
		if r.AllocationType != AllocPrivate {
			r.Path = p.mappedFileName(r.BaseAddress)
		}
	}
	return r, nil
}

func (p *winProcess) mappedFileName(addr uint64) string {
	if procGetMappedFileNameW.Find() != nil {
		return ""
	}
	buf := make([]uint16, windows.MAX_PATH)
	n, _, _ := procGetMappedFileNameW.Call(uintptr(p.h), uintptr(addr), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return ""
	}
	return windows.UTF16ToString(buf[:n])
}

func (p *winProcess) ReadAt(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var n uintptr
	err := windows.ReadProcessMemory(p.h, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil {
		if int(n) > 0 || errors.Is(err, windows.ERROR_PARTIAL_COPY) {
			return int(n), fmt.Errorf("%w: read %d of %d bytes at 0x%x", core.ErrTruncated, n, len(buf), addr)
		}
		return 0, mapWinErr(err)
	}
	if int(n) < len(buf) {
		return int(n), fmt.Errorf("%w: read %d of %d bytes at 0x%x", core.ErrTruncated, n, len(buf), addr)
	}
	return int(n), nil
}

// ImageBase reads PEB.ImageBaseAddress (offset 2*pointer size).
func (p *winProcess) ImageBase() (uint64, error) {
	var pbi windows.PROCESS_BASIC_INFORMATION
	var retLen uint32
	err := windows.NtQueryInformationProcess(p.h, windows.ProcessBasicInformation,
		unsafe.Pointer(&pbi), uint32(unsafe.Sizeof(pbi)), &retLen)
	if err != nil {
		return 0, fmt.Errorf("query basic information: %w", mapWinErr(err))
	}
	if pbi.PebBaseAddress == nil {
		return 0, fmt.Errorf("pid %d: %w", p.pid, core.ErrNotFound)
	}
	ptr := unsafe.Sizeof(uintptr(0))
	var raw [8]byte
	peb := uint64(uintptr(unsafe.Pointer(pbi.PebBaseAddress)))
	if _, err := p.ReadAt(raw[:ptr], peb+uint64(2*ptr)); err != nil {
		return 0, fmt.Errorf("read PEB: %w", err)
	}
	var base uint64
	for i := int(ptr) - 1; i >= 0; i-- {
		base = base<<8 | uint64(raw[i])
	}
	return base, nil
}

func (p *winProcess) Counters() (ProcessCounters, error) {
	if err := procGetProcessMemoryInfo.Find(); err != nil {
		return ProcessCounters{}, err
	}
	var pmc processMemoryCountersEx
	pmc.CB = uint32(unsafe.Sizeof(pmc))
	r, _, e := procGetProcessMemoryInfo.Call(uintptr(p.h), uintptr(unsafe.Pointer(&pmc)), uintptr(pmc.CB))
	if r == 0 {
		return ProcessCounters{}, mapWinErr(e)
	}
	return ProcessCounters{
		WorkingSet:   uint64(pmc.WorkingSetSize),
		PrivateBytes: uint64(pmc.PrivateUsage),
	}, nil
}

func (p *winProcess) Close() error {
	if p.h == 0 {
		return nil
	}
	err := windows.CloseHandle(p.h)
	p.h = 0
	return err
}
