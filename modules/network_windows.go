//go:build windows

package modules

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

/* ===================== Win32 bindings (IP Helper) ===================== */

var (
	modIphlpapi             = windows.NewLazySystemDLL("iphlpapi.dll")
	procGetExtendedTcpTable = modIphlpapi.NewProc("GetExtendedTcpTable")
	procGetExtendedUdpTable = modIphlpapi.NewProc("GetExtendedUdpTable")
)

const (
	afInet  = 2
	afInet6 = 23

	tcpTableOwnerPIDAll = 5
	udpTableOwnerPID    = 1
)

var tcpStates = map[uint32]string{
	1: "CLOSED", 2: "LISTEN", 3: "SYN_SENT", 4: "SYN_RECEIVED", 5: "ESTABLISHED",
	6: "FIN_WAIT_1", 7: "FIN_WAIT_2", 8: "CLOSE_WAIT", 9: "CLOSING", 10: "LAST_ACK",
	11: "TIME_WAIT", 12: "DELETE_TCB",
}

/* ===================== MSDN structs ===================== */

type mibTCPRowOwnerPID struct {
	State      uint32
	LocalAddr  uint32
	LocalPort  uint32
	RemoteAddr uint32
	RemotePort uint32
	OwningPID  uint32
}

type in6Addr struct{ Bytes [16]byte }

type mibTCP6RowOwnerPID struct {
	LocalAddr   in6Addr
	LocalScope  uint32
	LocalPort   uint32
	RemoteAddr  in6Addr
	RemoteScope uint32
	RemotePort  uint32
	State       uint32
	OwningPID   uint32
}

type mibUDPRowOwnerPID struct {
	LocalAddr uint32
	LocalPort uint32
	OwningPID uint32
}

type mibUDP6RowOwnerPID struct {
	LocalAddr  in6Addr
	LocalScope uint32
	LocalPort  uint32
	OwningPID  uint32
}

/* ===================== Helpers ===================== */

func ntohs16(u32 uint32) uint16 {
	v := uint16(u32)
	return (v<<8)&0xff00 | (v >> 8)
}

func ip4FromUint32(u32 uint32) string {
	b := (*[4]byte)(unsafe.Pointer(&u32))
	return net.IPv4(b[0], b[1], b[2], b[3]).String()
}

func ip6FromIn6(a in6Addr) string { return net.IP(a.Bytes[:]).String() }

// extendedTable memanggil GetExtended{Tcp,Udp}Table dua fase (ukur lalu isi)
// dan mengembalikan buffer mentah: DWORD NumEntries diikuti row.
func extendedTable(proc *windows.LazyProc, family, class int) ([]byte, uint32, error) {
	var size uint32
	proc.Call(0, uintptr(unsafe.Pointer(&size)), 0, uintptr(uint32(family)), uintptr(uint32(class)), 0)
	if size == 0 {
		return nil, 0, nil
	}
	buf := make([]byte, size)
	r1, _, e1 := proc.Call(
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)),
		0, uintptr(uint32(family)),
		uintptr(uint32(class)), 0,
	)
	if r1 != 0 {
		if e1 != syscall.Errno(0) {
			return nil, 0, e1
		}
		return nil, 0, syscall.Errno(r1)
	}
	return buf, *(*uint32)(unsafe.Pointer(&buf[0])), nil
}

// tableRows menginterpretasikan buffer tabel sebagai n row bertipe T.
func tableRows[T any](buf []byte, n uint32) []T {
	if n == 0 {
		return nil
	}
	var zero T
	// row mulai setelah NumEntries (DWORD), sejajar dengan alignment T
	offset := unsafe.Alignof(zero)
	if offset < 4 {
		offset = 4
	}
	need := offset + uintptr(n)*unsafe.Sizeof(zero)
	if uintptr(len(buf)) < need {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf[offset])), n)
}

/* ===================== Source ===================== */

type iphlpNetwork struct{}

// DefaultNetworkSource uses the IP Helper owner-pid tables.
func DefaultNetworkSource() NetworkSource { return iphlpNetwork{} }

func (iphlpNetwork) Sockets(ctx context.Context) ([]Socket, error) {
	var out []Socket
	names := map[uint32]string{}
	owner := func(pid uint32) string {
		if n, ok := names[pid]; ok {
			return n
		}
		n := processName(pid)
		names[pid] = n
		return n
	}

	buf, n, err := extendedTable(procGetExtendedTcpTable, afInet, tcpTableOwnerPIDAll)
	if err != nil {
		return nil, fmt.Errorf("tcp table: %w", err)
	}
	for _, r := range tableRows[mibTCPRowOwnerPID](buf, n) {
		out = append(out, Socket{
			Protocol: "tcp", State: tcpStates[r.State],
			LocalAddr: ip4FromUint32(r.LocalAddr), LocalPort: ntohs16(r.LocalPort),
			RemoteAddr: ip4FromUint32(r.RemoteAddr), RemotePort: ntohs16(r.RemotePort),
			PID: r.OwningPID, Process: owner(r.OwningPID),
		})
	}
	if buf, n, err := extendedTable(procGetExtendedTcpTable, afInet6, tcpTableOwnerPIDAll); err == nil {
		for _, r := range tableRows[mibTCP6RowOwnerPID](buf, n) {
			out = append(out, Socket{
				Protocol: "tcp6", State: tcpStates[r.State],
				LocalAddr: ip6FromIn6(r.LocalAddr), LocalPort: ntohs16(r.LocalPort),
				RemoteAddr: ip6FromIn6(r.RemoteAddr), RemotePort: ntohs16(r.RemotePort),
				PID: r.OwningPID, Process: owner(r.OwningPID),
			})
		}
	}
	if buf, n, err := extendedTable(procGetExtendedUdpTable, afInet, udpTableOwnerPID); err == nil {
		for _, r := range tableRows[mibUDPRowOwnerPID](buf, n) {
			out = append(out, Socket{
				Protocol: "udp", LocalAddr: ip4FromUint32(r.LocalAddr), LocalPort: ntohs16(r.LocalPort),
				PID: r.OwningPID, Process: owner(r.OwningPID),
			})
		}
	}
	if buf, n, err := extendedTable(procGetExtendedUdpTable, afInet6, udpTableOwnerPID); err == nil {
		for _, r := range tableRows[mibUDP6RowOwnerPID](buf, n) {
			out = append(out, Socket{
				Protocol: "udp6", LocalAddr: ip6FromIn6(r.LocalAddr), LocalPort: ntohs16(r.LocalPort),
				PID: r.OwningPID, Process: owner(r.OwningPID),
			})
		}
	}
	return out, ctx.Err()
}

func processName(pid uint32) string {
	switch pid {
	case 0:
		return "Idle"
	case 4:
		return "System"
	}
	if p := imagePath(pid); p != "" {
		return filepath.Base(p)
	}
	return ""
}
