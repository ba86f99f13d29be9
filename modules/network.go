package modules

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"corp/sysrecon/core"
	"corp/sysrecon/logger"
)

/*
   =========================
   Network: listening & active sockets
   - Listener di port backdoor yang dikenal        → high
   - Sesi ESTABLISHED ke port backdoor              → high
   - Listener wildcard milik proses non-sistem      → medium
   =========================
*/

// Socket is one TCP/UDP endpoint with its owning process.
type Socket struct {
	Protocol   string // tcp, tcp6, udp, udp6
	LocalAddr  string
	LocalPort  uint16
	RemoteAddr string
	RemotePort uint16
	State      string
	PID        uint32
	Process    string
}

func (s Socket) IsUDP() bool { return strings.HasPrefix(s.Protocol, "udp") }

// Listening: TCP dalam state LISTEN, atau UDP yang belum connect.
func (s Socket) Listening() bool {
	if s.IsUDP() {
		return s.RemotePort == 0
	}
	return s.State == "LISTEN"
}

func (s Socket) Established() bool { return s.State == "ESTABLISHED" }

// Wildcard reports a listener bound to every interface.
func (s Socket) Wildcard() bool {
	switch s.LocalAddr {
	case "", "0.0.0.0", "::", "[::]", "*":
		return true
	}
	return false
}

func (s Socket) Local() string {
	return net.JoinHostPort(strings.Trim(s.LocalAddr, "[]"), strconv.Itoa(int(s.LocalPort)))
}

func (s Socket) Remote() string {
	return net.JoinHostPort(strings.Trim(s.RemoteAddr, "[]"), strconv.Itoa(int(s.RemotePort)))
}

type NetworkSource interface {
	Sockets(ctx context.Context) ([]Socket, error)
}

// AssessSocket applies the port rules. backdoor holds the configured
// suspicious ports.
func AssessSocket(s Socket, backdoor map[uint16]bool, wl core.Whitelist) (core.SecurityLevel, string) {
	switch {
	case s.Listening() && backdoor[s.LocalPort]:
		return core.LevelHigh, fmt.Sprintf("Listening on known backdoor port %d", s.LocalPort)
	case s.Established() && backdoor[s.RemotePort]:
		return core.LevelHigh, fmt.Sprintf("Established session to known backdoor port %d", s.RemotePort)
	case s.Listening() && s.Wildcard() && !wl.IsSystemProcess(s.Process):
		return core.LevelMedium, "Non-system process listening on all interfaces"
	}
	return core.LevelLow, ""
}

type NetworkModule struct {
	src         NetworkSource
	wl          core.Whitelist
	backdoor    map[uint16]bool
	listeners   bool
	connections bool
	log         *logger.Logger
}

// NewNetworkModule: listeners and connections select which socket kinds
// are analyzed; quick scans look at listeners only.
func NewNetworkModule(src NetworkSource, wl core.Whitelist, backdoorPorts []int, listeners, connections bool, log *logger.Logger) *NetworkModule {
	if wl == nil {
		wl = core.NewSystemWhitelist()
	}
	if log == nil {
		log = logger.Nop()
	}
	bd := make(map[uint16]bool, len(backdoorPorts))
	for _, p := range backdoorPorts {
		if p > 0 && p <= 65535 {
			bd[uint16(p)] = true
		}
	}
	return &NetworkModule{src: src, wl: wl, backdoor: bd, listeners: listeners, connections: connections, log: log}
}

func (m *NetworkModule) Kind() core.ModuleKind { return core.ModuleNetwork }

func (m *NetworkModule) Initialize(context.Context) error {
	if m.src == nil {
		return fmt.Errorf("%w: network module has no source", core.ErrConfigurationInvalid)
	}
	if !m.listeners && !m.connections {
		return fmt.Errorf("%w: network module enabled with nothing to analyze", core.ErrConfigurationInvalid)
	}
	return nil
}

func (m *NetworkModule) Run(ctx context.Context, mode core.ScanMode, c *core.Collector) error {
	socks, err := m.src.Sockets(ctx)
	if err != nil {
		return fmt.Errorf("enumerate sockets: %w", err)
	}
	var listening, active int
	for _, s := range socks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		switch {
		case s.Listening():
			listening++
			if !m.listeners {
				continue
			}
		case s.Established():
			active++
			if !m.connections || mode == core.ScanQuick {
				continue
			}
		default:
			continue
		}
		level, desc := AssessSocket(s, m.backdoor, m.wl)
		if level == core.LevelLow {
			continue
		}
		c.Report(socketFinding(s, level, desc))
	}
	m.log.Debug("sockets analyzed", "total", len(socks), "listening", listening, "established", active)
	return nil
}

func socketFinding(s Socket, level core.SecurityLevel, desc string) core.Finding {
	item := s.Protocol + " " + s.Local()
	if s.Established() {
		item += " -> " + s.Remote()
	}
	f := core.NewFinding(item, desc, level)
	f.Category = "network"
	f.AddDetail("protocol", s.Protocol).
		AddDetail("local", s.Local())
	if s.Established() {
		f.AddDetail("remote", s.Remote())
	}
	if s.State != "" {
		f.AddDetail("state", s.State)
	}
	f.AddDetail("pid", s.PID)
	if s.Process != "" {
		f.AddDetail("process", s.Process)
	}
	if level >= core.LevelHigh {
		f.Remediation = "Identify the owning process and block the port if it is not expected"
	}
	return f
}
