package modules

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

var procTCPStates = map[string]string{
	"01": "ESTABLISHED", "02": "SYN_SENT", "03": "SYN_RECV", "04": "FIN_WAIT1",
	"05": "FIN_WAIT2", "06": "TIME_WAIT", "07": "CLOSE", "08": "CLOSE_WAIT",
	"09": "LAST_ACK", "0A": "LISTEN", "0B": "CLOSING",
}

// procSocket carries the inode used to find the owning process.
type procSocket struct {
	Socket
	Inode uint64
}

// ParseProcNet reads /proc/net/{tcp,tcp6,udp,udp6}:
//
//	sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode
//	0: 0100007F:0277 00000000:0000 0A 00000000:00000000 00:00000000 00000000     0        0 12345
func ParseProcNet(r io.Reader, proto string) ([]procSocket, error) {
	var out []procSocket
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		f := strings.Fields(sc.Text())
		if len(f) < 10 {
			continue
		}
		laddr, lport, err := parseHexEndpoint(f[1])
		if err != nil {
			return nil, err
		}
		raddr, rport, err := parseHexEndpoint(f[2])
		if err != nil {
			return nil, err
		}
		inode, _ := strconv.ParseUint(f[9], 10, 64)
		s := Socket{
			Protocol:   proto,
			LocalAddr:  laddr,
			LocalPort:  lport,
			RemoteAddr: raddr,
			RemotePort: rport,
		}
		if !strings.HasPrefix(proto, "udp") {
			s.State = procTCPStates[strings.ToUpper(f[3])]
		}
		out = append(out, procSocket{Socket: s, Inode: inode})
	}
	return out, sc.Err()
}

// parseHexEndpoint decodes "0100007F:0277". Addresses are stored as host
// order 32-bit words.
func parseHexEndpoint(s string) (string, uint16, error) {
	a, p, ok := strings.Cut(s, ":")
	if !ok {
		return "", 0, fmt.Errorf("bad endpoint %q", s)
	}
	port, err := strconv.ParseUint(p, 16, 16)
	if err != nil {
		return "", 0, fmt.Errorf("bad port in %q: %w", s, err)
	}
	raw, err := hex.DecodeString(a)
	if err != nil || (len(raw) != 4 && len(raw) != 16) {
		return "", 0, fmt.Errorf("bad address in %q", s)
	}
	// balik tiap word 4 byte (little-endian)
	for i := 0; i < len(raw); i += 4 {
		raw[i], raw[i+1], raw[i+2], raw[i+3] = raw[i+3], raw[i+2], raw[i+1], raw[i]
	}
	return net.IP(raw).String(), uint16(port), nil
}
