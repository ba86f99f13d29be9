package memory

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"corp/sysrecon/core"
)

/* ===== built-in shellcode idioms ===== */

var shellcodeSignatures = []Signature{
	mustSig("nop_sled_jmp", "90 90 90 EB", core.LevelMedium, "NOP run followed by a short relative jump"),
	mustSig("nop_sled", strings.Repeat("90 ", 16), core.LevelMedium, "16-byte NOP sled"),
	mustSig("int3_sled", strings.Repeat("CC ", 16), core.LevelMedium, "16-byte INT3 sled"),
	mustSig("peb_access_x86", "64 A1 30 00 00 00", core.LevelHigh, "mov eax, fs:[0x30] (PEB walk)"),
	mustSigMask("peb_access_x86_reg", "64 8B 05 30 00 00 00", "FF FF C7 FF FF FF FF", core.LevelHigh, "mov reg, fs:[0x30] (PEB walk)"),
	mustSigMask("peb_access_x86_disp8", "64 8B 40 30", "FF FF C0 FF", core.LevelHigh, "mov reg, fs:[reg+0x30] (PEB walk)"),
	mustSigMask("peb_access_x64", "65 48 8B 04 25 60 00 00 00", "FF FF FF C7 FF FF FF FF FF", core.LevelHigh, "mov reg, gs:[0x60] (PEB walk)"),
	mustSigMask("getpc_call_pop", "E8 00 00 00 00 58", "FF FF FF FF FF F8", core.LevelHigh, "call $+5; pop reg (GetPC)"),
	mustSig("getpc_fnstenv", "D9 74 24 F4", core.LevelHigh, "fnstenv [esp-0xc] (GetPC)"),
}

// ShellcodeSignatures returns a copy of the built-in shellcode set.
func ShellcodeSignatures() []Signature {
	out := make([]Signature, len(shellcodeSignatures))
	copy(out, shellcodeSignatures)
	return out
}

func mustSig(name, pattern string, sev core.SecurityLevel, desc string) Signature {
	p, m, err := ParsePattern(pattern)
	if err != nil {
		panic(err)
	}
	return Signature{Name: name, Pattern: p, Mask: m, Severity: sev, Description: desc}
}

func mustSigMask(name, pattern, mask string, sev core.SecurityLevel, desc string) Signature {
	s := mustSig(name, pattern, sev, desc)
	m, err := parseHex(mask)
	if err != nil || len(m) != len(s.Pattern) {
		panic(fmt.Sprintf("bad mask for %s", name))
	}
	s.Mask = m
	return s
}

/* ===== pattern text ===== */

// ParsePattern parses space separated hex bytes. "??" is a full wildcard,
// "4?" and "?4" wildcard one nibble.
func ParsePattern(s string) (pattern, mask []byte, err error) {
	for _, tok := range strings.Fields(s) {
		if len(tok) != 2 {
			return nil, nil, fmt.Errorf("bad byte %q", tok)
		}
		var p, m byte
		for i := 0; i < 2; i++ {
			shift := uint(4 * (1 - i))
			if tok[i] == '?' {
				continue
			}
			v, ok := hexNibble(tok[i])
			if !ok {
				return nil, nil, fmt.Errorf("bad byte %q", tok)
			}
			p |= v << shift
			m |= 0xf << shift
		}
		pattern = append(pattern, p)
		mask = append(mask, m)
	}
	if len(pattern) == 0 {
		return nil, nil, errors.New("empty pattern")
	}
	return pattern, mask, nil
}

func parseHex(s string) ([]byte, error) {
	p, m, err := ParsePattern(s)
	if err != nil {
		return nil, err
	}
	for _, b := range m {
		if b != 0xff {
			return nil, errors.New("wildcard not allowed here")
		}
	}
	return p, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

/* ===== signature file ===== */

type signatureFile struct {
	Signatures []signatureEntry `yaml:"signatures"`
}

type signatureEntry struct {
	Name          string `yaml:"name"`
	Pattern       string `yaml:"pattern"`
	Mask          string `yaml:"mask"`
	Severity      string `yaml:"severity"`
	Description   string `yaml:"description"`
	MinRegionSize int    `yaml:"min_region_size"`
}

// LoadSignatures reads a YAML signature file. Any bad entry fails the whole
// file with an error wrapping core.ErrConfigurationInvalid.
func LoadSignatures(path string) ([]Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: signatures file: %v", core.ErrConfigurationInvalid, err)
	}
	return ParseSignatures(data)
}

func ParseSignatures(data []byte) ([]Signature, error) {
	var f signatureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: signatures: %v", core.ErrConfigurationInvalid, err)
	}
	out := make([]Signature, 0, len(f.Signatures))
	seen := map[string]bool{}
	for i, e := range f.Signatures {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			name = fmt.Sprintf("signature_%d", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate signature %q", core.ErrConfigurationInvalid, name)
		}
		seen[name] = true

		p, m, err := ParsePattern(e.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %q: %v", core.ErrConfigurationInvalid, name, err)
		}
		if e.Mask != "" {
			if m, err = parseHex(e.Mask); err != nil {
				return nil, fmt.Errorf("%w: signature %q mask: %v", core.ErrConfigurationInvalid, name, err)
			}
		}
		sev := core.LevelHigh
		if e.Severity != "" {
			if sev, err = core.ParseLevel(e.Severity); err != nil {
				return nil, fmt.Errorf("%w: signature %q: %v", core.ErrConfigurationInvalid, name, err)
			}
		}
		sig := Signature{
			Name:              name,
			Pattern:           p,
			Mask:              m,
			Severity:          sev,
			Description:       e.Description,
			MinimumRegionSize: e.MinRegionSize,
		}
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfigurationInvalid, err)
		}
		out = append(out, sig)
	}
	return out, nil
}

// SignatureSet is loaded once and shared read-only by every scan.
type SignatureSet struct {
	shellcode []Signature
	malware   []Signature
}

// NewSignatureSet validates the extra malware signatures and pairs them
// with the built-in shellcode set.
func NewSignatureSet(malware ...Signature) (*SignatureSet, error) {
	for _, s := range malware {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrConfigurationInvalid, err)
		}
	}
	m := make([]Signature, len(malware))
	copy(m, malware)
	return &SignatureSet{shellcode: ShellcodeSignatures(), malware: m}, nil
}

func (s *SignatureSet) Len() int { return len(s.shellcode) + len(s.malware) }

// Shellcode runs the built-in idioms over buf.
func (s *SignatureSet) Shellcode(buf []byte) []Match { return ScanBuffer(buf, s.shellcode) }

// Malware runs the loaded signatures over buf.
func (s *SignatureSet) Malware(buf []byte) []Match { return ScanBuffer(buf, s.malware) }
