package memory

import (
	"bytes"
	"errors"
	"fmt"

	"corp/sysrecon/core"
)

// Signature is a masked byte pattern. A mask bit of 1 means the bit must
// match; a 0x00 mask byte is a full wildcard.
type Signature struct {
	Name        string
	Pattern     []byte
	Mask        []byte
	Severity    core.SecurityLevel
	Description string
	// MinimumRegionSize: buffers smaller than this are not searched.
	// Zero means len(Pattern).
	MinimumRegionSize int
}

var errBadSignature = errors.New("invalid signature")

// Validate rejects empty patterns, mask length mismatches, fully wildcarded
// masks and minimum sizes that cannot hold the pattern.
func (s Signature) Validate() error {
	switch {
	case len(s.Pattern) == 0:
		return fmt.Errorf("%w %q: empty pattern", errBadSignature, s.Name)
	case len(s.Mask) != len(s.Pattern):
		return fmt.Errorf("%w %q: mask is %d bytes, pattern is %d", errBadSignature, s.Name, len(s.Mask), len(s.Pattern))
	case s.MinimumRegionSize < 0:
		return fmt.Errorf("%w %q: negative minimum region size", errBadSignature, s.Name)
	case s.MinimumRegionSize != 0 && s.MinimumRegionSize < len(s.Pattern):
		return fmt.Errorf("%w %q: minimum region size %d is shorter than the pattern", errBadSignature, s.Name, s.MinimumRegionSize)
	}
	for _, m := range s.Mask {
		if m != 0 {
			return nil
		}
	}
	return fmt.Errorf("%w %q: mask matches everything", errBadSignature, s.Name)
}

func (s Signature) minSize() int {
	if s.MinimumRegionSize > len(s.Pattern) {
		return s.MinimumRegionSize
	}
	return len(s.Pattern)
}

// MatchSignature reports whether sig occurs anywhere in buf.
func MatchSignature(buf []byte, sig Signature) bool {
	return FindSignature(buf, sig) >= 0
}

// FindSignature returns the first offset where sig matches, or -1. An
// invalid signature never matches.
func FindSignature(buf []byte, sig Signature) int {
	if sig.Validate() != nil || len(buf) < sig.minSize() {
		return -1
	}
	n := len(sig.Pattern)
	last := len(buf) - n

	// anchor on the first byte when it is fully specified
	if sig.Mask[0] == 0xff {
		first := sig.Pattern[0]
		for i := 0; i <= last; {
			j := bytes.IndexByte(buf[i:last+1], first)
			if j < 0 {
				return -1
			}
			i += j
			if matchAt(buf[i:i+n], sig.Pattern, sig.Mask) {
				return i
			}
			i++
		}
		return -1
	}
	for i := 0; i <= last; i++ {
		if matchAt(buf[i:i+n], sig.Pattern, sig.Mask) {
			return i
		}
	}
	return -1
}

func matchAt(window, pattern, mask []byte) bool {
	for j := range pattern {
		if window[j]&mask[j] != pattern[j]&mask[j] {
			return false
		}
	}
	return true
}

// Match is one signature hit.
type Match struct {
	Signature string             `json:"signature"`
	Offset    int                `json:"offset"`
	Severity  core.SecurityLevel `json:"severity"`
}

// ScanBuffer runs every signature over buf, one hit per signature.
func ScanBuffer(buf []byte, sigs []Signature) []Match {
	var out []Match
	for _, s := range sigs {
		if off := FindSignature(buf, s); off >= 0 {
			out = append(out, Match{Signature: s.Name, Offset: off, Severity: s.Severity})
		}
	}
	return out
}

// DetectShellcode checks buf against the built-in shellcode idioms.
func DetectShellcode(buf []byte) bool {
	for _, s := range shellcodeSignatures {
		if MatchSignature(buf, s) {
			return true
		}
	}
	return false
}

// MatchShellcode is DetectShellcode with the hits.
func MatchShellcode(buf []byte) []Match {
	return ScanBuffer(buf, shellcodeSignatures)
}
