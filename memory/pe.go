package memory

import "encoding/binary"

const (
	dosMagic         = "MZ"
	peMagic          = "PE\x00\x00"
	lfanewOffset     = 0x3c
	fileHeaderSize   = 20
	optMagicPE32Plus = 0x20b
)

// PEHeader holds the few header fields the injection heuristics use.
type PEHeader struct {
	NTOffset        uint32
	Machine         uint16
	Sections        uint16
	Characteristics uint16
	// Is64 is set only when the optional header magic was readable.
	Is64 bool
}

// IsDLL checks IMAGE_FILE_DLL.
func (h PEHeader) IsDLL() bool { return h.Characteristics&0x2000 != 0 }

// ParsePEHeader reads a DOS + NT header at the start of buf. Every read is
// bounds checked; garbage or truncated input returns ok=false.
func ParsePEHeader(buf []byte) (PEHeader, bool) {
	var h PEHeader
	if len(buf) < lfanewOffset+4 || string(buf[:2]) != dosMagic {
		return h, false
	}
	off := binary.LittleEndian.Uint32(buf[lfanewOffset:])
	// off+4 overflow guard on 32-bit lengths
	if uint64(off)+4 > uint64(len(buf)) {
		return h, false
	}
	if string(buf[off:off+4]) != peMagic {
		return h, false
	}
	h.NTOffset = off
	fh := uint64(off) + 4
	if fh+fileHeaderSize > uint64(len(buf)) {
		return h, true
	}
	h.Machine = binary.LittleEndian.Uint16(buf[fh:])
	h.Sections = binary.LittleEndian.Uint16(buf[fh+2:])
	h.Characteristics = binary.LittleEndian.Uint16(buf[fh+18:])
	opt := fh + fileHeaderSize
	if opt+2 <= uint64(len(buf)) {
		h.Is64 = binary.LittleEndian.Uint16(buf[opt:]) == optMagicPE32Plus
	}
	return h, true
}

// DetectPeHeader reports whether buf starts with a PE image.
func DetectPeHeader(buf []byte) bool {
	_, ok := ParsePEHeader(buf)
	return ok
}
