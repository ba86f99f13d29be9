package memory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"corp/sysrecon/core"
)

func TestParsePattern(t *testing.T) {
	p, m, err := ParsePattern("64 ?? 3? ?F a1")
	if err != nil {
		t.Fatal(err)
	}
	wantP := []byte{0x64, 0x00, 0x30, 0x0f, 0xa1}
	wantM := []byte{0xff, 0x00, 0xf0, 0x0f, 0xff}
	for i := range wantP {
		if p[i] != wantP[i] || m[i] != wantM[i] {
			t.Fatalf("byte %d: pattern %x mask %x", i, p, m)
		}
	}
	for _, bad := range []string{"", "6", "zz", "123"} {
		if _, _, err := ParsePattern(bad); err == nil {
			t.Errorf("ParsePattern(%q) accepted", bad)
		}
	}
}

const sigYAML = `
signatures:
  - name: cobalt_beacon_stub
    pattern: "4D 5A 41 52 55 48 89 E5"
    severity: critical
    description: reflective loader prologue
  - name: meterpreter_stage
    pattern: "FC E8 ?? 00 00 00"
    min_region_size: 4096
  - pattern: "DE AD BE EF"
    mask: "FF FF FF 00"
`

func TestParseSignatures(t *testing.T) {
	sigs, err := ParseSignatures([]byte(sigYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(sigs) != 3 {
		t.Fatalf("got %d signatures", len(sigs))
	}
	if sigs[0].Severity != core.LevelCritical || sigs[1].Severity != core.LevelHigh {
		t.Errorf("severities = %v, %v", sigs[0].Severity, sigs[1].Severity)
	}
	if sigs[1].MinimumRegionSize != 4096 || sigs[1].Mask[2] != 0 {
		t.Errorf("meterpreter = %+v", sigs[1])
	}
	if sigs[2].Name != "signature_3" || sigs[2].Mask[3] != 0 {
		t.Errorf("unnamed = %+v", sigs[2])
	}
	if !MatchSignature([]byte{0xde, 0xad, 0xbe, 0x00}, sigs[2]) {
		t.Error("masked file signature did not match")
	}
}

func TestParseSignaturesInvalid(t *testing.T) {
	cases := map[string]string{
		"yaml":      "signatures: [",
		"pattern":   "signatures:\n  - name: a\n    pattern: \"GG\"\n",
		"severity":  "signatures:\n  - name: a\n    pattern: \"90\"\n    severity: scary\n",
		"mask":      "signatures:\n  - name: a\n    pattern: \"90 90\"\n    mask: \"FF\"\n",
		"minsize":   "signatures:\n  - name: a\n    pattern: \"90 90\"\n    min_region_size: 1\n",
		"duplicate": "signatures:\n  - name: a\n    pattern: \"90\"\n  - name: a\n    pattern: \"91\"\n",
	}
	for name, doc := range cases {
		if _, err := ParseSignatures([]byte(doc)); !errors.Is(err, core.ErrConfigurationInvalid) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestLoadSignatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sigs.yaml")
	if err := os.WriteFile(path, []byte(sigYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	sigs, err := LoadSignatures(path)
	if err != nil || len(sigs) != 3 {
		t.Fatalf("LoadSignatures = %d, %v", len(sigs), err)
	}
	if _, err := LoadSignatures(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("missing file err = %v", err)
	}

	set, err := NewSignatureSet(sigs...)
	if err != nil {
		t.Fatal(err)
	}
	if set.Len() != len(ShellcodeSignatures())+3 {
		t.Errorf("set len = %d", set.Len())
	}
	hits := set.Malware([]byte{0x00, 0xFC, 0xE8, 0x12, 0x00, 0x00, 0x00})
	if len(hits) != 0 {
		t.Errorf("matched below min_region_size: %+v", hits)
	}
	if _, err := NewSignatureSet(Signature{Name: "bad"}); !errors.Is(err, core.ErrConfigurationInvalid) {
		t.Errorf("NewSignatureSet bad err = %v", err)
	}
}
