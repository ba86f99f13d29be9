package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SecurityLevel is totally ordered: Low < Medium < High < Critical.
// Classifiers combine signals with Max, never by averaging.
type SecurityLevel int

const (
	LevelLow SecurityLevel = iota
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = [...]string{"low", "medium", "high", "critical"}

func (l SecurityLevel) String() string {
	if l < LevelLow || l > LevelCritical {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel is case-insensitive; "crit" and "med" are accepted.
func ParseLevel(s string) (SecurityLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "info":
		return LevelLow, nil
	case "medium", "med":
		return LevelMedium, nil
	case "high":
		return LevelHigh, nil
	case "critical", "crit":
		return LevelCritical, nil
	}
	return LevelLow, fmt.Errorf("unknown severity %q", s)
}

func (l SecurityLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *SecurityLevel) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Max returns the most severe of the given levels (LevelLow when empty).
func Max(levels ...SecurityLevel) SecurityLevel {
	out := LevelLow
	for _, l := range levels {
		if l > out {
			out = l
		}
	}
	return out
}

// Detail satu pasangan key/value; urutan dipertahankan di output.
type Detail struct {
	Key   string
	Value string
}

// Details marshal ke JSON object dengan urutan key seperti saat ditambahkan.
type Details []Detail

func (d Details) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the first value stored under key.
func (d Details) Get(key string) (string, bool) {
	for _, kv := range d {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return "", false
}

// Finding adalah satu observasi yang sudah diberi severity.
type Finding struct {
	ScanID      string        `json:"scan_id,omitempty"`
	Module      string        `json:"module"`
	Item        string        `json:"item"`
	Description string        `json:"description"`
	Severity    SecurityLevel `json:"severity"`
	Category    string        `json:"category,omitempty"`
	Details     Details       `json:"details,omitempty"`
	Remediation string        `json:"remediation,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewFinding membuat finding baru dengan timestamp sekarang.
func NewFinding(item, description string, severity SecurityLevel) Finding {
	return Finding{
		Item:        item,
		Description: description,
		Severity:    severity,
		Timestamp:   time.Now(),
	}
}

// AddDetail menambahkan bukti ke finding; value diformat dengan fmt.
func (f *Finding) AddDetail(key string, value any) *Finding {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}
	f.Details = append(f.Details, Detail{Key: key, Value: s})
	return f
}

// InjectionKind classifies an injection indicator.
type InjectionKind int

const (
	DllInjection InjectionKind = iota
	ProcessHollowing
	ManualMap
	ReflectiveLoad
)

var injectionNames = [...]string{"dll_injection", "process_hollowing", "manual_map", "reflective_load"}

func (k InjectionKind) String() string {
	if k < DllInjection || k > ReflectiveLoad {
		return fmt.Sprintf("injection(%d)", int(k))
	}
	return injectionNames[k]
}

func (k InjectionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// InjectionIndicator is one positive heuristic for a process. A process can
// carry many.
type InjectionIndicator struct {
	Kind      InjectionKind `json:"kind"`
	ProcessID uint32        `json:"process_id"`
	Process   string        `json:"process,omitempty"`
	Address   uint64        `json:"address"`
	Size      uint64        `json:"size"`
	Evidence  string        `json:"evidence"`
	Severity  SecurityLevel `json:"severity"`
}

// Skip records an artifact that could not be analyzed.
type Skip struct {
	Module string `json:"module"`
	Item   string `json:"item"`
	Reason string `json:"reason"`
}
