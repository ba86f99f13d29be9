package core

import "sync"

// FindingStore is the single sink every module writes to and the single
// source reporting reads from. Append-only; one mutex guards both the write
// path and snapshots.
type FindingStore struct {
	mu         sync.Mutex
	findings   []Finding
	indicators []InjectionIndicator
	skipped    []Skip
}

func NewFindingStore() *FindingStore {
	return &FindingStore{}
}

// Append adds a single finding.
func (s *FindingStore) Append(f Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, f)
}

// AppendBatch merges one scan's output under a single lock acquisition, so a
// reader sees either none or all of it.
func (s *FindingStore) AppendBatch(findings []Finding, indicators []InjectionIndicator, skipped []Skip) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = append(s.findings, findings...)
	s.indicators = append(s.indicators, indicators...)
	s.skipped = append(s.skipped, skipped...)
}

// Snapshot returns an ordered copy of all findings.
func (s *FindingStore) Snapshot() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

func (s *FindingStore) Indicators() []InjectionIndicator {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InjectionIndicator, len(s.indicators))
	copy(out, s.indicators)
	return out
}

func (s *FindingStore) Skipped() []Skip {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Skip, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// ScanResults returns the findings stamped with scanID.
func (s *FindingStore) ScanResults(scanID string) []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Finding
	for _, f := range s.findings {
		if f.ScanID == scanID {
			out = append(out, f)
		}
	}
	return out
}

func (s *FindingStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.findings)
}

// Reset drops everything. Only the scanner calls this, never mid-scan.
func (s *FindingStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findings = nil
	s.indicators = nil
	s.skipped = nil
}
