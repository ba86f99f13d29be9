package core

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func TestSecurityLevelOrderingAndMax(t *testing.T) {
	if !(LevelLow < LevelMedium && LevelMedium < LevelHigh && LevelHigh < LevelCritical) {
		t.Fatal("levels not totally ordered")
	}
	if got := Max(LevelMedium, LevelCritical, LevelLow); got != LevelCritical {
		t.Errorf("Max = %v", got)
	}
	if got := Max(); got != LevelLow {
		t.Errorf("Max() = %v", got)
	}
}

func TestParseLevel(t *testing.T) {
	for _, l := range []SecurityLevel{LevelLow, LevelMedium, LevelHigh, LevelCritical} {
		got, err := ParseLevel(strings.ToUpper(l.String()))
		if err != nil || got != l {
			t.Errorf("ParseLevel(%q) = %v, %v", l.String(), got, err)
		}
	}
	if _, err := ParseLevel("severe"); err == nil {
		t.Error("expected error")
	}
}

func TestFindingJSONKeepsDetailOrder(t *testing.T) {
	f := NewFinding("pid 42", "unbacked executable memory", LevelCritical)
	f.AddDetail("pid", 42).AddDetail("address", "0x1000").AddDetail("protection", "rwx")
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"severity":"critical"`) {
		t.Errorf("severity not a string: %s", s)
	}
	if !strings.Contains(s, `"details":{"pid":"42","address":"0x1000","protection":"rwx"}`) {
		t.Errorf("details out of order: %s", s)
	}
	if v, ok := f.Details.Get("address"); !ok || v != "0x1000" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestStoreAppendAndSnapshot(t *testing.T) {
	s := NewFindingStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.Append(NewFinding("x", "y", LevelLow))
			}
		}()
	}
	wg.Wait()
	if s.Len() != 400 {
		t.Fatalf("len = %d", s.Len())
	}
	snap := s.Snapshot()
	snap[0].Item = "mutated"
	if s.Snapshot()[0].Item == "mutated" {
		t.Error("snapshot aliases store")
	}
}

func TestStoreBatchAndScanResults(t *testing.T) {
	s := NewFindingStore()
	a := NewFinding("a", "", LevelLow)
	a.ScanID = "one"
	b := NewFinding("b", "", LevelHigh)
	b.ScanID = "two"
	s.AppendBatch([]Finding{a, b}, []InjectionIndicator{{Kind: DllInjection}}, []Skip{{Module: "memory", Item: "pid 4"}})
	if got := s.ScanResults("two"); len(got) != 1 || got[0].Item != "b" {
		t.Errorf("ScanResults = %+v", got)
	}
	if len(s.Indicators()) != 1 || len(s.Skipped()) != 1 {
		t.Error("batch lost indicators or skips")
	}
	s.Reset()
	if s.Len() != 0 || len(s.Indicators()) != 0 {
		t.Error("reset incomplete")
	}
}

func TestCollectorSealedAfterDrain(t *testing.T) {
	c := NewCollector("memory", "scan-1", nil)
	c.Report(NewFinding("pid 1", "x", LevelHigh))
	f, _, _ := c.drain()
	if len(f) != 1 || f[0].Module != "memory" || f[0].ScanID != "scan-1" {
		t.Fatalf("drained %+v", f)
	}
	c.Report(NewFinding("pid 2", "late", LevelHigh))
	c.Skip("pid 3", ErrAccessDenied)
	if len(c.Findings()) != 0 || len(c.SkippedItems()) != 0 {
		t.Error("sealed collector accepted writes")
	}
}

func TestModuleKindRoundTrip(t *testing.T) {
	for _, k := range AllModules() {
		got, err := ParseModuleKind(strings.ToUpper(k.String()))
		if err != nil || got != k {
			t.Errorf("ParseModuleKind(%s) = %v, %v", k, got, err)
		}
	}
	if _, err := ParseModuleKind("kernel"); err == nil {
		t.Error("expected error")
	}
}
