package core

import (
	"sync"
	"time"

	"corp/sysrecon/logger"
)

// Collector buffers one module's output during a scan. It is sealed when the
// scanner drains it, after which late writes from an abandoned module are
// dropped.
type Collector struct {
	module string
	scanID string
	log    *logger.Logger

	mu         sync.Mutex
	sealed     bool
	findings   []Finding
	indicators []InjectionIndicator
	skipped    []Skip
}

// NewCollector is exported for module tests; the scanner creates one per
// module per scan.
func NewCollector(module, scanID string, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{module: module, scanID: scanID, log: log}
}

// Report menyimpan finding; Module, ScanID dan Timestamp diisi otomatis.
func (c *Collector) Report(f Finding) {
	f.Module = c.module
	f.ScanID = c.scanID
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	c.findings = append(c.findings, f)
}

// Indicate records an injection indicator alongside its finding.
func (c *Collector) Indicate(ind InjectionIndicator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	c.indicators = append(c.indicators, ind)
}

// Skip logs and records an artifact that could not be analyzed. Access
// denied and vanished artifacts are routine and logged at debug.
func (c *Collector) Skip(item string, err error) {
	reason := "unknown"
	if err != nil {
		reason = err.Error()
	}
	if IsExpected(err) {
		c.log.Debug("skipped", "module", c.module, "item", item, "reason", reason)
	} else {
		c.log.Warn("skipped", "module", c.module, "item", item, "reason", reason)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return
	}
	c.skipped = append(c.skipped, Skip{Module: c.module, Item: item, Reason: reason})
}

// Findings returns a copy of what has been reported so far.
func (c *Collector) Findings() []Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Finding, len(c.findings))
	copy(out, c.findings)
	return out
}

func (c *Collector) IndicatorList() []InjectionIndicator {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]InjectionIndicator, len(c.indicators))
	copy(out, c.indicators)
	return out
}

func (c *Collector) SkippedItems() []Skip {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Skip, len(c.skipped))
	copy(out, c.skipped)
	return out
}

func (c *Collector) Module() string { return c.module }

func (c *Collector) Logger() *logger.Logger { return c.log }

func (c *Collector) drain() ([]Finding, []InjectionIndicator, []Skip) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	f, i, s := c.findings, c.indicators, c.skipped
	c.findings, c.indicators, c.skipped = nil, nil, nil
	return f, i, s
}
