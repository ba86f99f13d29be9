package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"corp/sysrecon/logger"
)

// State of the scanner. Failed is terminal.
type State int32

const (
	StateIdle State = iota
	StateInitializing
	StateScanning
	StateAggregating
	StateFailed
)

var stateNames = [...]string{"idle", "initializing", "scanning", "aggregating", "failed"}

func (s State) String() string {
	if s < StateIdle || s > StateFailed {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// Module status strings, as they appear in reports.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusTimeout   = "timeout"
	StatusCancelled = "cancelled"
	StatusSkipped   = "skipped"
)

// DefaultTimeout is the per-scan wall clock budget.
const DefaultTimeout = 300 * time.Second

// Options untuk scanner.
type Options struct {
	// OutputDir dibuat saat Initialize; gagal = state Failed.
	OutputDir string
	Timeout   time.Duration
	// Factories per modul yang enabled. Modul tanpa factory = disabled.
	Factories map[ModuleKind]ModuleFactory
	Logger    *logger.Logger
	Store     *FindingStore
	// Privileged overrides the elevation probe (tests).
	Privileged func() bool
}

// ModuleResult adalah ringkasan satu modul dalam satu scan.
type ModuleResult struct {
	Module   string        `json:"module"`
	Status   string        `json:"status"` // ok, error, timeout, cancelled, skipped
	Findings int           `json:"findings"`
	Skipped  int           `json:"skipped"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ModuleError is kept for Errors().
type ModuleError struct {
	ScanID string
	Module string
	Err    error
}

func (e ModuleError) Error() string { return e.Module + ": " + e.Err.Error() }
func (e ModuleError) Unwrap() error { return e.Err }

// ScanSummary describes one finished scan.
type ScanSummary struct {
	ScanID     string         `json:"scan_id"`
	Mode       string         `json:"mode"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Modules    []ModuleResult `json:"modules"`
	Findings   int            `json:"findings"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed_modules"`
	TimedOut   bool           `json:"timed_out"`
	Cancelled  bool           `json:"cancelled"`
	Privileged bool           `json:"privileged"`
}

// Partial is true when anything was skipped or any module did not finish.
func (s ScanSummary) Partial() bool {
	return s.Skipped > 0 || s.Failed > 0 || s.TimedOut || s.Cancelled
}

// Scanner sequences modules through Idle → Initializing → Scanning →
// Aggregating → Idle. At most one scan runs at a time; status queries are
// lock-free and safe from any goroutine.
type Scanner struct {
	opts  Options
	log   *logger.Logger
	store *FindingStore

	state       atomic.Int32
	scanning    atomic.Bool
	initialized atomic.Bool
	cancelled   atomic.Bool
	privileged  atomic.Bool
	progress    *progressTracker

	mu      sync.Mutex
	modules []Module
	cancel  context.CancelFunc
	errs    []ModuleError
}

// NewScanner membuat instance scanner baru.
func NewScanner(opts Options) *Scanner {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Store == nil {
		opts.Store = NewFindingStore()
	}
	if opts.Privileged == nil {
		opts.Privileged = IsElevated
	}
	return &Scanner{
		opts:     opts,
		log:      opts.Logger,
		store:    opts.Store,
		progress: newProgressTracker(),
	}
}

// Initialize checks privileges, prepares the output directory and builds
// one instance per enabled module in execution order.
func (s *Scanner) Initialize(ctx context.Context) error {
	if s.scanning.Load() {
		return ErrScanInProgress
	}
	if s.State() == StateFailed {
		return ErrEngineFailed
	}
	s.setState(StateInitializing)

	priv := s.opts.Privileged()
	s.privileged.Store(priv)
	if !priv {
		s.log.Warn("not running elevated; protected processes and keys will be skipped")
	} else if err := EnableDebugPrivilege(); err != nil {
		s.log.Debug("debug privilege unavailable", "reason", err)
	}

	if s.opts.OutputDir != "" {
		if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
			s.setState(StateFailed)
			s.log.Error("cannot create output directory", "dir", s.opts.OutputDir, "reason", err)
			return fmt.Errorf("create output directory %s: %w", s.opts.OutputDir, err)
		}
	}

	mods := make([]Module, 0, len(s.opts.Factories))
	for _, kind := range AllModules() {
		factory, ok := s.opts.Factories[kind]
		if !ok || factory == nil {
			continue
		}
		m, err := factory()
		if err == nil {
			err = m.Initialize(ctx)
		}
		if err != nil {
			if errors.Is(err, ErrConfigurationInvalid) {
				s.setState(StateFailed)
				s.log.Error("module configuration invalid", "module", kind.String(), "reason", err)
				return fmt.Errorf("initialize %s: %w", kind, err)
			}
			s.log.Warn("module unavailable", "module", kind.String(), "reason", err)
			continue
		}
		mods = append(mods, m)
	}

	s.mu.Lock()
	s.modules = mods
	s.mu.Unlock()
	s.initialized.Store(true)
	s.log.Info("scanner initialized", "modules", len(mods), "privileged", priv)
	return nil
}

// RunFullScan runs every initialized module with its full workload.
func (s *Scanner) RunFullScan(ctx context.Context) (ScanSummary, error) {
	return s.run(ctx, ScanFull, nil)
}

// RunQuickScan runs the same state machine with the reduced per-module workload.
func (s *Scanner) RunQuickScan(ctx context.Context) (ScanSummary, error) {
	return s.run(ctx, ScanQuick, nil)
}

// RunModuleScan runs only the given modules (in execution order).
func (s *Scanner) RunModuleScan(ctx context.Context, mode ScanMode, kinds ...ModuleKind) (ScanSummary, error) {
	want := make(map[ModuleKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	return s.run(ctx, mode, want)
}

func (s *Scanner) run(parent context.Context, mode ScanMode, only map[ModuleKind]bool) (ScanSummary, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return ScanSummary{}, ErrScanInProgress
	}
	defer s.scanning.Store(false)

	if s.State() == StateFailed {
		return ScanSummary{}, ErrEngineFailed
	}
	if !s.initialized.Load() {
		return ScanSummary{}, ErrNotInitialized
	}

	s.cancelled.Store(false)
	s.mu.Lock()
	mods := make([]Module, 0, len(s.modules))
	for _, m := range s.modules {
		if only == nil || only[m.Kind()] {
			mods = append(mods, m)
		}
	}
	ctx, cancel := context.WithTimeout(parent, s.opts.Timeout)
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	summary := ScanSummary{
		ScanID:     uuid.NewString(),
		Mode:       mode.String(),
		StartedAt:  time.Now(),
		Privileged: s.privileged.Load(),
	}
	s.progress.reset(len(mods))
	s.setState(StateScanning)
	s.log.Info("scan started", "scan_id", summary.ScanID, "mode", mode.String(), "modules", len(mods))

	collectors := make([]*Collector, 0, len(mods))
	for _, m := range mods {
		name := m.Kind().String()
		res := ModuleResult{Module: name}

		if err := ctx.Err(); err != nil {
			// budget habis atau dibatalkan: modul sisanya tidak dijalankan
			res.Status = s.ctxStatus(ctx)
			summary.Modules = append(summary.Modules, res)
			summary.Failed++
			s.progress.complete(name, res.Status)
			continue
		}

		col := NewCollector(name, summary.ScanID, s.log)
		collectors = append(collectors, col)
		s.progress.start(name)
		start := time.Now()
		err := s.runModule(ctx, m, mode, col)
		res.Duration = time.Since(start)

		switch {
		case err == nil:
			res.Status = StatusOK
		case errors.Is(err, ErrTimeout):
			res.Status = StatusTimeout
			res.Error = err.Error()
			summary.Failed++
			s.log.Error("module timed out", "module", name, "after", res.Duration.Round(time.Millisecond).String())
		case errors.Is(err, context.Canceled):
			res.Status = StatusCancelled
			res.Error = err.Error()
			summary.Failed++
			s.log.Warn("module cancelled", "module", name)
		default:
			res.Status = StatusError
			res.Error = err.Error()
			summary.Failed++
			s.log.Error("module failed", "module", name, "reason", err)
		}
		if err != nil {
			s.mu.Lock()
			s.errs = append(s.errs, ModuleError{ScanID: summary.ScanID, Module: name, Err: err})
			s.mu.Unlock()
		}
		summary.Modules = append(summary.Modules, res)
		s.progress.complete(name, res.Status)
	}

	summary.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	summary.Cancelled = s.cancelled.Load()

	s.setState(StateAggregating)
	var (
		findings   []Finding
		indicators []InjectionIndicator
		skipped    []Skip
	)
	for _, col := range collectors {
		f, ind, sk := col.drain()
		findings = append(findings, f...)
		indicators = append(indicators, ind...)
		skipped = append(skipped, sk...)
		for i := range summary.Modules {
			if summary.Modules[i].Module == col.Module() {
				summary.Modules[i].Findings = len(f)
				summary.Modules[i].Skipped = len(sk)
			}
		}
	}
	s.store.AppendBatch(findings, indicators, skipped)

	summary.Findings = len(findings)
	summary.Skipped = len(skipped)
	summary.FinishedAt = time.Now()
	s.progress.finish()
	s.setState(StateIdle)

	s.log.Info("scan finished",
		"scan_id", summary.ScanID,
		"findings", summary.Findings,
		"skipped", summary.Skipped,
		"failed_modules", summary.Failed,
		"partial", summary.Partial(),
		"duration", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String())
	return summary, nil
}

// runModule menjalankan satu modul dengan panic recovery. Kalau ctx habis
// duluan, modul ditinggal; collector-nya tetap menyimpan temuan parsial.
func (s *Scanner) runModule(ctx context.Context, m Module, mode ScanMode, col *Collector) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- m.Run(ctx, mode, col)
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: module abandoned", ErrTimeout)
		}
		return ctx.Err()
	}
}

func (s *Scanner) ctxStatus(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusCancelled
}

// Cancel requests cooperative cancellation of the running scan. It is
// observed between modules and between region walk steps.
func (s *Scanner) Cancel() {
	s.cancelled.Store(true)
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Cancelled reports whether the last (or current) scan was cancelled.
func (s *Scanner) Cancelled() bool { return s.cancelled.Load() }

func (s *Scanner) State() State { return State(s.state.Load()) }

func (s *Scanner) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.log.Debug("state", "from", prev.String(), "to", st.String())
	}
}

func (s *Scanner) IsScanning() bool { return s.scanning.Load() }

// Progress returns completed/enabled modules × 100 for the current scan.
func (s *Scanner) Progress() float64 { return s.progress.percent() }

// CurrentModule is the module running right now, or "".
func (s *Scanner) CurrentModule() string { return s.progress.module() }

// Subscribe returns a channel of progress events and a function that
// unsubscribes and closes it. Slow readers miss events instead of
// stalling the scan.
func (s *Scanner) Subscribe(buffer int) (<-chan ProgressEvent, func()) {
	return s.progress.subscribe(buffer)
}

// Privileged reports the result of the elevation probe in Initialize.
func (s *Scanner) Privileged() bool { return s.privileged.Load() }

// Modules lists the initialized module kinds in execution order.
func (s *Scanner) Modules() []ModuleKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ModuleKind, 0, len(s.modules))
	for _, m := range s.modules {
		out = append(out, m.Kind())
	}
	return out
}

// Results is the read-only snapshot of every finding so far.
func (s *Scanner) Results() []Finding { return s.store.Snapshot() }

func (s *Scanner) Indicators() []InjectionIndicator { return s.store.Indicators() }

func (s *Scanner) Skipped() []Skip { return s.store.Skipped() }

func (s *Scanner) Store() *FindingStore { return s.store }

// Errors returns module failures across all scans.
func (s *Scanner) Errors() []ModuleError {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ModuleError, len(s.errs))
	copy(out, s.errs)
	return out
}

// ClearResults empties the store and the error list. Rejected mid-scan.
func (s *Scanner) ClearResults() error {
	if s.scanning.Load() {
		return ErrScanInProgress
	}
	s.store.Reset()
	s.mu.Lock()
	s.errs = nil
	s.mu.Unlock()
	return nil
}
