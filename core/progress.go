package core

import (
	"math"
	"sync"
	"sync/atomic"
)

// ProgressEvent is published after each module finishes and once at the end
// of a scan (Done=true).
type ProgressEvent struct {
	Percent   float64 `json:"percent"`
	Module    string  `json:"module"`
	Status    string  `json:"status,omitempty"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Done      bool    `json:"done"`
}

// progressTracker is readable from any goroutine without locks; only the
// subscriber list is mutex-guarded.
type progressTracker struct {
	total       atomic.Int32
	completed   atomic.Int32
	percentBits atomic.Uint64
	current     atomic.Value // string

	mu   sync.Mutex
	subs map[chan ProgressEvent]struct{}
}

func newProgressTracker() *progressTracker {
	p := &progressTracker{subs: map[chan ProgressEvent]struct{}{}}
	p.current.Store("")
	return p
}

func (p *progressTracker) reset(total int) {
	p.total.Store(int32(total))
	p.completed.Store(0)
	p.percentBits.Store(math.Float64bits(0))
	p.current.Store("")
}

func (p *progressTracker) start(module string) {
	p.current.Store(module)
}

// complete records completed/total*100 and publishes it.
func (p *progressTracker) complete(module, status string) {
	done := p.completed.Add(1)
	total := p.total.Load()
	pct := 100.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}
	p.percentBits.Store(math.Float64bits(pct))
	p.publish(ProgressEvent{
		Percent:   pct,
		Module:    module,
		Status:    status,
		Completed: int(done),
		Total:     int(total),
	})
}

func (p *progressTracker) finish() {
	p.current.Store("")
	p.publish(ProgressEvent{
		Percent:   p.percent(),
		Completed: int(p.completed.Load()),
		Total:     int(p.total.Load()),
		Done:      true,
	})
}

func (p *progressTracker) percent() float64 {
	return math.Float64frombits(p.percentBits.Load())
}

func (p *progressTracker) module() string {
	s, _ := p.current.Load().(string)
	return s
}

// publish never blocks: a subscriber that does not keep up loses events.
func (p *progressTracker) publish(ev ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for ch := range p.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (p *progressTracker) subscribe(buffer int) (<-chan ProgressEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan ProgressEvent, buffer)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
			close(ch)
		})
	}
}
