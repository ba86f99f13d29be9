package logger

import (
	"io"
	"sync"
	"sync/atomic"
)

// asyncWriter antrian non-blocking di depan io.Writer. Write tidak pernah
// menunggu: kalau antrian penuh atau sudah ditutup, baris dibuang.
type asyncWriter struct {
	dst     io.Writer
	queue   chan []byte
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
	failed  atomic.Bool
}

func newAsyncWriter(dst io.Writer, size int) *asyncWriter {
	w := &asyncWriter{
		dst:   dst,
		queue: make(chan []byte, size),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *asyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return len(p), nil
	}
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case w.queue <- line:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for line := range w.queue {
		if w.failed.Load() {
			w.dropped.Add(1)
			continue
		}
		if _, err := w.dst.Write(line); err != nil {
			// tujuan rusak: sisa baris dibuang, scan jalan terus
			w.failed.Store(true)
			w.dropped.Add(1)
		}
	}
}

// Close drains the queue and waits for the background writer.
func (w *asyncWriter) Close() {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
		<-w.done
	})
}
