package journal

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// LogSink пишет каждое событие в структурированный лог.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.Named("negotiation")}
}

func (s *LogSink) WriteBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		s.logger.Info("capability negotiated",
			zap.String("id", e.ID),
			zap.String("request_id", e.RequestID),
			zap.String("capability", e.Capability),
			zap.String("operation", e.Operation),
			zap.String("status", e.Status),
			zap.String("source", e.Source),
			zap.String("error_tag", e.ErrorTag),
			zap.Int("attempt", e.Attempt),
			zap.String("profile", e.Profile),
			zap.Int64("duration_ms", e.DurationMs),
		)
	}
	return nil
}

// RingSink хранит последние N событий в памяти (для диагностики).
type RingSink struct {
	mu   sync.RWMutex
	buf  []Event
	next int
	full bool
}

func NewRingSink(size int) *RingSink {
	if size <= 0 {
		size = DefaultSettings().RingSize
	}
	return &RingSink{buf: make([]Event, size)}
}

func (r *RingSink) WriteBatch(_ context.Context, events []Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.buf[r.next] = e
		r.next = (r.next + 1) % len(r.buf)
		if r.next == 0 {
			r.full = true
		}
	}
	return nil
}

// Recent возвращает до n последних событий, старые первыми. n <= 0 - все.
func (r *RingSink) Recent(n int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if n <= 0 || n > size {
		n = size
	}
	out := make([]Event, 0, n)
	start := r.next - n
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < n; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}
