package journal

/*
Журнал согласований: неблокирующая запись из горячего пути координатора,
пачки по таймеру или по размеру, финальная вычитка буфера при остановке.
Хранится только в памяти процесса (RingSink) и в логах (LogSink).
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sink - куда физически уходят события.
type Sink interface {
	WriteBatch(ctx context.Context, events []Event) error
}

// Recorder - то, что нужно координатору.
type Recorder interface {
	Log(event Event)
}

type Settings struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	RingSize      int           `mapstructure:"ring_size"`
}

func DefaultSettings() Settings {
	return Settings{
		BufferSize:    1024,
		BatchSize:     64,
		FlushInterval: 500 * time.Millisecond,
		RingSize:      256,
	}
}

type Journal struct {
	ch       chan Event
	sinks    []Sink
	settings Settings
	logger   *zap.Logger
	wg       sync.WaitGroup

	// mu защищает закрытие канала от конкурентного Log.
	mu      sync.RWMutex
	started bool
	closed  bool
}

func New(s Settings, logger *zap.Logger, sinks ...Sink) *Journal {
	def := DefaultSettings()
	if s.BufferSize <= 0 {
		s.BufferSize = def.BufferSize
	}
	if s.BatchSize <= 0 {
		s.BatchSize = def.BatchSize
	}
	if s.FlushInterval <= 0 {
		s.FlushInterval = def.FlushInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		ch:       make(chan Event, s.BufferSize),
		sinks:    sinks,
		settings: s,
		logger:   logger.Named("journal"),
	}
}

func (j *Journal) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started || j.closed {
		return
	}
	j.started = true
	j.wg.Add(1)
	go j.worker()
}

// Stop закрывает вход и ждёт, пока воркер допишет остатки.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch)
	started := j.started
	j.mu.Unlock()

	if !started {
		return
	}
	j.logger.Info("stopping journal: flushing buffer")
	j.wg.Wait()
	j.logger.Info("journal stopped")
}

// Log никогда не блокирует: при переполнении событие сбрасывается с записью в лог.
func (j *Journal) Log(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.logger.Warn("journal event dropped: journal is stopped", zap.String("id", event.ID))
		return
	}
	select {
	case j.ch <- event:
	default:
		j.logger.Error("journal_buffer_overflow",
			zap.String("capability", event.Capability),
			zap.String("request_id", event.RequestID))
	}
}

// Pending - заполненность буфера (backpressure).
func (j *Journal) Pending() int {
	return len(j.ch)
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]Event, 0, j.settings.BatchSize)
	ticker := time.NewTicker(j.settings.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, s := range j.sinks {
			if err := s.WriteBatch(context.Background(), batch); err != nil {
				j.logger.Error("journal flush failed", zap.Error(err))
			}
		}
		// Синки могли сохранить срез, поэтому новый буфер.
		batch = make([]Event, 0, j.settings.BatchSize)
	}

	for {
		select {
		case ev, ok := <-j.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= j.settings.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
