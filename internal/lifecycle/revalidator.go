package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// DefaultRevalidateAfter - сколько приложение может пробыть в фоне без перепроверки.
const DefaultRevalidateAfter = 30 * time.Second

// Engine - то, что Revalidator дёргает у координатора. Сам координатор событий не слушает.
type Engine interface {
	Invalidate(t domain.CapabilityType)
	InvalidateAll()
	Check(ctx context.Context, t domain.CapabilityType) domain.CapabilityResult
}

// Revalidator - политика перепроверки на стороне вызывающего кода.
type Revalidator struct {
	engine Engine
	after  time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu           sync.Mutex
	backgroundAt time.Time
	watched      []domain.CapabilityType
}

type Option func(*Revalidator)

func WithClock(now func() time.Time) Option {
	return func(r *Revalidator) { r.now = now }
}

// WithWatched задаёт возможности, которые перепроверяются через Check сразу после сброса.
func WithWatched(types ...domain.CapabilityType) Option {
	return func(r *Revalidator) { r.watched = append(r.watched, types...) }
}

func NewRevalidator(engine Engine, after time.Duration, logger *zap.Logger, opts ...Option) *Revalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if after <= 0 {
		after = DefaultRevalidateAfter
	}
	r := &Revalidator{
		engine: engine,
		after:  after,
		now:    time.Now,
		logger: logger.Named("revalidator"),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Revalidator) OnBackground() {
	r.mu.Lock()
	r.backgroundAt = r.now()
	r.mu.Unlock()
}

// OnForeground сбрасывает кэш, если приложение пробыло в фоне дольше порога.
// Возвращает true, если перепроверка была.
func (r *Revalidator) OnForeground(ctx context.Context) bool {
	r.mu.Lock()
	since := r.backgroundAt
	r.backgroundAt = time.Time{}
	watched := append([]domain.CapabilityType(nil), r.watched...)
	r.mu.Unlock()

	// foreground без предшествующего background (холодный старт, потерянный сигнал) - ничего не делаем
	if since.IsZero() {
		return false
	}
	away := r.now().Sub(since)
	if away <= r.after {
		return false
	}

	r.engine.InvalidateAll()
	r.logger.Info("revalidating after background", zap.Duration("away", away))
	for _, t := range watched {
		res := r.engine.Check(ctx, t)
		r.logger.Debug("revalidated", zap.String("capability", string(t)), zap.String("status", string(res.Status)))
	}
	return true
}

// OnSettingsReturn - пользователь вернулся из системных настроек: blocked снова становится unknown.
func (r *Revalidator) OnSettingsReturn(ctx context.Context, t domain.CapabilityType) domain.CapabilityResult {
	r.engine.Invalidate(t)
	res := r.engine.Check(ctx, t)
	r.logger.Info("capability revalidated after settings",
		zap.String("capability", string(t)),
		zap.String("status", string(res.Status)))
	return res
}

// Resync - сигналы могли потеряться (переподключение к Redis), поэтому сбрасываем всё.
func (r *Revalidator) Resync() error {
	r.engine.InvalidateAll()
	return nil
}

// Handle применяет разобранный сигнал.
func (r *Revalidator) Handle(ctx context.Context, s Signal) {
	switch s.Kind {
	case SignalBackground:
		r.OnBackground()
	case SignalForeground:
		r.OnForeground(ctx)
	case SignalSettingsReturned:
		r.OnSettingsReturn(ctx, s.Capability)
	case SignalInvalidate:
		r.engine.Invalidate(s.Capability)
	case SignalInvalidateAll:
		r.engine.InvalidateAll()
	}
}
