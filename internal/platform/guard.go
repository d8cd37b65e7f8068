package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// GuardSettings - параметры предохранителя вокруг нативного слоя.
type GuardSettings struct {
	Name                string        `mapstructure:"name"`
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	OpenTimeout         time.Duration `mapstructure:"open_timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
	// PromptGap - минимальный интервал между системными диалогами при флаге throttle-prompts.
	PromptGap time.Duration `mapstructure:"prompt_gap"`
}

func DefaultGuardSettings() GuardSettings {
	return GuardSettings{
		Name:                "platform-bridge",
		MaxRequests:         1,
		Interval:            30 * time.Second,
		OpenTimeout:         10 * time.Second,
		ConsecutiveFailures: 3,
		PromptGap:           time.Second,
	}
}

// GuardedBridge оборачивает Bridge предохранителем и ограничителем частоты промптов.
// Отказ пользователя ошибкой не считается: предохранитель реагирует только на сбои самой ОС.
type GuardedBridge struct {
	next    Bridge
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGuardedBridge. onState вызывается при смене состояния предохранителя (метрики), может быть nil.
func NewGuardedBridge(next Bridge, s GuardSettings, logger *zap.Logger, onState func(name string, open bool)) *GuardedBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultGuardSettings()
	if s.Name == "" {
		s.Name = def.Name
	}
	if s.ConsecutiveFailures == 0 {
		s.ConsecutiveFailures = def.ConsecutiveFailures
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = def.OpenTimeout
	}
	if s.PromptGap <= 0 {
		s.PromptGap = def.PromptGap
	}
	logger = logger.Named("guard")

	threshold := s.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// Отмена вызывающим и неотвеченный диалог - не сбой ОС.
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, domain.ErrTimeout)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("bridge breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
			if onState != nil {
				onState(name, to == gobreaker.StateOpen)
			}
		},
	})

	return &GuardedBridge{
		next:    next,
		cb:      cb,
		limiter: rate.NewLimiter(rate.Every(s.PromptGap), 1),
		logger:  logger,
	}
}

func (g *GuardedBridge) Check(ctx context.Context, p Primitive) (PermissionState, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Check(ctx, p)
	})
	if err != nil {
		return StateNotDetermined, g.mapBreakerErr(string(p), err)
	}
	return res.(PermissionState), nil
}

func (g *GuardedBridge) Request(ctx context.Context, ps []Primitive, opts PromptOptions) (map[Primitive]PermissionState, error) {
	if opts.Throttle {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("prompt throttle: %w", err)
		}
	}
	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Request(ctx, ps, opts)
	})
	if err != nil {
		return nil, g.mapBreakerErr(joinPrimitives(ps), err)
	}
	return res.(map[Primitive]PermissionState), nil
}

// State - текущее состояние предохранителя (для /health).
func (g *GuardedBridge) State() string {
	return g.cb.State().String()
}

// Открытый предохранитель для движка выглядит как временный сбой ОС.
func (g *GuardedBridge) mapBreakerErr(prim string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.TransientPlatformError{Primitive: prim, Cause: err}
	}
	return err
}

// OpenSettings пробрасывается, если нижний мост умеет открывать настройки.
func (g *GuardedBridge) OpenSettings(ctx context.Context) error {
	if l, ok := g.next.(interface{ OpenSettings(context.Context) error }); ok {
		return l.OpenSettings(ctx)
	}
	return domain.ErrPlatformUnavailable
}
