package engine

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// errSoftDenial - внутренний сигнал повтора: отказ, после которого ОС позволит спросить снова
// (в том числе синтезированный после таймаута или временного сбоя).
var errSoftDenial = errors.New("soft denial")

// RequestWithProgressiveFallback повторяет Request до maxAttempts раз, пока результат -
// мягкий отказ. blocked, окончательный denied, limited и granted возвращаются сразу.
func (c *Coordinator) RequestWithProgressiveFallback(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext, maxAttempts int) (domain.CapabilityResult, error) {
	if err := rc.Validate(); err != nil {
		return domain.CapabilityResult{}, err
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	prof, _ := c.ensureInit(ctx)

	var (
		last    domain.CapabilityResult
		got     bool
		attempt int
	)
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(maxAttempts)),
		// Фиксированная пауза между попытками, без горячего цикла.
		retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
			return c.settings.RetryDelay
		}),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, errSoftDenial)
		}),
	)

	err := r.Do(func() error {
		attempt++
		if attempt > 1 {
			c.logger.Info("soft denial, retrying",
				zap.String("capability", string(t)),
				zap.String("profile", prof.Tier()),
				zap.Int("attempt", attempt),
				zap.String("error_tag", string(last.Metadata.ErrorTag)))
		}
		res, err := c.request(ctx, opProgressive, t, rc)
		if err != nil {
			return err
		}
		last = res.WithRetryCount(attempt - 1)
		got = true
		if last.IsSoftDenial() {
			return errSoftDenial
		}
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.CapabilityResult{}, ctxErr
	}
	if !got {
		return domain.CapabilityResult{}, err
	}
	return last, nil
}
