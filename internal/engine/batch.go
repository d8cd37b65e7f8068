package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RequestMultiple выдаёт каждую возможность через Request. Порядок и параллельность
// задаёт профиль: на прошивках, ломающих наложенные диалоги, строго по одному с паузой.
func (c *Coordinator) RequestMultiple(ctx context.Context, types []domain.CapabilityType, contexts map[domain.CapabilityType]domain.RequestContext) (map[domain.CapabilityType]domain.CapabilityResult, error) {
	unique := make([]domain.CapabilityType, 0, len(types))
	seen := make(map[domain.CapabilityType]struct{}, len(types))
	for _, t := range types {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		rc, ok := contexts[t]
		if !ok {
			return nil, fmt.Errorf("%w: no request context for %s", domain.ErrInvalidContext, t)
		}
		if err := rc.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
		unique = append(unique, t)
	}

	prof, _ := c.ensureInit(ctx)
	if prof.BatchStrategy == domain.BatchSequential {
		return c.requestSequential(ctx, prof, unique, contexts)
	}
	return c.requestParallel(ctx, unique, contexts)
}

func (c *Coordinator) requestSequential(ctx context.Context, prof domain.DeviceProfile, types []domain.CapabilityType, contexts map[domain.CapabilityType]domain.RequestContext) (map[domain.CapabilityType]domain.CapabilityResult, error) {
	gap := prof.InterRequestDelay
	if gap < c.settings.BatchGap {
		gap = c.settings.BatchGap
	}

	out := make(map[domain.CapabilityType]domain.CapabilityResult, len(types))
	promptShown := false
	for _, t := range types {
		// Пауза нужна только после реального диалога; ответ из кэша экрана не трогал.
		if promptShown {
			if err := sleepCtx(ctx, gap); err != nil {
				return nil, err
			}
		}
		r, err := c.request(ctx, opBatch, t, contexts[t])
		if err != nil {
			return nil, err
		}
		out[t] = r
		promptShown = r.Metadata.Source != domain.SourceCache
	}
	c.logger.Debug("sequential batch done", zap.Int("items", len(types)), zap.Duration("gap", gap))
	return out, nil
}

func (c *Coordinator) requestParallel(ctx context.Context, types []domain.CapabilityType, contexts map[domain.CapabilityType]domain.RequestContext) (map[domain.CapabilityType]domain.CapabilityResult, error) {
	var mu sync.Mutex
	out := make(map[domain.CapabilityType]domain.CapabilityResult, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range types {
		g.Go(func() error {
			r, err := c.request(gctx, opBatch, t, contexts[t])
			if err != nil {
				return err
			}
			mu.Lock()
			out[t] = r
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
