package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// Check - чтение статуса без диалога. Никогда не возвращает ошибку: при сбое - unknown из кэша.
// Повтор в пределах RecheckInterval отдаёт последний ответ, не доходя до ОС и single-flight.
func (c *Coordinator) Check(ctx context.Context, t domain.CapabilityType) domain.CapabilityResult {
	prof, _ := c.ensureInit(ctx)
	start := time.Now()
	c.metrics.RequestsTotal.WithLabelValues(string(t), opCheck).Inc()

	now := c.now()
	c.checkMu.Lock()
	if m, ok := c.lastChecks[t]; ok && now.Sub(m.at) < c.settings.RecheckInterval {
		c.checkMu.Unlock()
		c.metrics.CacheHits.WithLabelValues(string(t), opCheck).Inc()
		return m.result.WithSource(domain.SourceCache)
	}
	c.checkMu.Unlock()

	if r, ok := c.cache.Get(t); ok && r.Status == domain.StatusBlocked {
		c.metrics.CacheHits.WithLabelValues(string(t), opCheck).Inc()
		c.remember(t, now, r)
		c.record(opCheck, t, nil, r, start)
		return r
	}

	var r domain.CapabilityResult
	ch := c.flight.DoChan("check:"+string(t), func() (interface{}, error) {
		return c.readStatus(context.WithoutCancel(ctx), t), nil
	})
	timer := time.NewTimer(c.settings.CheckTimeout + budgetSlack)
	defer timer.Stop()
	select {
	case res := <-ch:
		r = res.Val.(domain.CapabilityResult).Clone()
	case <-timer.C:
		r = c.unknown(prof, domain.TagTimeout)
	case <-ctx.Done():
		r = c.unknown(prof, domain.Classify(ctx.Err()))
	}
	c.remember(t, now, r)
	c.record(opCheck, t, nil, r, start)
	return r
}

func (c *Coordinator) readStatus(ctx context.Context, t domain.CapabilityType) domain.CapabilityResult {
	prof, ad := c.ensureInit(ctx)
	if ad == nil {
		return c.unknown(prof, domain.TagPlatformUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, c.settings.CheckTimeout)
	defer cancel()

	c.metrics.PlatformCalls.WithLabelValues(string(t), opCheck).Inc()
	began := c.now()
	out, err := ad.Check(ctx, t, prof.VersionGate(), c.settings.CheckTimeout)
	if err != nil {
		tag := domain.Classify(err)
		c.logger.Warn("platform check failed",
			zap.String("capability", string(t)),
			zap.String("profile", prof.Tier()),
			zap.String("error_tag", string(tag)),
			zap.Error(err))
		return c.unknown(prof, tag)
	}

	r := c.fresh(prof, out, uuid.NewString())
	c.store(t, r, began)
	return r
}

// unknown - ответ Check при сбое: вызывающий код всегда может что-то отрисовать.
func (c *Coordinator) unknown(prof domain.DeviceProfile, tag domain.ErrorTag) domain.CapabilityResult {
	return domain.CapabilityResult{
		Status:      domain.StatusUnknown,
		CanAskAgain: true,
		Metadata: domain.Metadata{
			Source:     domain.SourceCache,
			Timestamp:  c.now(),
			DeviceTier: prof.Tier(),
			ErrorTag:   tag,
		},
	}
}

func (c *Coordinator) remember(t domain.CapabilityType, at time.Time, r domain.CapabilityResult) {
	c.checkMu.Lock()
	c.lastChecks[t] = checkMark{at: at, result: r.Clone()}
	c.checkMu.Unlock()
}
