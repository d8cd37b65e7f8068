package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/capnego/internal/degrade"
	"github.com/xela07ax/capnego/internal/domain"
	"github.com/xela07ax/capnego/internal/platform"
	"github.com/xela07ax/capnego/internal/profiler"
	"go.uber.org/zap"
)

// budgetSlack - запас сверх бюджета адаптера на сведение результата и запись в кэш.
const budgetSlack = 250 * time.Millisecond

// Request может показать системный диалог. Ошибкой возвращается только невалидный
// контекст или отмена ctx вызывающим; всё остальное - CapabilityResult.
func (c *Coordinator) Request(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext) (domain.CapabilityResult, error) {
	if err := rc.Validate(); err != nil {
		return domain.CapabilityResult{}, err
	}
	return c.request(ctx, opRequest, t, rc)
}

func (c *Coordinator) request(ctx context.Context, op string, t domain.CapabilityType, rc domain.RequestContext) (domain.CapabilityResult, error) {
	prof, ad := c.ensureInit(ctx)
	start := time.Now()
	c.metrics.RequestsTotal.WithLabelValues(string(t), op).Inc()

	// granted отдаём сразу; blocked тоже - повторный промпт ОС всё равно не покажет.
	if r, ok := c.settled(t); ok {
		c.metrics.CacheHits.WithLabelValues(string(t), op).Inc()
		r = degrade.Attach(t, r, rc.FallbackStrategy)
		c.record(op, t, &rc, r, start)
		return r, nil
	}

	// Ожидание общего результата; сам вызов ОС не привязан к ctx первого вызывающего.
	ch := c.flight.DoChan("request:"+string(t), func() (interface{}, error) {
		return c.negotiate(context.WithoutCancel(ctx), t, rc), nil
	})
	_, budget := c.budget(prof, ad, t, rc)
	timer := time.NewTimer(budget + 2*budgetSlack)
	defer timer.Stop()
	select {
	case res := <-ch:
		r := res.Val.(domain.CapabilityResult).Clone()
		c.record(op, t, &rc, r, start)
		return r, nil
	case <-timer.C:
		// Вызов ОС не уложился даже в собственный таймаут: ответ синтезируется, в кэш не идёт.
		r := c.synthesize(prof, domain.ErrTimeout, uuid.NewString())
		c.metrics.TimeoutsTotal.WithLabelValues(string(t)).Inc()
		c.logger.Warn("negotiation overran its budget",
			zap.String("capability", string(t)),
			zap.String("profile", prof.Tier()),
			zap.Duration("budget", budget))
		r = degrade.Attach(t, r, rc.FallbackStrategy)
		c.record(op, t, &rc, r, start)
		return r, nil
	case <-ctx.Done():
		return domain.CapabilityResult{}, ctx.Err()
	}
}

// settled - закэшированный окончательный ответ (granted или blocked), если он есть.
func (c *Coordinator) settled(t domain.CapabilityType) (domain.CapabilityResult, bool) {
	r, ok := c.cache.Get(t)
	if !ok || (r.Status != domain.StatusGranted && r.Status != domain.StatusBlocked) {
		return domain.CapabilityResult{}, false
	}
	return r, true
}

// budget - опции запроса для профиля и время, которое адаптер может на него потратить.
func (c *Coordinator) budget(prof domain.DeviceProfile, ad platform.Adapter, t domain.CapabilityType, rc domain.RequestContext) (domain.RequestOptions, time.Duration) {
	opts := profiler.Options(prof, t, rc)
	if ad == nil {
		return opts, 0
	}
	return opts, ad.Budget(t, prof.VersionGate(), opts)
}

// negotiate выполняется ровно один раз на группу одновременных вызывающих.
func (c *Coordinator) negotiate(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext) domain.CapabilityResult {
	prof, ad := c.ensureInit(ctx)

	// Пока ключ single-flight был свободен, предыдущий вызов мог успеть записать ответ.
	if r, ok := c.settled(t); ok {
		return degrade.Attach(t, r, rc.FallbackStrategy)
	}

	requestID := uuid.NewString()
	log := c.logger.With(
		zap.String("capability", string(t)),
		zap.String("profile", prof.Tier()),
		zap.String("request_id", requestID))

	if ad == nil {
		r := c.synthesize(prof, domain.ErrPlatformUnavailable, requestID)
		return degrade.Attach(t, r, rc.FallbackStrategy)
	}

	opts, budget := c.budget(prof, ad, t, rc)
	version := prof.VersionGate()
	ctx, cancel := context.WithTimeout(ctx, budget+budgetSlack)
	defer cancel()

	c.metrics.InFlight.Inc()
	defer c.metrics.InFlight.Dec()
	c.metrics.PlatformCalls.WithLabelValues(string(t), opRequest).Inc()

	began := c.now()
	out, err := ad.Request(ctx, t, version, opts)
	var r domain.CapabilityResult
	if err != nil {
		r = c.synthesize(prof, err, requestID)
		if r.Metadata.ErrorTag == domain.TagTimeout {
			c.metrics.TimeoutsTotal.WithLabelValues(string(t)).Inc()
		}
		// Синтезированный результат не кэшируется: это не ответ ОС.
		log.Warn("platform request absorbed",
			zap.String("error_tag", string(r.Metadata.ErrorTag)),
			zap.Int("attempt", 1),
			zap.Duration("budget", budget),
			zap.Error(err))
	} else {
		r = c.fresh(prof, out, requestID)
		c.store(t, r, began)
		log.Debug("platform request resolved", zap.String("status", string(r.Status)))
	}

	c.checkMu.Lock()
	delete(c.lastChecks, t)
	c.checkMu.Unlock()

	return degrade.Attach(t, r, rc.FallbackStrategy)
}
