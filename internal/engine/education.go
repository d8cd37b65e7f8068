package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/capnego/internal/degrade"
	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// RequestWithEducation перед первым промптом отдаёт управление обучающему экрану.
// Если пользователь отказался, системный диалог не показывается: преждевременный
// промпт легко превращается в "больше не спрашивать".
func (c *Coordinator) RequestWithEducation(ctx context.Context, t domain.CapabilityType, rc domain.RequestContext, showEducation bool) (domain.CapabilityResult, error) {
	if err := rc.Validate(); err != nil {
		return domain.CapabilityResult{}, err
	}
	prof, _ := c.ensureInit(ctx)

	// В экстренном случае промпт не откладывается.
	if !showEducation || c.presenter == nil || rc.IsEmergency() {
		return c.request(ctx, opEducation, t, rc)
	}
	if prev, ok := c.cache.Get(t); ok {
		switch prev.Status {
		case domain.StatusGranted, domain.StatusDenied, domain.StatusBlocked:
			// Уже выдано или уже был отказ: обучение не показываем.
			return c.request(ctx, opEducation, t, rc)
		}
	}

	start := time.Now()
	ectx, cancel := context.WithTimeout(ctx, c.settings.EducationTimeout)
	proceed, err := c.presenter.Present(ectx, t, rc.EducationalContent)
	cancel()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.CapabilityResult{}, ctxErr
	}
	if err != nil {
		// Сбой презентера трактуем как отказ: без обучения промпт не показываем.
		c.logger.Warn("education presenter failed",
			zap.String("capability", string(t)),
			zap.String("profile", prof.Tier()),
			zap.Error(err))
		proceed = false
	}
	if proceed {
		return c.request(ctx, opEducation, t, rc)
	}

	c.metrics.RequestsTotal.WithLabelValues(string(t), opEducation).Inc()
	r := domain.CapabilityResult{
		Status:      domain.StatusDenied,
		CanAskAgain: true,
		Metadata: domain.Metadata{
			Source:     domain.SourceFallback,
			Timestamp:  c.now(),
			DeviceTier: prof.Tier(),
			RequestID:  uuid.NewString(),
			ErrorTag:   domain.TagEducationDeclined,
		},
	}
	r = degrade.Attach(t, r, rc.FallbackStrategy)
	c.record(opEducation, t, &rc, r, start)
	return r, nil
}
