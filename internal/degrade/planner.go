// Package degrade вычисляет degradationPath результата. Чистая функция: ни кэш,
// ни состояние координатора не трогает.
package degrade

import "github.com/xela07ax/capnego/internal/domain"

const approximateLocationDescription = "Location is available only at approximate accuracy"

var approximateLocationLimitations = []string{
	"position accurate to a few kilometres",
	"turn-by-turn and address-level features are unavailable",
}

// Plan возвращает стратегию деградации для невыданного результата.
// Для granted стратегии нет (ok=false). Для location limited+approximate стратегия
// синтезируется: это не полный отказ, и вызывающий код должен различать эти случаи.
func Plan(c domain.CapabilityType, r domain.CapabilityResult, fallback *domain.FallbackStrategy) (domain.FallbackStrategy, bool) {
	if r.Status == domain.StatusGranted {
		return domain.FallbackStrategy{}, false
	}
	if c.IsLocation() && r.Status == domain.StatusLimited && r.Accuracy == domain.AccuracyApproximate {
		fs := domain.FallbackStrategy{
			Mode:        domain.FallbackLimited,
			Description: approximateLocationDescription,
			Limitations: append([]string(nil), approximateLocationLimitations...),
		}
		if fallback != nil {
			fs.AlternativeApproach = fallback.AlternativeApproach
		}
		return fs, true
	}
	if fallback == nil {
		return domain.FallbackStrategy{}, false
	}
	return fallback.Clone(), true
}

// Attach - Plan, применённый к результату: возвращает копию с degradationPath и fallbackAvailable.
func Attach(c domain.CapabilityType, r domain.CapabilityResult, fallback *domain.FallbackStrategy) domain.CapabilityResult {
	out := r.Clone()
	fs, ok := Plan(c, r, fallback)
	if !ok {
		out.DegradationPath = nil
		out.FallbackAvailable = false
		return out
	}
	out.DegradationPath = &fs
	out.FallbackAvailable = fs.Mode != domain.FallbackDisabled
	return out
}
