package profiler

import (
	"strings"
	"time"

	"github.com/xela07ax/capnego/internal/domain"
)

// Rule - одно правило таблицы производителей. Правила проверяются по порядку, первое совпадение побеждает.
// Поля с тегами mapstructure позволяют дополнять таблицу из конфига.
type Rule struct {
	Name              string                  `mapstructure:"name"`
	Manufacturers     []string                `mapstructure:"manufacturers"`
	ModelContains     []string                `mapstructure:"model_contains"`
	Timeout           time.Duration           `mapstructure:"timeout"`
	Batch             domain.BatchStrategy    `mapstructure:"batch"`
	InterRequestDelay time.Duration           `mapstructure:"inter_request_delay"`
	PreRequestDelay   time.Duration           `mapstructure:"pre_request_delay"`
	Workarounds       []domain.WorkaroundFlag `mapstructure:"workarounds"`
	Rationale         string                  `mapstructure:"rationale"`
}

// Matches сравнивает производителя без учёта регистра; ModelContains сужает совпадение по подстроке модели.
func (r Rule) Matches(info domain.DeviceInfo) bool {
	manufacturer := normalize(info.Manufacturer)
	found := false
	for _, m := range r.Manufacturers {
		if normalize(m) == manufacturer {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if len(r.ModelContains) == 0 {
		return true
	}
	model := normalize(info.Model)
	for _, sub := range r.ModelContains {
		if strings.Contains(model, normalize(sub)) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// DefaultRule - консервативный профиль на случай, если ничего не совпало.
var DefaultRule = Rule{
	Name:    "default",
	Timeout: 20 * time.Second,
	Batch:   domain.BatchParallel,
}

// DefaultRules - встроенная таблица. Прошивки, которые криво рисуют наложенные диалоги,
// получают последовательную выдачу с паузой между запросами.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:              "samsung-foldable",
			Manufacturers:     []string{"samsung"},
			ModelContains:     []string{"SM-F", "fold", "flip"},
			Timeout:           30 * time.Second,
			Batch:             domain.BatchSequential,
			InterRequestDelay: 700 * time.Millisecond,
			PreRequestDelay:   300 * time.Millisecond,
			Workarounds: []domain.WorkaroundFlag{
				domain.WorkaroundPreRequestDelay,
				domain.WorkaroundRetryOnTransient,
				domain.WorkaroundSequentialDialogs,
			},
		},
		{
			Name:              "samsung",
			Manufacturers:     []string{"samsung"},
			Timeout:           25 * time.Second,
			Batch:             domain.BatchSequential,
			InterRequestDelay: 500 * time.Millisecond,
			PreRequestDelay:   200 * time.Millisecond,
			Workarounds: []domain.WorkaroundFlag{
				domain.WorkaroundPreRequestDelay,
				domain.WorkaroundRetryOnTransient,
				domain.WorkaroundSequentialDialogs,
			},
		},
		{
			Name:              "xiaomi-miui",
			Manufacturers:     []string{"xiaomi", "redmi", "poco"},
			Timeout:           30 * time.Second,
			Batch:             domain.BatchSequential,
			InterRequestDelay: 800 * time.Millisecond,
			PreRequestDelay:   400 * time.Millisecond,
			Workarounds: []domain.WorkaroundFlag{
				domain.WorkaroundPreRequestDelay,
				domain.WorkaroundRetryOnTransient,
				domain.WorkaroundExtendedRationale,
				domain.WorkaroundVerifyAfterGrant,
				domain.WorkaroundThrottlePrompts,
			},
			Rationale: "MIUI may show an extra security confirmation after the system dialog. Please allow access in both.",
		},
		{
			Name:              "huawei-emui",
			Manufacturers:     []string{"huawei", "honor"},
			Timeout:           30 * time.Second,
			Batch:             domain.BatchSequential,
			InterRequestDelay: 600 * time.Millisecond,
			Workarounds: []domain.WorkaroundFlag{
				domain.WorkaroundRetryOnTransient,
				domain.WorkaroundExtendedRationale,
				domain.WorkaroundVerifyAfterGrant,
			},
			Rationale: "EMUI can hide permission dialogs behind the app. If nothing appears, check the notification shade.",
		},
		{
			Name:              "bbk-coloros",
			Manufacturers:     []string{"oppo", "realme", "oneplus", "vivo"},
			Timeout:           25 * time.Second,
			Batch:             domain.BatchSequential,
			InterRequestDelay: 500 * time.Millisecond,
			PreRequestDelay:   250 * time.Millisecond,
			Workarounds: []domain.WorkaroundFlag{
				domain.WorkaroundPreRequestDelay,
				domain.WorkaroundSequentialDialogs,
			},
		},
		{
			Name:          "google-pixel",
			Manufacturers: []string{"google"},
			Timeout:       15 * time.Second,
			Batch:         domain.BatchParallel,
		},
		{
			Name:          "apple",
			Manufacturers: []string{"apple"},
			Timeout:       15 * time.Second,
			Batch:         domain.BatchParallel,
		},
	}
}
