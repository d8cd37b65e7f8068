package profiler

import (
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

const (
	minGamingTimeout = 8 * time.Second
	emulatorTimeout  = 10 * time.Second
)

// Док-режим получает x1.5 к таймауту, игровой x0.6 (но не меньше minGamingTimeout).
var (
	desktopHints = []string{"dex", "desktop", "docking"}
	gamingHints  = []string{"rog", "redmagic", "red magic", "black shark", "legion", "gaming"}
)

// Profiler выводит DeviceProfile из статичных данных устройства. Собственного обращения к ОС нет.
type Profiler struct {
	rules  []Rule
	logger *zap.Logger
}

// New принимает дополнительные правила (из конфига), они проверяются раньше встроенных.
func New(extra []Rule, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	rules := make([]Rule, 0, len(extra)+len(DefaultRules()))
	rules = append(rules, extra...)
	rules = append(rules, DefaultRules()...)
	return &Profiler{rules: rules, logger: logger.Named("profiler")}
}

// Profile - чистая функция от DeviceInfo.
func (p *Profiler) Profile(info domain.DeviceInfo) domain.DeviceProfile {
	rule := DefaultRule
	for _, r := range p.rules {
		if r.Matches(info) {
			rule = r
			break
		}
	}

	prof := domain.DeviceProfile{
		Manufacturer:      info.Manufacturer,
		Model:             info.Model,
		OSFamily:          info.OSFamily,
		OSVersion:         info.OSVersion,
		OSMajor:           majorVersion(info.OSVersion),
		APILevel:          info.APILevel,
		Timeout:           rule.Timeout,
		BatchStrategy:     rule.Batch,
		InterRequestDelay: rule.InterRequestDelay,
		PreRequestDelay:   rule.PreRequestDelay,
		Workarounds:       make(map[domain.WorkaroundFlag]struct{}, len(rule.Workarounds)),
		Rationale:         rule.Rationale,
		Mode:              domain.ModeStandard,
		Rule:              rule.Name,
	}
	for _, w := range rule.Workarounds {
		prof.Workarounds[w] = struct{}{}
	}
	if prof.Timeout <= 0 {
		prof.Timeout = DefaultRule.Timeout
	}
	if prof.BatchStrategy == "" {
		prof.BatchStrategy = domain.BatchParallel
	}
	if prof.OSFamily == domain.OSAndroid && prof.APILevel == 0 {
		prof.APILevel = apiLevelFor(prof.OSMajor)
	}

	switch {
	case info.IsEmulator:
		prof.Mode = domain.ModeEmulator
		prof.Timeout = emulatorTimeout
		prof.BatchStrategy = domain.BatchParallel
		prof.InterRequestDelay = 0
		prof.PreRequestDelay = 0
		prof.Workarounds = map[domain.WorkaroundFlag]struct{}{}
	case hasHint(info.Model, desktopHints):
		prof.Mode = domain.ModeDesktopDocking
		prof.Timeout = prof.Timeout * 3 / 2
	case hasHint(info.Model, gamingHints):
		prof.Mode = domain.ModeGaming
		prof.Timeout = prof.Timeout * 3 / 5
		if prof.Timeout < minGamingTimeout {
			prof.Timeout = minGamingTimeout
		}
	}

	p.logger.Info("device profile derived",
		zap.String("rule", prof.Rule),
		zap.String("manufacturer", prof.Manufacturer),
		zap.String("model", prof.Model),
		zap.String("os", string(prof.OSFamily)+" "+prof.OSVersion),
		zap.Int("version_gate", prof.VersionGate()),
		zap.Duration("timeout", prof.Timeout),
		zap.String("batch", string(prof.BatchStrategy)),
		zap.String("mode", string(prof.Mode)),
		zap.Strings("workarounds", prof.WorkaroundList()),
	)
	return prof
}

// Options переводит профиль в параметры конкретного обращения к ОС.
func Options(prof domain.DeviceProfile, c domain.CapabilityType, rc domain.RequestContext) domain.RequestOptions {
	opts := domain.RequestOptions{
		Timeout:           prof.Timeout,
		InterRequestDelay: prof.InterRequestDelay,
		Sequential:        prof.BatchStrategy == domain.BatchSequential || prof.Has(domain.WorkaroundSequentialDialogs),
		RetryTransient:    prof.Has(domain.WorkaroundRetryOnTransient),
		VerifyAfterGrant:  prof.Has(domain.WorkaroundVerifyAfterGrant),
		ThrottlePrompts:   prof.Has(domain.WorkaroundThrottlePrompts),
		RequirePrecise:    c.RequiresPrecision(),
	}
	if prof.Has(domain.WorkaroundPreRequestDelay) && !rc.IsEmergency() {
		opts.PreRequestDelay = prof.PreRequestDelay
	}
	switch {
	case prof.Has(domain.WorkaroundExtendedRationale) && prof.Rationale != "":
		opts.Rationale = prof.Rationale
	case rc.EducationalContent != nil:
		opts.Rationale = rc.EducationalContent.Description
	}
	return opts
}

// hasHint ищет подсказку целыми словами модели: "rog" совпадает с "ROG Phone", но не с "Progress".
func hasHint(model string, hints []string) bool {
	words := modelWords(model)
	for _, h := range hints {
		if containsRun(words, modelWords(h)) {
			return true
		}
	}
	return false
}

func modelWords(s string) []string {
	return strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// containsRun - run встречается в words подряд.
func containsRun(words, run []string) bool {
	if len(run) == 0 {
		return false
	}
	for i := 0; i+len(run) <= len(words); i++ {
		if slices.Equal(words[i:i+len(run)], run) {
			return true
		}
	}
	return false
}

// majorVersion: "14.2.1" -> 14, мусор -> 0.
func majorVersion(v string) int {
	head, _, _ := strings.Cut(strings.TrimSpace(v), ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0
	}
	return n
}

// apiLevelFor - если провайдер не сообщил API level, восстанавливаем по версии Android.
func apiLevelFor(androidMajor int) int {
	switch {
	case androidMajor <= 0:
		return 0
	case androidMajor < 6:
		return 21
	case androidMajor == 6:
		return 23
	case androidMajor == 7:
		return 24
	case androidMajor == 8:
		return 26
	case androidMajor == 9:
		return 28
	case androidMajor == 10:
		return 29
	case androidMajor == 11:
		return 30
	case androidMajor == 12:
		return 31
	case androidMajor == 13:
		return 33
	case androidMajor == 14:
		return 34
	default:
		return 35
	}
}
