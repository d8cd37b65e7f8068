package domain

import (
	"sort"
	"time"
)

type OSFamily string

const (
	OSAndroid OSFamily = "android"
	OSIOS     OSFamily = "ios"
)

// DeviceInfo - статичные данные от внешнего провайдера, запрашиваются один раз при Initialize.
type DeviceInfo struct {
	Manufacturer string   `json:"manufacturer" mapstructure:"manufacturer"`
	Model        string   `json:"model" mapstructure:"model"`
	OSFamily     OSFamily `json:"os_family" mapstructure:"os_family"`
	OSVersion    string   `json:"os_version" mapstructure:"os_version"`
	APILevel     int      `json:"api_level,omitempty" mapstructure:"api_level"`
	IsEmulator   bool     `json:"is_emulator" mapstructure:"emulator"`
}

type BatchStrategy string

const (
	BatchSequential BatchStrategy = "sequential"
	BatchParallel   BatchStrategy = "parallel"
)

// WorkaroundFlag - именованный обход особенностей прошивки производителя.
type WorkaroundFlag string

const (
	WorkaroundPreRequestDelay   WorkaroundFlag = "pre-request-delay"
	WorkaroundRetryOnTransient  WorkaroundFlag = "retry-on-transient"
	WorkaroundExtendedRationale WorkaroundFlag = "extended-rationale"
	WorkaroundThrottlePrompts   WorkaroundFlag = "throttle-prompts"
	WorkaroundVerifyAfterGrant  WorkaroundFlag = "verify-after-grant"
	WorkaroundSequentialDialogs WorkaroundFlag = "sequential-dialogs"
)

type DeviceMode string

const (
	ModeStandard       DeviceMode = "standard"
	ModeDesktopDocking DeviceMode = "desktop-docking"
	ModeGaming         DeviceMode = "gaming"
	ModeEmulator       DeviceMode = "emulator"
)

// DeviceProfile неизменяем после создания; пересчитывается только при новом Initialize.
type DeviceProfile struct {
	Manufacturer      string                      `json:"manufacturer"`
	Model             string                      `json:"model"`
	OSFamily          OSFamily                    `json:"os_family"`
	OSVersion         string                      `json:"os_version"`
	OSMajor           int                         `json:"os_major"`
	APILevel          int                         `json:"api_level,omitempty"`
	Timeout           time.Duration               `json:"timeout"`
	BatchStrategy     BatchStrategy               `json:"batch_strategy"`
	InterRequestDelay time.Duration               `json:"inter_request_delay"`
	PreRequestDelay   time.Duration               `json:"pre_request_delay"`
	Workarounds       map[WorkaroundFlag]struct{} `json:"-"`
	Rationale         string                      `json:"rationale,omitempty"`
	Mode              DeviceMode                  `json:"mode"`
	Rule              string                      `json:"rule"`
}

func (p DeviceProfile) Has(flag WorkaroundFlag) bool {
	_, ok := p.Workarounds[flag]
	return ok
}

// WorkaroundList - отсортированный список флагов (для логов и JSON).
func (p DeviceProfile) WorkaroundList() []string {
	out := make([]string, 0, len(p.Workarounds))
	for f := range p.Workarounds {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// Tier попадает в metadata.deviceTier результата.
func (p DeviceProfile) Tier() string {
	if p.Mode != "" && p.Mode != ModeStandard {
		return p.Rule + "/" + string(p.Mode)
	}
	return p.Rule
}

// VersionGate - версия, по которой адаптер выбирает набор примитивов:
// API level для Android, мажорная версия для iOS.
func (p DeviceProfile) VersionGate() int {
	if p.OSFamily == OSAndroid && p.APILevel > 0 {
		return p.APILevel
	}
	return p.OSMajor
}

// RequestOptions - параметры конкретного обращения к ОС, выводятся из профиля и контекста.
type RequestOptions struct {
	Timeout           time.Duration
	PreRequestDelay   time.Duration
	InterRequestDelay time.Duration
	Rationale         string
	Sequential        bool
	RetryTransient    bool
	VerifyAfterGrant  bool
	ThrottlePrompts   bool
	RequirePrecise    bool
}
