package domain

import "time"

// CapabilityStatus - итоговое состояние возможности для вызывающего кода.
type CapabilityStatus string

const (
	StatusUnknown CapabilityStatus = "unknown"
	StatusGranted CapabilityStatus = "granted"
	StatusDenied  CapabilityStatus = "denied"
	// StatusBlocked терминален без выхода из приложения: пользователя нужно вести в настройки ОС.
	StatusBlocked CapabilityStatus = "blocked"
	// StatusLimited - частичная выдача (coarse-only, одна из двух частей композита).
	StatusLimited CapabilityStatus = "limited"
)

type Accuracy string

const (
	AccuracyPrecise     Accuracy = "precise"
	AccuracyApproximate Accuracy = "approximate"
)

// Source - откуда взят ответ.
type Source string

const (
	SourceCache    Source = "cache"
	SourceFresh    Source = "fresh"
	SourceFallback Source = "fallback" // синтезирован движком: таймаут, сбой ОС и т.п.
)

type Metadata struct {
	Source     Source    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
	DeviceTier string    `json:"device_tier,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	ErrorTag   ErrorTag  `json:"error_tag,omitempty"`
}

// CapabilityResult - единственное значение, которое получает вызывающий код.
// После создания не меняется: методы With* возвращают копию.
type CapabilityResult struct {
	Status            CapabilityStatus                    `json:"status"`
	CanAskAgain       bool                                `json:"can_ask_again"`
	FallbackAvailable bool                                `json:"fallback_available"`
	Accuracy          Accuracy                            `json:"accuracy,omitempty"`
	DegradationPath   *FallbackStrategy                   `json:"degradation_path,omitempty"`
	BatchResults      map[CapabilityType]CapabilityStatus `json:"batch_results,omitempty"`
	Metadata          Metadata                            `json:"metadata"`
}

// Clone делает глубокую копию (map и указатель на стратегию).
func (r CapabilityResult) Clone() CapabilityResult {
	out := r
	if r.BatchResults != nil {
		out.BatchResults = make(map[CapabilityType]CapabilityStatus, len(r.BatchResults))
		for k, v := range r.BatchResults {
			out.BatchResults[k] = v
		}
	}
	if r.DegradationPath != nil {
		fs := r.DegradationPath.Clone()
		out.DegradationPath = &fs
	}
	return out
}

// WithSource возвращает копию с другим источником.
func (r CapabilityResult) WithSource(src Source) CapabilityResult {
	out := r.Clone()
	out.Metadata.Source = src
	return out
}

// WithRetryCount возвращает копию с номером попытки.
func (r CapabilityResult) WithRetryCount(n int) CapabilityResult {
	out := r.Clone()
	out.Metadata.RetryCount = n
	return out
}

func (r CapabilityResult) IsGranted() bool {
	return r.Status == StatusGranted
}

// IsSoftDenial - отказ, после которого ОС ещё позволит спросить снова.
func (r CapabilityResult) IsSoftDenial() bool {
	return r.Status == StatusDenied && r.CanAskAgain
}
