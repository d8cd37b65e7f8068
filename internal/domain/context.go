package domain

import "fmt"

type Priority string

const (
	PriorityLow       Priority = "low"
	PriorityImportant Priority = "important"
	PriorityCritical  Priority = "critical"
)

// FallbackMode - в какой режим переходит вызывающий код при отказе.
type FallbackMode string

const (
	FallbackAlternative FallbackMode = "alternative"
	FallbackLimited     FallbackMode = "limited"
	FallbackDisabled    FallbackMode = "disabled"
)

// FallbackStrategy - контракт, который вызывающий код обязуется выполнить, если доступ не выдан.
type FallbackStrategy struct {
	Mode                FallbackMode `json:"mode"`
	Description         string       `json:"description"`
	Limitations         []string     `json:"limitations,omitempty"`
	AlternativeApproach string       `json:"alternative_approach,omitempty"`
}

func (f FallbackStrategy) Clone() FallbackStrategy {
	out := f
	if f.Limitations != nil {
		out.Limitations = append([]string(nil), f.Limitations...)
	}
	return out
}

func (f FallbackStrategy) validate() error {
	switch f.Mode {
	case FallbackAlternative, FallbackLimited, FallbackDisabled:
	case "":
		return fmt.Errorf("%w: fallback strategy mode is required", ErrInvalidContext)
	default:
		return fmt.Errorf("%w: unknown fallback mode %q", ErrInvalidContext, f.Mode)
	}
	if f.Description == "" {
		return fmt.Errorf("%w: fallback strategy description is required", ErrInvalidContext)
	}
	return nil
}

type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

type MedicalContext struct {
	Urgency        Urgency `json:"urgency"`
	ConsultationID string  `json:"consultation_id,omitempty"`
}

// EducationalContent передаётся презентеру обучающего экрана и служит текстом rationale.
type EducationalContent struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Benefits    []string `json:"benefits,omitempty"`
}

// RequestContext описывает конкретный запрос. FallbackStrategy обязателен.
type RequestContext struct {
	Feature            string              `json:"feature"`
	Priority           Priority            `json:"priority"`
	UserInitiated      bool                `json:"user_initiated"`
	UserJourney        string              `json:"user_journey,omitempty"`
	EducationalContent *EducationalContent `json:"educational_content,omitempty"`
	MedicalContext     *MedicalContext     `json:"medical_context,omitempty"`
	FallbackStrategy   *FallbackStrategy   `json:"fallback_strategy"`
}

// Validate - единственная проверка, которая "падает быстро" на границе API.
func (rc RequestContext) Validate() error {
	if rc.FallbackStrategy == nil {
		return fmt.Errorf("%w: fallback strategy is required", ErrInvalidContext)
	}
	if err := rc.FallbackStrategy.validate(); err != nil {
		return err
	}
	switch rc.Priority {
	case "", PriorityLow, PriorityImportant, PriorityCritical:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidContext, rc.Priority)
	}
	return nil
}

// IsEmergency - в экстренном случае промпт не откладывается (без обучения и задержек).
func (rc RequestContext) IsEmergency() bool {
	if rc.Priority == PriorityCritical {
		return true
	}
	return rc.MedicalContext != nil && rc.MedicalContext.Urgency == UrgencyEmergency
}
