package platform

import "context"

// Primitive - конкретное разрешение ОС ("android.permission.CAMERA", "ios.camera" и т.д.).
type Primitive string

// PermissionState - ответ ОС по одному примитиву.
type PermissionState string

const (
	StateGranted       PermissionState = "granted"
	StateDenied        PermissionState = "denied"
	StateNeverAskAgain PermissionState = "never_ask_again"
	// StateRestricted - политика устройства (MDM, родительский контроль), пользователь не может изменить.
	StateRestricted    PermissionState = "restricted"
	StateLimited       PermissionState = "limited"
	StateNotDetermined PermissionState = "not_determined"
)

// PromptOptions передаются в нативный вызов запроса.
type PromptOptions struct {
	Rationale string
	// Throttle включает ограничитель частоты промптов (см. GuardedBridge).
	Throttle bool
}

// Bridge - тонкая граница к примитивам ОС. Реализуется снаружи движка (нативный слой, симулятор, тесты).
type Bridge interface {
	Check(ctx context.Context, p Primitive) (PermissionState, error)
	Request(ctx context.Context, ps []Primitive, opts PromptOptions) (map[Primitive]PermissionState, error)
}

func isGrantedState(s PermissionState) bool {
	return s == StateGranted
}

// isPermanent - ОС больше не покажет диалог.
func isPermanent(s PermissionState) bool {
	return s == StateNeverAskAgain || s == StateRestricted
}
