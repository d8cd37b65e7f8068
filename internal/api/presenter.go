package api

import (
	"context"

	"github.com/xela07ax/capnego/internal/domain"
)

type educationKey struct{}

// withEducationDecision кладёт в контекст ответ "пользователя" на обучающий экран.
func withEducationDecision(ctx context.Context, proceed bool) context.Context {
	return context.WithValue(ctx, educationKey{}, proceed)
}

// LabPresenter - обучающий экран лаборатории: решение приходит параметром запроса
// (?education_accept=false), по умолчанию пользователь соглашается.
type LabPresenter struct{}

func (LabPresenter) Present(ctx context.Context, _ domain.CapabilityType, _ *domain.EducationalContent) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if v, ok := ctx.Value(educationKey{}).(bool); ok {
		return v, nil
	}
	return true, nil
}
