package platform

import "github.com/xela07ax/capnego/internal/domain"

// Reconcile сводит ответы по нескольким примитивам в один статус:
//
//	все выданы                        -> granted
//	ничего не выдано, есть never-ask  -> blocked
//	ничего не выдано                  -> denied
//	выдано частично                   -> limited, но never-ask у любой части даёт blocked
//
// Приоритет blocked над limited - осознанный контракт (см. DESIGN.md).
func Reconcile(states map[Primitive]PermissionState) (domain.CapabilityStatus, bool) {
	if len(states) == 0 {
		return domain.StatusUnknown, true
	}
	var granted, partial, permanent int
	for _, s := range states {
		switch {
		case isGrantedState(s):
			granted++
		case s == StateLimited:
			partial++
		case isPermanent(s):
			permanent++
		}
	}

	var status domain.CapabilityStatus
	switch {
	case granted == len(states):
		status = domain.StatusGranted
	case permanent > 0:
		status = domain.StatusBlocked
	case granted+partial == 0:
		status = domain.StatusDenied
	default:
		status = domain.StatusLimited
	}
	return status, canAskAgain(status)
}

func canAskAgain(status domain.CapabilityStatus) bool {
	switch status {
	case domain.StatusGranted, domain.StatusBlocked:
		return false
	}
	return true
}

// reconcileLocation учитывает двухуровневую точность. Один и тот же ответ ОС
// (coarse да, fine нет) даёт limited для location-precise и granted для location.
func reconcileLocation(m Mapping, states map[Primitive]PermissionState, requirePrecise bool) Outcome {
	if m.Fine == "" {
		status, ask := Reconcile(states)
		out := Outcome{Status: status, CanAskAgain: ask, States: states}
		if status == domain.StatusGranted {
			out.Accuracy = domain.AccuracyPrecise
			if m.CoarseOnly {
				out.Accuracy = domain.AccuracyApproximate
			}
		}
		return out
	}

	coarse, fine := states[m.Coarse], states[m.Fine]
	switch {
	case isGrantedState(fine):
		return Outcome{Status: domain.StatusGranted, Accuracy: domain.AccuracyPrecise, States: states}
	case isGrantedState(coarse):
		out := Outcome{Accuracy: domain.AccuracyApproximate, States: states, CanAskAgain: !isPermanent(fine)}
		if requirePrecise {
			out.Status = domain.StatusLimited
		} else {
			out.Status = domain.StatusGranted
			out.CanAskAgain = false
		}
		return out
	default:
		status, ask := Reconcile(states)
		return Outcome{Status: status, CanAskAgain: ask, States: states}
	}
}

// reconcileMapping - общий вход для адаптера: состав, локация или простой случай.
func reconcileMapping(m Mapping, states map[Primitive]PermissionState, requirePrecise bool) Outcome {
	var out Outcome
	if m.Capability.IsLocation() {
		out = reconcileLocation(m, states, requirePrecise)
	} else {
		status, ask := Reconcile(states)
		out = Outcome{Status: status, CanAskAgain: ask, States: states}
	}
	if len(m.Parts) > 0 {
		out.Parts = make(map[domain.CapabilityType]domain.CapabilityStatus, len(m.Parts))
		for part, prims := range m.Parts {
			if len(prims) == 0 {
				out.Parts[part] = domain.StatusGranted
				continue
			}
			sub := make(map[Primitive]PermissionState, len(prims))
			for _, p := range prims {
				if s, ok := states[p]; ok {
					sub[p] = s
				}
			}
			out.Parts[part], _ = Reconcile(sub)
		}
	}
	return out
}
