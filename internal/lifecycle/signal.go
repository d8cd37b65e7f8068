package lifecycle

import (
	"fmt"
	"strings"

	"github.com/xela07ax/capnego/internal/domain"
)

type SignalKind string

const (
	SignalForeground       SignalKind = "foreground"
	SignalBackground       SignalKind = "background"
	SignalSettingsReturned SignalKind = "settings-returned"
	SignalInvalidate       SignalKind = "invalidate"
	SignalInvalidateAll    SignalKind = "invalidate-all"
)

// Signal - событие хоста. Capability заполнен только для settings-returned и invalidate.
type Signal struct {
	Kind       SignalKind
	Capability domain.CapabilityType
}

// ParseSignal разбирает формат "kind" или "kind:capability".
func ParseSignal(payload string) (Signal, error) {
	kind, arg, hasArg := strings.Cut(strings.TrimSpace(payload), ":")
	s := Signal{Kind: SignalKind(kind)}

	switch s.Kind {
	case SignalForeground, SignalBackground, SignalInvalidateAll:
		if hasArg {
			return Signal{}, fmt.Errorf("signal %q takes no argument", kind)
		}
		return s, nil
	case SignalSettingsReturned, SignalInvalidate:
		if !hasArg || arg == "" {
			return Signal{}, fmt.Errorf("signal %q requires a capability", kind)
		}
		c, err := domain.ParseCapability(arg)
		if err != nil {
			return Signal{}, err
		}
		s.Capability = c
		return s, nil
	default:
		return Signal{}, fmt.Errorf("unknown signal %q", kind)
	}
}
