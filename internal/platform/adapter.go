package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/capnego/internal/domain"
	"go.uber.org/zap"
)

// transientRetryDelay - пауза перед единственным повтором при флаге retry-on-transient.
const transientRetryDelay = 250 * time.Millisecond

// Mapping - во что превращается абстрактная возможность на конкретной версии ОС.
type Mapping struct {
	Capability domain.CapabilityType
	Primitives []Primitive
	// AutoGrant: разрешение не нужно вовсе (install-time ОС, приватное хранилище приложения).
	AutoGrant bool
	// Tiered: двухшаговая выдача coarse -> fine.
	Tiered     bool
	Coarse     Primitive
	Fine       Primitive
	CoarseOnly bool
	// Parts - примитивы каждой составной части композита.
	Parts map[domain.CapabilityType][]Primitive
	Gate  string
}

// Outcome - сведённый ответ ОС по одной возможности.
type Outcome struct {
	Status      domain.CapabilityStatus
	CanAskAgain bool
	Accuracy    domain.Accuracy
	Parts       map[domain.CapabilityType]domain.CapabilityStatus
	States      map[Primitive]PermissionState
}

// Adapter - единственный компонент, которому разрешено обращаться к примитивам ОС.
type Adapter interface {
	Family() domain.OSFamily
	MapCapability(c domain.CapabilityType, version int) (Mapping, error)

	RequestOne(ctx context.Context, p Primitive, opts domain.RequestOptions) (PermissionState, error)
	RequestMany(ctx context.Context, ps []Primitive, opts domain.RequestOptions) (map[Primitive]PermissionState, error)
	// timeout ограничивает каждое чтение статуса; мост может игнорировать ctx.
	CheckOne(ctx context.Context, p Primitive, timeout time.Duration) (PermissionState, error)
	CheckMany(ctx context.Context, ps []Primitive, timeout time.Duration) (map[Primitive]PermissionState, error)

	// Request и Check - полный цикл: маппинг, обращение к ОС, сведение результата.
	Request(ctx context.Context, c domain.CapabilityType, version int, opts domain.RequestOptions) (Outcome, error)
	Check(ctx context.Context, c domain.CapabilityType, version int, timeout time.Duration) (Outcome, error)

	// Budget - сколько времени разумно ждать полный Request (несколько промптов при последовательной выдаче).
	Budget(c domain.CapabilityType, version int, opts domain.RequestOptions) time.Duration
}

// versionGate - предикат версии + обработчик. Цепочка проверяется по порядку,
// новую версию ОС добавляют новым звеном, не трогая существующие.
type versionGate struct {
	name    string
	applies func(version int) bool
	resolve func(c domain.CapabilityType) (Mapping, bool)
}

func since(min int) func(int) bool  { return func(v int) bool { return v >= min } }
func before(max int) func(int) bool { return func(v int) bool { return v < max } }
func always(int) bool               { return true }

// adapter - общая механика; варианты ОС отличаются цепочкой и доп. примитивами композитов.
type adapter struct {
	family domain.OSFamily
	chain  []versionGate
	extras func(c domain.CapabilityType, version int) []Primitive
	bridge Bridge
	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func newAdapter(family domain.OSFamily, chain []versionGate, extras func(domain.CapabilityType, int) []Primitive, bridge Bridge, logger *zap.Logger) *adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &adapter{
		family: family,
		chain:  chain,
		extras: extras,
		bridge: bridge,
		logger: logger.Named("adapter").With(zap.String("family", string(family))),
		sleep:  sleepCtx,
	}
}

func (a *adapter) Family() domain.OSFamily {
	return a.family
}

func (a *adapter) MapCapability(c domain.CapabilityType, version int) (Mapping, error) {
	if c.IsComposite() {
		return a.mapComposite(c, version)
	}
	for _, g := range a.chain {
		if !g.applies(version) {
			continue
		}
		if m, ok := g.resolve(c); ok {
			m.Capability = c
			m.Gate = g.name
			return m, nil
		}
	}
	return Mapping{}, fmt.Errorf("%w: %s on %s %d", domain.ErrPlatformUnavailable, c, a.family, version)
}

func (a *adapter) mapComposite(c domain.CapabilityType, version int) (Mapping, error) {
	out := Mapping{Capability: c, Parts: make(map[domain.CapabilityType][]Primitive), Gate: "composite"}
	seen := make(map[Primitive]struct{})
	add := func(ps ...Primitive) {
		for _, p := range ps {
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				out.Primitives = append(out.Primitives, p)
			}
		}
	}
	for _, part := range c.Components() {
		m, err := a.MapCapability(part, version)
		if err != nil {
			return Mapping{}, err
		}
		out.Parts[part] = m.Primitives
		add(m.Primitives...)
	}
	if a.extras != nil {
		add(a.extras(c, version)...)
	}
	out.AutoGrant = len(out.Primitives) == 0
	return out, nil
}

func (a *adapter) RequestOne(ctx context.Context, p Primitive, opts domain.RequestOptions) (PermissionState, error) {
	states, err := a.RequestMany(ctx, []Primitive{p}, opts)
	if err != nil {
		return StateNotDetermined, err
	}
	return states[p], nil
}

// RequestMany гоняет нативный вызов против синтетического таймаута.
func (a *adapter) RequestMany(ctx context.Context, ps []Primitive, opts domain.RequestOptions) (map[Primitive]PermissionState, error) {
	call := func() (map[Primitive]PermissionState, error) {
		return raceTimeout(ctx, opts.Timeout, func(ctx context.Context) (map[Primitive]PermissionState, error) {
			return a.bridge.Request(ctx, ps, PromptOptions{Rationale: opts.Rationale, Throttle: opts.ThrottlePrompts})
		})
	}
	states, err := call()
	err = a.classify(ps, err, opts.RetryTransient)
	if err != nil && opts.RetryTransient && domain.Classify(err) == domain.TagTransient {
		a.logger.Warn("transient platform error, retrying once", zap.Any("primitives", ps), zap.Error(err))
		if sErr := a.sleep(ctx, transientRetryDelay); sErr != nil {
			return nil, sErr
		}
		states, err = call()
		err = a.classify(ps, err, opts.RetryTransient)
	}
	if err != nil {
		return nil, err
	}
	return fillMissing(ps, states), nil
}

// CheckOne гоняет нативное чтение статуса против таймаута так же, как RequestMany.
func (a *adapter) CheckOne(ctx context.Context, p Primitive, timeout time.Duration) (PermissionState, error) {
	s, err := raceTimeout(ctx, timeout, func(ctx context.Context) (PermissionState, error) {
		return a.bridge.Check(ctx, p)
	})
	if err != nil {
		return StateNotDetermined, a.classify([]Primitive{p}, err, false)
	}
	return s, nil
}

func (a *adapter) CheckMany(ctx context.Context, ps []Primitive, timeout time.Duration) (map[Primitive]PermissionState, error) {
	out := make(map[Primitive]PermissionState, len(ps))
	for _, p := range ps {
		s, err := a.CheckOne(ctx, p, timeout)
		if err != nil {
			return nil, err
		}
		out[p] = s
	}
	return out, nil
}

func (a *adapter) Check(ctx context.Context, c domain.CapabilityType, version int, timeout time.Duration) (Outcome, error) {
	m, err := a.MapCapability(c, version)
	if err != nil {
		return Outcome{}, err
	}
	if m.AutoGrant {
		return autoGranted(m), nil
	}
	states, err := a.CheckMany(ctx, m.Primitives, timeout)
	if err != nil {
		return Outcome{}, err
	}
	return reconcileMapping(m, states, c.RequiresPrecision()), nil
}

func (a *adapter) Request(ctx context.Context, c domain.CapabilityType, version int, opts domain.RequestOptions) (Outcome, error) {
	m, err := a.MapCapability(c, version)
	if err != nil {
		return Outcome{}, err
	}
	if m.AutoGrant {
		return autoGranted(m), nil
	}

	if opts.PreRequestDelay > 0 {
		if err := a.sleep(ctx, opts.PreRequestDelay); err != nil {
			return Outcome{}, err
		}
	}

	var states map[Primitive]PermissionState
	switch {
	case m.Tiered:
		states, err = a.requestTiered(ctx, m, opts)
	case opts.Sequential && len(m.Primitives) > 1:
		states, err = a.requestSequential(ctx, m.Primitives, opts)
	default:
		states, err = a.RequestMany(ctx, m.Primitives, opts)
	}
	if err != nil {
		return Outcome{}, err
	}

	out := reconcileMapping(m, states, opts.RequirePrecise)
	if opts.VerifyAfterGrant && (out.Status == domain.StatusGranted || out.Status == domain.StatusLimited) {
		// Некоторые прошивки отчитываются о выдаче раньше, чем она реально применена.
		checked, err := a.CheckMany(ctx, m.Primitives, opts.Timeout)
		if err != nil {
			return Outcome{}, err
		}
		for p, s := range checked {
			if s == StateNotDetermined {
				continue // не спрашивали этот уровень
			}
			states[p] = s
		}
		out = reconcileMapping(m, states, opts.RequirePrecise)
	}
	return out, nil
}

// requestTiered: сначала coarse, потом отдельный промпт на fine, если coarse выдан.
func (a *adapter) requestTiered(ctx context.Context, m Mapping, opts domain.RequestOptions) (map[Primitive]PermissionState, error) {
	states := make(map[Primitive]PermissionState, 2)
	coarse, err := a.RequestOne(ctx, m.Coarse, opts)
	if err != nil {
		return nil, err
	}
	states[m.Coarse] = coarse
	if !isGrantedState(coarse) {
		return states, nil
	}
	if opts.Sequential && opts.InterRequestDelay > 0 {
		if err := a.sleep(ctx, opts.InterRequestDelay); err != nil {
			return nil, err
		}
	}
	fine, err := a.RequestOne(ctx, m.Fine, opts)
	if err != nil {
		return nil, err
	}
	states[m.Fine] = fine
	return states, nil
}

// requestSequential - по одному диалогу с паузой: прошивки, ломающие наложенные диалоги.
func (a *adapter) requestSequential(ctx context.Context, ps []Primitive, opts domain.RequestOptions) (map[Primitive]PermissionState, error) {
	states := make(map[Primitive]PermissionState, len(ps))
	for i, p := range ps {
		if i > 0 && opts.InterRequestDelay > 0 {
			if err := a.sleep(ctx, opts.InterRequestDelay); err != nil {
				return nil, err
			}
		}
		s, err := a.RequestOne(ctx, p, opts)
		if err != nil {
			return nil, err
		}
		states[p] = s
	}
	return states, nil
}

func (a *adapter) Budget(c domain.CapabilityType, version int, opts domain.RequestOptions) time.Duration {
	prompts := 1
	if m, err := a.MapCapability(c, version); err == nil {
		switch {
		case m.AutoGrant:
			prompts = 1
		case m.Tiered:
			prompts = 2
		case opts.Sequential && len(m.Primitives) > 1:
			prompts = len(m.Primitives)
		}
	}
	budget := opts.Timeout*time.Duration(prompts) + opts.PreRequestDelay
	if prompts > 1 && opts.Sequential {
		budget += opts.InterRequestDelay * time.Duration(prompts-1)
	}
	if opts.VerifyAfterGrant {
		budget += opts.Timeout
	}
	if opts.RetryTransient {
		budget += transientRetryDelay + opts.Timeout
	}
	return budget
}

// classify приводит ошибку моста к таксономии. На профилях с retry-on-transient
// любая неклассифицированная ошибка ОС считается временной (вмешательство слоя безопасности OEM).
func (a *adapter) classify(ps []Primitive, err error, oemTransient bool) error {
	if err == nil {
		return nil
	}
	var tErr *domain.TransientPlatformError
	switch {
	case errors.As(err, &tErr),
		errors.Is(err, domain.ErrTimeout),
		errors.Is(err, domain.ErrPlatformUnavailable),
		errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	case oemTransient:
		return &domain.TransientPlatformError{Primitive: joinPrimitives(ps), Cause: err}
	default:
		return err
	}
}

func autoGranted(m Mapping) Outcome {
	out := Outcome{Status: domain.StatusGranted, States: map[Primitive]PermissionState{}}
	if m.Capability.IsLocation() {
		out.Accuracy = domain.AccuracyPrecise
	}
	if len(m.Parts) > 0 {
		out.Parts = make(map[domain.CapabilityType]domain.CapabilityStatus, len(m.Parts))
		for part := range m.Parts {
			out.Parts[part] = domain.StatusGranted
		}
	}
	return out
}

func fillMissing(ps []Primitive, states map[Primitive]PermissionState) map[Primitive]PermissionState {
	out := make(map[Primitive]PermissionState, len(ps))
	for _, p := range ps {
		s, ok := states[p]
		if !ok || s == "" {
			s = StateDenied
		}
		out[p] = s
	}
	return out
}

func joinPrimitives(ps []Primitive) string {
	s := ""
	for i, p := range ps {
		if i > 0 {
			s += ","
		}
		s += string(p)
	}
	return s
}

// raceTimeout: нативный вызов против таймера. Горутина вызова дочитывается в буферизованный канал
// и не висит после таймаута.
func raceTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		return fn(ctx)
	}
	tCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(tCtx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-tCtx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return zero, ctx.Err()
		}
		return zero, domain.ErrTimeout
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
