package platform

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// SimulatedBridge - мост без устройства: лаборатория, интеграционные тесты.
// Ответ пользователя на диалог задаётся заранее, состояние примитивов хранится в памяти.
type SimulatedBridge struct {
	mu       sync.Mutex
	states   map[Primitive]PermissionState
	answers  map[Primitive]PermissionState
	fallback PermissionState
	latency  time.Duration
	failNext []error

	prompts  atomic.Int64
	inFlight atomic.Int32
	overlap  atomic.Bool
}

func NewSimulatedBridge() *SimulatedBridge {
	return &SimulatedBridge{
		states:   make(map[Primitive]PermissionState),
		answers:  make(map[Primitive]PermissionState),
		fallback: StateGranted,
	}
}

// SetAnswer - что «нажмёт» пользователь в диалоге по примитиву.
func (s *SimulatedBridge) SetAnswer(p Primitive, st PermissionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[p] = st
}

// SetDefaultAnswer - ответ по примитивам без явной настройки.
func (s *SimulatedBridge) SetDefaultAnswer(st PermissionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = st
}

// SetState меняет текущее состояние без диалога (как будто пользователь сходил в настройки).
func (s *SimulatedBridge) SetState(p Primitive, st PermissionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[p] = st
}

func (s *SimulatedBridge) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// FailNext: следующие вызовы Request вернут эти ошибки по очереди.
func (s *SimulatedBridge) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = append(s.failNext, errs...)
}

// Prompts - сколько раз показывался системный диалог.
func (s *SimulatedBridge) Prompts() int {
	return int(s.prompts.Load())
}

// Overlapped - были ли два диалога на экране одновременно.
func (s *SimulatedBridge) Overlapped() bool {
	return s.overlap.Load()
}

func (s *SimulatedBridge) Check(ctx context.Context, p Primitive) (PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return StateNotDetermined, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[p]; ok {
		return st, nil
	}
	return StateNotDetermined, nil
}

func (s *SimulatedBridge) Request(ctx context.Context, ps []Primitive, _ PromptOptions) (map[Primitive]PermissionState, error) {
	if s.inFlight.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inFlight.Add(-1)
	s.prompts.Add(1)

	s.mu.Lock()
	latency := s.latency
	var injected error
	if len(s.failNext) > 0 {
		injected = s.failNext[0]
		s.failNext = s.failNext[1:]
	}
	s.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
	if injected != nil {
		return nil, injected
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Primitive]PermissionState, len(ps))
	for _, p := range ps {
		cur := s.states[p]
		if cur == StateGranted || isPermanent(cur) {
			// Диалог не показывается: ОС сразу отвечает текущим состоянием.
			out[p] = cur
			continue
		}
		ans, ok := s.answers[p]
		if !ok {
			ans = s.fallback
		}
		s.states[p] = ans
		out[p] = ans
	}
	return out, nil
}

// OpenSettings имитирует поход пользователя в системные настройки:
// всё, что было заблокировано, становится выданным.
func (s *SimulatedBridge) OpenSettings(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, st := range s.states {
		if isPermanent(st) && st != StateRestricted {
			s.states[p] = StateGranted
		}
	}
	return nil
}
