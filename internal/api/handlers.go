package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/capnego/internal/domain"
	"github.com/xela07ax/capnego/internal/lifecycle"
	"go.uber.org/zap"
)

const defaultJournalLimit = 50

// profileView - DeviceProfile для JSON: флаги обходов списком.
type profileView struct {
	domain.DeviceProfile
	Tier        string   `json:"tier"`
	Workarounds []string `json:"workarounds"`
}

type batchRequest struct {
	Capabilities []domain.CapabilityType                         `json:"capabilities"`
	Contexts     map[domain.CapabilityType]domain.RequestContext `json:"contexts"`
}

type signalRequest struct {
	Signal string `json:"signal"`
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p := s.engine.DeviceProfile(r.Context())
	writeJSON(w, http.StatusOK, profileView{DeviceProfile: p, Tier: p.Tier(), Workarounds: p.WorkaroundList()})
}

func (s *Server) check(w http.ResponseWriter, r *http.Request) {
	t, ok := capabilityParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Check(r.Context(), t))
}

func (s *Server) request(w http.ResponseWriter, r *http.Request) {
	t, ok := capabilityParam(w, r)
	if !ok {
		return
	}
	var rc domain.RequestContext
	if err := json.NewDecoder(r.Body).Decode(&rc); err != nil {
		http.Error(w, "invalid request context body", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	education := q.Get("education") == "true"
	attempts := 1
	if v := q.Get("attempts"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "attempts must be a positive integer", http.StatusBadRequest)
			return
		}
		attempts = n
	}
	// Прогрессивный повтор обучающий экран не показывает: вместе их не принимаем.
	if education && attempts > 1 {
		http.Error(w, "education and attempts>1 are mutually exclusive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if v := q.Get("education_accept"); v != "" {
		ctx = withEducationDecision(ctx, v == "true")
	}

	var (
		res domain.CapabilityResult
		err error
	)
	switch {
	case attempts > 1:
		res, err = s.engine.RequestWithProgressiveFallback(ctx, t, rc, attempts)
	case education:
		res, err = s.engine.RequestWithEducation(ctx, t, rc, true)
	default:
		res, err = s.engine.Request(ctx, t, rc)
	}
	if err != nil {
		s.negotiationError(w, t, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) requestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid batch body", http.StatusBadRequest)
		return
	}
	if len(req.Capabilities) == 0 {
		http.Error(w, "capabilities are required", http.StatusBadRequest)
		return
	}
	for _, t := range req.Capabilities {
		if _, err := domain.ParseCapability(string(t)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	res, err := s.engine.RequestMultiple(r.Context(), req.Capabilities, req.Contexts)
	if err != nil {
		s.negotiationError(w, "batch", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) invalidate(w http.ResponseWriter, r *http.Request) {
	t, ok := capabilityParam(w, r)
	if !ok {
		return
	}
	s.engine.Invalidate(t)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invalidateAll(w http.ResponseWriter, r *http.Request) {
	s.engine.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

// openSettings открывает настройки ОС. С ?capability=<type> сразу отрабатывает
// возврат пользователя: сброс записи и свежая проверка.
func (s *Server) openSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.OpenPlatformSettings(r.Context()); err != nil {
		if errors.Is(err, domain.ErrPlatformUnavailable) {
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		}
		s.logger.Error("open settings failed", zap.Error(err))
		http.Error(w, "open settings failed", http.StatusBadGateway)
		return
	}

	name := r.URL.Query().Get("capability")
	if name == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	t, err := domain.ParseCapability(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.signals != nil {
		writeJSON(w, http.StatusOK, s.signals.OnSettingsReturn(r.Context(), t))
		return
	}
	s.engine.Invalidate(t)
	writeJSON(w, http.StatusOK, s.engine.Check(r.Context(), t))
}

// lifecycleSignal - тот же формат, что и в Redis-канале, для стендов без Redis.
func (s *Server) lifecycleSignal(w http.ResponseWriter, r *http.Request) {
	if s.signals == nil {
		http.Error(w, "lifecycle signals are not enabled", http.StatusNotImplemented)
		return
	}
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid signal body", http.StatusBadRequest)
		return
	}
	sig, err := lifecycle.ParseSignal(req.Signal)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.signals.Handle(r.Context(), sig)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) getJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	limit := defaultJournalLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.journal.Recent(limit))
}

// negotiationError: невалидный контекст - ошибка клиента, остальное - только отмена запроса.
func (s *Server) negotiationError(w http.ResponseWriter, t domain.CapabilityType, err error) {
	if errors.Is(err, domain.ErrInvalidContext) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Warn("negotiation aborted", zap.String("capability", string(t)), zap.Error(err))
	http.Error(w, "negotiation aborted", http.StatusServiceUnavailable)
}

func capabilityParam(w http.ResponseWriter, r *http.Request) (domain.CapabilityType, bool) {
	t, err := domain.ParseCapability(chi.URLParam(r, "type"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
