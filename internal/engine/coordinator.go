package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/xela07ax/capnego/internal/cache"
	"github.com/xela07ax/capnego/internal/domain"
	"github.com/xela07ax/capnego/internal/journal"
	"github.com/xela07ax/capnego/internal/platform"
	"github.com/xela07ax/capnego/internal/profiler"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Операции координатора (метки метрик и журнала).
const (
	opCheck       = "check"
	opRequest     = "request"
	opEducation   = "education"
	opProgressive = "progressive"
	opBatch       = "batch"
)

// DeviceInfoProvider - внешний источник статичных данных устройства, опрашивается один раз при Initialize.
type DeviceInfoProvider interface {
	DeviceInfo(ctx context.Context) (domain.DeviceInfo, error)
}

// StaticDeviceInfo - провайдер из конфига.
type StaticDeviceInfo domain.DeviceInfo

func (s StaticDeviceInfo) DeviceInfo(context.Context) (domain.DeviceInfo, error) {
	return domain.DeviceInfo(s), nil
}

// EducationPresenter показывает обучающий экран и возвращает "пользователь продолжил".
type EducationPresenter interface {
	Present(ctx context.Context, c domain.CapabilityType, content *domain.EducationalContent) (bool, error)
}

// SettingsLauncher открывает системные настройки приложения.
type SettingsLauncher interface {
	OpenSettings(ctx context.Context) error
}

type Settings struct {
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	RecheckInterval  time.Duration `mapstructure:"recheck_interval"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	CheckTimeout     time.Duration `mapstructure:"check_timeout"`
	BatchGap         time.Duration `mapstructure:"batch_gap"`
	EducationTimeout time.Duration `mapstructure:"education_timeout"`
}

func DefaultSettings() Settings {
	return Settings{
		CacheTTL:         cache.DefaultTTL,
		RecheckInterval:  time.Second,
		RetryDelay:       750 * time.Millisecond,
		CheckTimeout:     5 * time.Second,
		BatchGap:         300 * time.Millisecond,
		EducationTimeout: 2 * time.Minute,
	}
}

func (s Settings) withDefaults() Settings {
	def := DefaultSettings()
	if s.CacheTTL <= 0 {
		s.CacheTTL = def.CacheTTL
	}
	if s.RecheckInterval <= 0 {
		s.RecheckInterval = def.RecheckInterval
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = def.RetryDelay
	}
	if s.CheckTimeout <= 0 {
		s.CheckTimeout = def.CheckTimeout
	}
	if s.BatchGap <= 0 {
		s.BatchGap = def.BatchGap
	}
	if s.EducationTimeout <= 0 {
		s.EducationTimeout = def.EducationTimeout
	}
	return s
}

type checkMark struct {
	at     time.Time
	result domain.CapabilityResult
}

// Coordinator - единственная точка входа для вызывающего кода. Один экземпляр на процесс,
// создаётся и уничтожается владельцем (cmd), глобального состояния нет.
type Coordinator struct {
	settings  Settings
	info      DeviceInfoProvider
	bridge    platform.Bridge
	profiler  *profiler.Profiler
	presenter EducationPresenter
	launcher  SettingsLauncher
	journal   journal.Recorder
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time

	cache  *cache.ResultCache
	flight singleflight.Group

	// Профиль и адаптер только читаются после Initialize.
	mu          sync.RWMutex
	initialized bool
	profile     domain.DeviceProfile
	adapter     platform.Adapter

	checkMu    sync.Mutex
	lastChecks map[domain.CapabilityType]checkMark
}

type Option func(*Coordinator)

func WithEducationPresenter(p EducationPresenter) Option {
	return func(c *Coordinator) { c.presenter = p }
}

func WithSettingsLauncher(l SettingsLauncher) Option {
	return func(c *Coordinator) { c.launcher = l }
}

func WithJournal(j journal.Recorder) Option {
	return func(c *Coordinator) { c.journal = j }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithProfiler(p *profiler.Profiler) Option {
	return func(c *Coordinator) { c.profiler = p }
}

// WithClock подменяет часы (метки времени, интервал повторной проверки, TTL кэша).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func New(s Settings, info DeviceInfoProvider, bridge platform.Bridge, logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		settings:   s.withDefaults(),
		info:       info,
		bridge:     bridge,
		logger:     logger.Named("coordinator"),
		now:        time.Now,
		lastChecks: make(map[domain.CapabilityType]checkMark),
	}
	for _, o := range opts {
		o(c)
	}
	if c.profiler == nil {
		c.profiler = profiler.New(nil, logger)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.cache = cache.New(c.settings.CacheTTL, logger, cache.WithClock(c.now))
	return c
}

// Initialize идемпотентен и не падает: при сбое провайдера берётся профиль по умолчанию.
func (c *Coordinator) Initialize(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return
	}

	var info domain.DeviceInfo
	if c.info == nil {
		c.logger.Warn("no device info provider, using default profile")
	} else if di, err := c.info.DeviceInfo(ctx); err != nil {
		c.logger.Warn("device info unavailable, using default profile", zap.Error(err))
	} else {
		info = di
	}

	prof := c.profiler.Profile(info)
	ad, err := platform.Select(prof.OSFamily, c.bridge, c.logger)
	if err != nil {
		// Без адаптера каждая операция вернёт синтезированный отказ с тегом platform_unavailable.
		c.logger.Error("no platform adapter for device", zap.String("os_family", string(prof.OSFamily)), zap.Error(err))
	}

	c.profile = prof
	c.adapter = ad
	c.initialized = true
	c.logger.Info("engine initialized",
		zap.String("profile", prof.Tier()),
		zap.String("os_family", string(prof.OSFamily)),
		zap.Int("version_gate", prof.VersionGate()))
}

// Destroy сбрасывает состояние; следующий вызов снова пройдёт Initialize.
func (c *Coordinator) Destroy() {
	c.mu.Lock()
	c.initialized = false
	c.adapter = nil
	c.profile = domain.DeviceProfile{}
	c.mu.Unlock()

	c.InvalidateAll()
	c.logger.Info("engine destroyed")
}

func (c *Coordinator) ensureInit(ctx context.Context) (domain.DeviceProfile, platform.Adapter) {
	c.mu.RLock()
	if c.initialized {
		prof, ad := c.profile, c.adapter
		c.mu.RUnlock()
		return prof, ad
	}
	c.mu.RUnlock()

	c.Initialize(ctx)

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile, c.adapter
}

func (c *Coordinator) DeviceProfile(ctx context.Context) domain.DeviceProfile {
	prof, _ := c.ensureInit(ctx)
	return prof
}

// Invalidate сбрасывает кэш и отметку последней проверки (для композита - и частей).
func (c *Coordinator) Invalidate(t domain.CapabilityType) {
	c.cache.Invalidate(t)
	c.checkMu.Lock()
	delete(c.lastChecks, t)
	for _, part := range t.Components() {
		delete(c.lastChecks, part)
	}
	c.checkMu.Unlock()
	c.logger.Debug("capability invalidated", zap.String("capability", string(t)))
}

func (c *Coordinator) InvalidateAll() {
	c.cache.InvalidateAll()
	c.checkMu.Lock()
	c.lastChecks = make(map[domain.CapabilityType]checkMark)
	c.checkMu.Unlock()
}

// OpenPlatformSettings делегирует внешнему лаунчеру. Кэш не трогается: по возвращении
// из настроек вызывающий код делает Invalidate (см. lifecycle.Revalidator).
func (c *Coordinator) OpenPlatformSettings(ctx context.Context) error {
	if c.launcher == nil {
		return domain.ErrPlatformUnavailable
	}
	if err := c.launcher.OpenSettings(ctx); err != nil {
		c.logger.Warn("open platform settings failed", zap.Error(err))
		return err
	}
	return nil
}

// synthesize - результат вместо ошибки платформенного слоя. Для вызывающего кода
// выглядит как мягкий отказ; источник fallback отличает его от ответа ОС.
func (c *Coordinator) synthesize(prof domain.DeviceProfile, err error, requestID string) domain.CapabilityResult {
	tag := domain.Classify(err)
	r := domain.CapabilityResult{
		Status:      domain.StatusDenied,
		CanAskAgain: true,
		Metadata: domain.Metadata{
			Source:     domain.SourceFallback,
			Timestamp:  c.now(),
			DeviceTier: prof.Tier(),
			RequestID:  requestID,
			ErrorTag:   tag,
		},
	}
	if errors.Is(err, domain.ErrPlatformUnavailable) {
		// Повторный запрос не поможет: примитива для этой версии ОС нет.
		r.CanAskAgain = false
	}
	return r
}

func (c *Coordinator) fresh(prof domain.DeviceProfile, out platform.Outcome, requestID string) domain.CapabilityResult {
	r := domain.CapabilityResult{
		Status:      out.Status,
		CanAskAgain: out.CanAskAgain,
		Accuracy:    out.Accuracy,
		Metadata: domain.Metadata{
			Source:     domain.SourceFresh,
			Timestamp:  c.now(),
			DeviceTier: prof.Tier(),
			RequestID:  requestID,
		},
	}
	if len(out.Parts) > 0 {
		r.BatchResults = make(map[domain.CapabilityType]domain.CapabilityStatus, len(out.Parts))
		for k, v := range out.Parts {
			r.BatchResults[k] = v
		}
	}
	return r
}

// store пишет результат и записи частей композита. began - начало обращения к ОС:
// часть, которую успели переписать после него, не трогаем.
func (c *Coordinator) store(t domain.CapabilityType, r domain.CapabilityResult, began time.Time) {
	c.cache.Put(t, r, 0)
	for part, status := range r.BatchResults {
		sub := domain.CapabilityResult{
			Status:      status,
			CanAskAgain: status != domain.StatusGranted && status != domain.StatusBlocked,
			Metadata:    r.Metadata,
		}
		c.cache.PutIfNewer(part, sub, began, 0)
	}
}

func (c *Coordinator) record(op string, t domain.CapabilityType, rc *domain.RequestContext, r domain.CapabilityResult, start time.Time) {
	elapsed := time.Since(start)
	c.metrics.RequestDuration.WithLabelValues(string(t), op).Observe(elapsed.Seconds())
	c.metrics.ResultsTotal.WithLabelValues(string(t), string(r.Status), string(r.Metadata.Source)).Inc()

	if c.journal == nil {
		return
	}
	ev := journal.Event{
		RequestID:   r.Metadata.RequestID,
		Capability:  string(t),
		Operation:   op,
		Status:      string(r.Status),
		Source:      string(r.Metadata.Source),
		ErrorTag:    string(r.Metadata.ErrorTag),
		CanAskAgain: r.CanAskAgain,
		Attempt:     r.Metadata.RetryCount + 1,
		Profile:     r.Metadata.DeviceTier,
		DurationMs:  elapsed.Milliseconds(),
	}
	if rc != nil {
		ev.Feature = rc.Feature
	}
	c.journal.Log(ev)
	if p, ok := c.journal.(interface{ Pending() int }); ok {
		c.metrics.JournalBufferFill.Set(float64(p.Pending()))
	}
}
