package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/xela07ax/capnego/internal/domain"
	"github.com/xela07ax/capnego/internal/engine"
	"github.com/xela07ax/capnego/internal/journal"
	"github.com/xela07ax/capnego/internal/lifecycle"
	"github.com/xela07ax/capnego/internal/platform"
	"github.com/xela07ax/capnego/internal/profiler"
)

// Config - корневая структура конфигурации демона лаборатории.
type Config struct {
	Server    ServerConfig           `mapstructure:"server"`
	Redis     RedisConfig            `mapstructure:"redis"`
	Logger    LoggerConfig           `mapstructure:"logger"`
	Engine    engine.Settings        `mapstructure:"engine"`
	Device    domain.DeviceInfo      `mapstructure:"device"`
	Profiler  ProfilerConfig         `mapstructure:"profiler"`
	Lifecycle LifecycleConfig        `mapstructure:"lifecycle"`
	Simulator SimulatorConfig        `mapstructure:"simulator"`
	Journal   journal.Settings       `mapstructure:"journal"`
	Guard     platform.GuardSettings `mapstructure:"guard"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisConfig описывает подключение к Redis (Pub/Sub сигналов хоста).
// Пустой Addr выключает слушателя.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
	DeviceID string `mapstructure:"device_id"`
}

// SignalChannel - явный channel или канал стенда по device_id.
func (r RedisConfig) SignalChannel() string {
	if r.Channel != "" {
		return r.Channel
	}
	return GetDeviceChannel(r.DeviceID)
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// ProfilerConfig - дополнительные правила производителей, проверяются раньше встроенных.
type ProfilerConfig struct {
	Rules []profiler.Rule `mapstructure:"rules"`
}

type LifecycleConfig struct {
	RevalidateAfter time.Duration `mapstructure:"revalidate_after"`
	// Watched перепроверяются через Check после сброса кэша
	Watched []string `mapstructure:"watched"`
}

// SimulatorConfig - поведение симулятора ОС, на котором работает демон.
type SimulatorConfig struct {
	Latency       time.Duration    `mapstructure:"latency"`
	DefaultAnswer string           `mapstructure:"default_answer"`
	States        []PrimitiveState `mapstructure:"states"`  // текущее состояние в ОС
	Answers       []PrimitiveState `mapstructure:"answers"` // ответ пользователя на диалог
}

// PrimitiveState - списком, а не map: viper приводит ключи к нижнему регистру и режет их по точкам.
type PrimitiveState struct {
	Primitive string `mapstructure:"primitive"`
	State     string `mapstructure:"state"`
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет - работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	// Запрос с обучающим экраном может висеть минуты
	v.SetDefault("server.write_timeout", 3*time.Minute)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "")
	v.SetDefault("redis.device_id", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	def := engine.DefaultSettings()
	v.SetDefault("engine.cache_ttl", def.CacheTTL)
	v.SetDefault("engine.recheck_interval", def.RecheckInterval)
	v.SetDefault("engine.retry_delay", def.RetryDelay)
	v.SetDefault("engine.check_timeout", def.CheckTimeout)
	v.SetDefault("engine.batch_gap", def.BatchGap)
	v.SetDefault("engine.education_timeout", def.EducationTimeout)

	v.SetDefault("device.manufacturer", "google")
	v.SetDefault("device.model", "Pixel 8")
	v.SetDefault("device.os_family", string(domain.OSAndroid))
	v.SetDefault("device.os_version", "14")
	v.SetDefault("device.api_level", 34)
	v.SetDefault("device.emulator", false)

	v.SetDefault("lifecycle.revalidate_after", lifecycle.DefaultRevalidateAfter)

	v.SetDefault("simulator.latency", 200*time.Millisecond)
	v.SetDefault("simulator.default_answer", string(platform.StateGranted))

	jdef := journal.DefaultSettings()
	v.SetDefault("journal.buffer_size", jdef.BufferSize)
	v.SetDefault("journal.batch_size", jdef.BatchSize)
	v.SetDefault("journal.flush_interval", jdef.FlushInterval)
	v.SetDefault("journal.ring_size", jdef.RingSize)

	gdef := platform.DefaultGuardSettings()
	v.SetDefault("guard.name", gdef.Name)
	v.SetDefault("guard.max_requests", gdef.MaxRequests)
	v.SetDefault("guard.interval", gdef.Interval)
	v.SetDefault("guard.open_timeout", gdef.OpenTimeout)
	v.SetDefault("guard.consecutive_failures", gdef.ConsecutiveFailures)
	v.SetDefault("guard.prompt_gap", gdef.PromptGap)
}

func (c *Config) validate() error {
	switch c.Device.OSFamily {
	case domain.OSAndroid, domain.OSIOS:
	default:
		return fmt.Errorf("device.os_family: unsupported value %q", c.Device.OSFamily)
	}
	for _, name := range c.Lifecycle.Watched {
		if _, err := domain.ParseCapability(name); err != nil {
			return fmt.Errorf("lifecycle.watched: %w", err)
		}
	}
	if _, err := ParseState(c.Simulator.DefaultAnswer); err != nil {
		return fmt.Errorf("simulator.default_answer: %w", err)
	}
	for _, ps := range c.Simulator.States {
		if _, err := ParseState(ps.State); err != nil {
			return fmt.Errorf("simulator.states[%s]: %w", ps.Primitive, err)
		}
	}
	for _, ps := range c.Simulator.Answers {
		if _, err := ParseState(ps.State); err != nil {
			return fmt.Errorf("simulator.answers[%s]: %w", ps.Primitive, err)
		}
	}
	return nil
}

// ParseState переводит строку конфига в состояние примитива.
func ParseState(s string) (platform.PermissionState, error) {
	st := platform.PermissionState(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case platform.StateGranted, platform.StateDenied, platform.StateNeverAskAgain,
		platform.StateRestricted, platform.StateLimited, platform.StateNotDetermined:
		return st, nil
	}
	return "", fmt.Errorf("unknown permission state %q", s)
}

// WatchedCapabilities - разобранный lifecycle.watched (валидность проверена в LoadConfig).
func (c *Config) WatchedCapabilities() []domain.CapabilityType {
	out := make([]domain.CapabilityType, 0, len(c.Lifecycle.Watched))
	for _, name := range c.Lifecycle.Watched {
		if t, err := domain.ParseCapability(name); err == nil {
			out = append(out, t)
		}
	}
	return out
}
