package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/capnego/internal/api"
	"github.com/xela07ax/capnego/internal/engine"
	"github.com/xela07ax/capnego/internal/infra"
	"github.com/xela07ax/capnego/internal/journal"
	"github.com/xela07ax/capnego/internal/lifecycle"
	"github.com/xela07ax/capnego/internal/platform"
	"github.com/xela07ax/capnego/internal/profiler"
)

func main() {
	// 1. Конфиг и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 3. Платформенный слой: симулятор ОС за предохранителем
	sim := newSimulator(cfg.Simulator)
	bridge := platform.NewGuardedBridge(sim, cfg.Guard, logger, func(name string, open bool) {
		v := 0.0
		if open {
			v = 1
		}
		metrics.CircuitBreakerState.WithLabelValues(name).Set(v)
	})

	// 4. Журнал согласований: в лог и в кольцо для /v1/journal
	ring := journal.NewRingSink(cfg.Journal.RingSize)
	jrn := journal.New(cfg.Journal, logger, journal.NewLogSink(logger), ring)
	jrn.Start()

	// 5. Core (координатор, один на процесс)
	coord := engine.New(
		cfg.Engine,
		engine.StaticDeviceInfo(cfg.Device),
		bridge,
		logger,
		engine.WithProfiler(profiler.New(cfg.Profiler.Rules, logger)),
		engine.WithEducationPresenter(api.LabPresenter{}),
		engine.WithSettingsLauncher(bridge),
		engine.WithJournal(jrn),
		engine.WithMetrics(metrics),
	)
	coord.Initialize(appCtx)

	rv := lifecycle.NewRevalidator(coord, cfg.Lifecycle.RevalidateAfter, logger,
		lifecycle.WithWatched(cfg.WatchedCapabilities()...))

	// 6. Сигналы хоста из Redis (опционально)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		go lifecycle.ListenSignals(appCtx, rdb, logger, cfg.Redis.SignalChannel(), rv)
	} else {
		logger.Info("redis addr is empty, lifecycle listener disabled")
	}

	// 7. HTTP Server
	handler := api.NewServer(coord, logger,
		api.WithJournal(ring),
		api.WithSignals(rv),
		api.WithMetrics(reg),
	)
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 8. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("capnegd started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-stop // Ждем сигнал
	logger.Info("capnegd stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	// Сначала координатор, потом журнал: Stop вычитает последние события
	coord.Destroy()
	jrn.Stop()
	logger.Info("capnegd exited properly")
}

// newSimulator настраивает симулятор ОС из конфига (валидность состояний проверена в LoadConfig).
func newSimulator(cfg infra.SimulatorConfig) *platform.SimulatedBridge {
	sim := platform.NewSimulatedBridge()
	sim.SetLatency(cfg.Latency)
	if st, err := infra.ParseState(cfg.DefaultAnswer); err == nil {
		sim.SetDefaultAnswer(st)
	}
	for _, ps := range cfg.States {
		if st, err := infra.ParseState(ps.State); err == nil {
			sim.SetState(platform.Primitive(ps.Primitive), st)
		}
	}
	for _, ps := range cfg.Answers {
		if st, err := infra.ParseState(ps.State); err == nil {
			sim.SetAnswer(platform.Primitive(ps.Primitive), st)
		}
	}
	return sim
}
