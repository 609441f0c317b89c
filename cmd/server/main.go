package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"hls-live/internal/eventloop"
	"hls-live/internal/hls"
	"hls-live/internal/live"
	"hls-live/internal/mpegts"
	"hls-live/internal/notify"
	"hls-live/internal/platform/config"
	"hls-live/internal/platform/logger"
	"hls-live/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	appsFile := config.GetEnv("HLS_CONFIG", "")
	appName := config.GetEnv("HLS_APP", config.DefaultApplication)

	log := logger.New(logLevel, logFormat)

	apps, err := loadApplications(appsFile, appName)
	if err != nil {
		log.Error("invalid application config", "error", err)
		os.Exit(1)
	}

	notifier, closeNotifier := newNotifier(log)
	defer closeNotifier()

	loop := eventloop.New(0)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)

	met := metrics.New()
	svc := live.NewService(loop, apps, log, met, live.WithNotifier(notifier))
	h := live.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met, "/metrics"))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() {
			if g, err := svc.Gauges(r.Context()); err == nil {
				met.SetGauges(g)
			}
		}).ServeHTTP(w, r)
	})
	h.Routes(r)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	names := make([]string, 0, len(apps))
	for _, a := range apps {
		names = append(names, a.Name)
	}
	log.Info("server starting",
		"port", port,
		"applications", names,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, closing sessions")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := svc.Shutdown(ctx); err != nil {
		log.Error("session shutdown error", "error", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	stopLoop()
	<-loop.Done()

	log.Info("server stopped")
}

func loadApplications(path, name string) ([]*hls.Application, error) {
	cfgs, err := config.Applications(path, name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cfgs))
	for n := range cfgs {
		names = append(names, n)
	}
	slices.Sort(names)

	apps := make([]*hls.Application, 0, len(names))
	for _, n := range names {
		a, err := hls.NewApplication(n, cfgs[n], hls.WithHeader(mpegts.ProgramHeader))
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, nil
}

// newNotifier builds the session event sinks. Redis and MQTT are optional and
// skipped with a warning when unreachable.
func newNotifier(log *slog.Logger) (notify.Notifier, func()) {
	sinks := notify.Multi{notify.NewLog(log)}
	var closers []func()

	if addr := config.GetEnv("NOTIFY_REDIS_ADDR", ""); addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := notify.DialRedis(ctx, addr)
		cancel()
		if err != nil {
			log.Warn("redis notifications disabled", "addr", addr, "error", err)
		} else {
			sinks = append(sinks, notify.NewRedis(client, config.GetEnv("NOTIFY_REDIS_CHANNEL", "")))
			closers = append(closers, func() { client.Close() })
		}
	}

	if broker := config.GetEnv("NOTIFY_MQTT_BROKER", ""); broker != "" {
		client, err := notify.DialMQTT(broker, "hls-live-"+uuid.NewString()[:8], log)
		if err != nil {
			log.Warn("mqtt notifications disabled", "broker", broker, "error", err)
		} else {
			sinks = append(sinks, notify.NewMQTT(client, config.GetEnv("NOTIFY_MQTT_TOPIC", "")))
			closers = append(closers, func() { client.Disconnect(250) })
		}
	}

	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}
