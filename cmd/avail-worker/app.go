package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/BearBump/AvailBox/config"
	"github.com/BearBump/AvailBox/internal/broker/kafka"
	"github.com/BearBump/AvailBox/internal/cache/rediscache"
	"github.com/BearBump/AvailBox/internal/integrations/booking"
	"github.com/BearBump/AvailBox/internal/integrations/booking/bookinghttp"
	"github.com/BearBump/AvailBox/internal/integrations/booking/fake"
	"github.com/BearBump/AvailBox/internal/metrics"
	"github.com/BearBump/AvailBox/internal/services/refresh"
	"github.com/BearBump/AvailBox/internal/services/scheduler"
	"github.com/BearBump/AvailBox/internal/services/tracker"
	"github.com/BearBump/AvailBox/internal/storage/pgavailability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// workerStorage is everything the worker needs from postgres.
type workerStorage interface {
	scheduler.Repository
	tracker.Repository
	refresh.Directory
	refresh.Persister
	Ping(ctx context.Context) error
}

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo workerStorage, closeFn func(), err error)
	newProducer      func(cfg *config.Config) refresh.Producer
	newRateLimiter   func(cfg *config.Config) bookinghttp.RateLimiter
	newBookingClient func(cfg *config.Config, rl bookinghttp.RateLimiter) booking.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			st, err := pgavailability.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) refresh.Producer {
			brokers := cfg.Kafka.Brokers()
			if len(brokers) == 0 {
				return nil
			}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) bookinghttp.RateLimiter {
			addr := cfg.Redis.Addr()
			if addr == "" {
				return nil
			}
			return rediscache.NewRateLimiter(addr)
		},
		newBookingClient: func(cfg *config.Config, rl bookinghttp.RateLimiter) booking.Client {
			// Без base_url работаем на детерминированном fake.
			if cfg.AvailBox.BookingMode == "http" && cfg.AvailBox.BookingBaseURL != "" {
				return bookinghttp.New(cfg.AvailBox.BookingBaseURL, cfg.AvailBox.BookingAPIKey).
					WithRateLimit(rl, cfg.AvailBox.BookingRateLimitPerMinute)
			}
			return fake.New()
		},
	}
}

type workerRunOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
}

func thresholdsFromConfig(cfg *config.Config) scheduler.Thresholds {
	return scheduler.ThresholdsFromMinutes(
		cfg.AvailBox.HighPriorityMinutes,
		cfg.AvailBox.MediumPriorityMinutes,
		cfg.AvailBox.LowPriorityMinutes,
		cfg.AvailBox.InactivePriorityMinutes,
		cfg.AvailBox.LookaheadDays,
	)
}

func runOptionsFromConfig(cfg *config.Config) refresh.RunOptions {
	batchSize := cfg.AvailBox.BatchSize
	if batchSize <= 0 {
		batchSize = refresh.DefaultBatchSize
	}
	days := cfg.AvailBox.Days
	if days <= 0 {
		days = refresh.DefaultDays
	}
	return refresh.RunOptions{
		Mode:            refresh.ModePriority,
		BatchSize:       batchSize,
		StartDate:       cfg.AvailBox.StartDate,
		Days:            days,
		RequestInterval: time.Duration(cfg.AvailBox.RequestIntervalMs) * time.Millisecond,
		ExtendHistory:   cfg.AvailBox.ExtendHistoryDuration,
	}
}

func RunAvailWorker(ctx context.Context, cfg *config.Config, f workerFactories, ro workerRunOpts) error {
	interval := time.Duration(cfg.AvailBox.WorkerRunIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	rl := f.newRateLimiter(cfg)
	client := f.newBookingClient(cfg, rl)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	pipeline := refresh.NewPipeline(
		scheduler.New(repo, thresholdsFromConfig(cfg)),
		repo,
		refresh.NewBatcher(client, repo),
		tracker.New(repo),
	).WithMetrics(metrics.NewCollector(reg))
	if producer := f.newProducer(cfg); producer != nil {
		pipeline.WithPublisher(refresh.NewKafkaPublisher(producer, cfg.Kafka.Topic()))
	}

	w := refresh.NewWorker(pipeline, runOptionsFromConfig(cfg), interval)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.AvailBox.WorkerHTTPAddr != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.AvailBox.WorkerHTTPAddr,
				swaggerPath: ro.swaggerPath,
				onListen:    ro.onListen,
				worker:      w,
				cfg:         cfg,
				gatherer:    reg,
				ready:       repo.Ping,
			})
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker http server", "error", err.Error())
				cancel()
			}
		}()
	}

	slog.Info("avail worker started", "interval", interval.String(), "booking_mode", cfg.AvailBox.BookingMode)
	// первый прогон сразу, дальше по тикеру
	w.Trigger()
	return w.Run(ctx)
}
