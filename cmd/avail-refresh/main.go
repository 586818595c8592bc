package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/AvailBox/config"
	"github.com/BearBump/AvailBox/internal/broker/kafka"
	"github.com/BearBump/AvailBox/internal/cache/rediscache"
	"github.com/BearBump/AvailBox/internal/integrations/booking"
	"github.com/BearBump/AvailBox/internal/integrations/booking/bookinghttp"
	"github.com/BearBump/AvailBox/internal/integrations/booking/fake"
	"github.com/BearBump/AvailBox/internal/logger"
	"github.com/BearBump/AvailBox/internal/services/refresh"
	"github.com/BearBump/AvailBox/internal/services/scheduler"
	"github.com/BearBump/AvailBox/internal/services/tracker"
	"github.com/BearBump/AvailBox/internal/storage/pgavailability"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		fmt.Fprintf(stderr, "ошибка парсинга конфига, %v\n", err)
		return 1
	}
	// прогресс идёт в stdout, логи в stderr
	logger.SetupDefault(stderr, cfg.AvailBox.LogLevel)

	opts, err := parseFlags(args, cfg, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	st, err := pgavailability.New(cfg.Database.ConnString())
	if err != nil {
		fmt.Fprintf(stderr, "postgres: %v\n", err)
		return 1
	}
	defer st.Close()

	pipeline := refresh.NewPipeline(
		scheduler.New(st, opts.thresholds()),
		st,
		refresh.NewBatcher(newBookingClient(cfg), st),
		tracker.New(st),
	)
	if brokers := cfg.Kafka.Brokers(); len(brokers) > 0 && !opts.dryRun {
		producer := kafka.NewProducer(brokers)
		defer func() { _ = producer.Close() }()
		pipeline.WithPublisher(refresh.NewKafkaPublisher(producer, cfg.Kafka.Topic()))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return runRefresh(ctx, pipeline, opts, stdout, stderr)
}

func newBookingClient(cfg *config.Config) booking.Client {
	if cfg.AvailBox.BookingMode != "http" || cfg.AvailBox.BookingBaseURL == "" {
		return fake.New()
	}
	c := bookinghttp.New(cfg.AvailBox.BookingBaseURL, cfg.AvailBox.BookingAPIKey)
	if addr := cfg.Redis.Addr(); addr != "" {
		// общий с воркером бюджет запросов
		c.WithRateLimit(rediscache.NewRateLimiter(addr), cfg.AvailBox.BookingRateLimitPerMinute)
	}
	return c
}
