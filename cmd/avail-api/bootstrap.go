package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/AvailBox/config"
	"github.com/BearBump/AvailBox/internal/broker/kafka"
	"github.com/BearBump/AvailBox/internal/cache"
	"github.com/BearBump/AvailBox/internal/cache/rediscache"
	"github.com/BearBump/AvailBox/internal/logger"
	"github.com/BearBump/AvailBox/internal/services/availability"
	"github.com/BearBump/AvailBox/internal/storage/pgavailability"
)

type availAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     availAPIOpts
	svc      *availability.Service
	consumer *kafka.Consumer
	cache    *rediscache.RedisCache
	closeDB  func()
}

func mustBootstrapAvailAPI() *availAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	logger.SetupDefault(os.Stdout, cfg.AvailBox.LogLevel)

	httpAddr := cfg.AvailBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.AvailBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "avail-api"
	}
	topic := cfg.Kafka.Topic()

	cacheTTL := time.Duration(cfg.AvailBox.CurrentAvailabilityTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	app := &availAPIApp{
		opts: availAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		closeDB: st.Close,
	}

	// без redis читаем напрямую из postgres
	var c cache.BytesCache
	if addr := cfg.Redis.Addr(); addr != "" {
		app.cache = rediscache.New(addr)
		c = app.cache
	}
	app.svc = availability.New(st, c, cacheTTL)

	if brokers := cfg.Kafka.Brokers(); len(brokers) > 0 {
		app.consumer = kafka.NewConsumer(brokers, topic, consumerGroup)
	}

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgavailability.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgavailability.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *availAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *availAPIApp) Run() error {
	// nil *kafka.Consumer нельзя передавать как интерфейс
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runAvailAPI(a.ctx, a.opts, a.svc, consumer)
}
