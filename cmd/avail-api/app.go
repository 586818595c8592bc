package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	availabilityapi "github.com/BearBump/AvailBox/internal/api/availability_api"
	"github.com/BearBump/AvailBox/internal/broker/kafka"
	"github.com/BearBump/AvailBox/internal/broker/messages"
	"github.com/BearBump/AvailBox/internal/services/availability"
	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/sync/errgroup"
)

type availAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string
	retryBackoff  time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
}

func runAvailAPI(ctx context.Context, opts availAPIOpts, svc *availability.Service, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runHTTPServer(ctx, lis, svc, opts.swaggerPath)
	})
	if consumer != nil {
		g.Go(func() error {
			consumeChanges(ctx, consumer, svc, opts)
			return nil
		})
	}
	return g.Wait()
}

func runHTTPServer(ctx context.Context, lis net.Listener, svc *availability.Service, swaggerPath string) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))
	availabilityapi.New(svc).Register(r)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// consumeChanges drops cached reads on every availability.changed event and
// restarts the consumer after failures until ctx is done.
func consumeChanges(ctx context.Context, consumer kafkaConsumer, svc *availability.Service, opts availAPIOpts) {
	backoff := opts.retryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	handler := func(_key, value []byte) error {
		m, err := messages.UnmarshalAvailabilityChanged(value)
		if err != nil {
			// битое сообщение пропускаем, иначе консьюмер встанет на нём навсегда
			slog.Warn("skip malformed availability.changed", "error", err.Error())
			return nil
		}
		return svc.ApplyChange(ctx, m)
	}

	slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
	for {
		err := consumer.Consume(ctx, handler)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Error("kafka consumer stopped", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
