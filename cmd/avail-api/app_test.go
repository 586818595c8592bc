package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/AvailBox/internal/broker/kafka"
	"github.com/BearBump/AvailBox/internal/broker/messages"
	"github.com/BearBump/AvailBox/internal/cache/rediscache"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/availability"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct{}

func (r *fakeRepo) ListAvailabilityRange(ctx context.Context, entityID uint64, from, to time.Time) ([]*models.Availability, error) {
	return []*models.Availability{}, nil
}
func (r *fakeRepo) ListHistoryTrend(ctx context.Context, entityID uint64, date, since time.Time) ([]*models.HistoryEntry, error) {
	return []*models.HistoryEntry{}, nil
}
func (r *fakeRepo) GetStatuses(ctx context.Context, ids []uint64) (map[uint64]*models.StatusRecord, error) {
	return map[uint64]*models.StatusRecord{}, nil
}
func (r *fakeRepo) ListStatuses(ctx context.Context, limit, offset int) ([]*models.StatusRecord, error) {
	return []*models.StatusRecord{}, nil
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

// scriptedConsumer delivers its values once, fails the first call and then blocks.
type scriptedConsumer struct {
	values [][]byte
	calls  atomic.Int32
	done   chan struct{}
}

func (c *scriptedConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	if c.calls.Add(1) == 1 {
		return errors.New("broker unavailable")
	}
	for _, v := range c.values {
		if err := handler(nil, v); err != nil {
			return err
		}
	}
	close(c.done)
	<-ctx.Done()
	return ctx.Err()
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func TestRunAvailAPI_SwaggerAndRoutesServed(t *testing.T) {
	svc := availability.New(&fakeRepo{}, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := availAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   writeSwagger(t),
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runAvailAPI(ctx, opts, svc, fakeConsumer{})
	}()

	httpAddr := <-addrCh

	resp, err := http.Get("http://" + httpAddr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)
	require.Contains(t, string(body), "\"swagger\"")

	resp, err = http.Get("http://" + httpAddr + "/v1/entities/1/availability/current")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting api to stop")
	}
}

func TestRunAvailAPI_RequiresSwagger(t *testing.T) {
	svc := availability.New(&fakeRepo{}, nil, 0)

	err := runAvailAPI(context.Background(), availAPIOpts{httpAddr: "127.0.0.1:0"}, svc, nil)
	require.Error(t, err)

	err = runAvailAPI(context.Background(), availAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, svc, nil)
	require.Error(t, err)
}

func TestConsumeChanges_InvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := rediscache.New(mr.Addr())
	defer rc.Close()

	svc := availability.New(&fakeRepo{}, rc, time.Minute)

	today := models.DateOnly(time.Now().UTC()).Format("2006-01-02")
	currentKey := fmt.Sprintf("availability:7:current:%s", today)
	trendKey := "availability:7:trend:2026-07-04"
	otherKey := fmt.Sprintf("availability:8:current:%s", today)
	for _, k := range []string{currentKey, trendKey, otherKey} {
		require.NoError(t, mr.Set(k, "[]"))
	}

	msg, err := messages.AvailabilityChanged{
		EntityID:       7,
		CheckedAt:      time.Now().UTC(),
		Dates:          []string{"2026-07-04"},
		HistoryEntries: 1,
	}.Marshal()
	require.NoError(t, err)

	cons := &scriptedConsumer{
		values: [][]byte{[]byte("{not json"), msg},
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		consumeChanges(ctx, cons, svc, availAPIOpts{retryBackoff: 10 * time.Millisecond})
		close(stopped)
	}()

	select {
	case <-cons.done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not deliver messages")
	}

	require.False(t, mr.Exists(currentKey))
	require.False(t, mr.Exists(trendKey))
	require.True(t, mr.Exists(otherKey))
	require.EqualValues(t, 2, cons.calls.Load())

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer loop did not stop")
	}
}
