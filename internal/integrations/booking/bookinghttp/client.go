package bookinghttp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/AvailBox/internal/integrations/booking"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// RateLimiter is a shared per-window request budget (see rediscache.RateLimiter).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client

	rl          RateLimiter
	rlPerMinute int64
	throttle    time.Duration

	// интервал между запросами держится и между вызовами Fetch
	mu  sync.Mutex
	lim *rate.Limiter
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		throttle: 500 * time.Millisecond,
		httpc: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// WithRateLimit enables the shared per-source budget of perMinute requests.
func (c *Client) WithRateLimit(rl RateLimiter, perMinute int) *Client {
	if rl != nil && perMinute > 0 {
		c.rl = rl
		c.rlPerMinute = int64(perMinute)
	}
	return c
}

type respDay struct {
	Date              string `json:"date"`
	Free              int    `json:"free"`
	Total             int    `json:"total"`
	ReservationStatus string `json:"reservation_status"`
	Type              string `json:"type"`
	Link              string `json:"link"`
}

type respBody struct {
	Source   string    `json:"source"`
	SourceID string    `json:"source_id"`
	Days     []respDay `json:"days"`
}

func (c *Client) Fetch(ctx context.Context, req booking.FetchRequest) (map[string][]models.Observation, error) {
	lim := c.limiter(req.RequestInterval)

	out := make(map[string][]models.Observation, len(req.SourceKeys))
	for _, key := range req.SourceKeys {
		source, id, ok := strings.Cut(key, ":")
		if !ok || source == "" || id == "" {
			continue
		}
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, errors.Wrap(err, "wait request interval")
			}
		}
		if err := c.waitBudget(ctx, source); err != nil {
			return nil, err
		}

		obs, found, err := c.fetchOne(ctx, source, id, req.Start, req.Days)
		if err != nil {
			return nil, errors.Wrapf(err, "fetch %s", key)
		}
		if found && len(obs) > 0 {
			out[key] = obs
		}
	}
	return out, nil
}

func (c *Client) limiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	limit := rate.Every(interval)
	if c.lim == nil {
		c.lim = rate.NewLimiter(limit, 1)
	} else if c.lim.Limit() != limit {
		c.lim.SetLimit(limit)
	}
	return c.lim
}

// waitBudget blocks until the shared per-source budget admits one request
// or ctx is done.
func (c *Client) waitBudget(ctx context.Context, source string) error {
	if c.rl == nil {
		return nil
	}
	for warned := false; ; {
		minuteKey := fmt.Sprintf("rl:booking:%s:%s", source, time.Now().UTC().Format("200601021504"))
		allowed, n, err := c.rl.Allow(ctx, minuteKey, c.rlPerMinute, 70*time.Second)
		if err != nil {
			return errors.Wrap(err, "booking rate limit")
		}
		if allowed {
			return nil
		}
		if !warned {
			slog.Warn("booking rate limit exceeded, waiting", "source", source, "count", n)
			warned = true
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.throttle):
		}
	}
}

func (c *Client) fetchOne(ctx context.Context, source, id string, start time.Time, days int) ([]models.Observation, bool, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, false, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/v1/availability/%s/%s", url.PathEscape(source), url.PathEscape(id))
	q := u.Query()
	q.Set("start", start.Format("2006-01-02"))
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	if c.apiKey != "" {
		q.Set("apiKey", c.apiKey)
	}
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "new request")
	}
	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, false, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, errors.New("booking source rate limit (429)")
	case resp.StatusCode/100 != 2:
		return nil, false, errors.Errorf("booking source http %d", resp.StatusCode)
	}

	var rb respBody
	if err := json.NewDecoder(resp.Body).Decode(&rb); err != nil {
		return nil, false, errors.Wrap(err, "decode")
	}

	obs := make([]models.Observation, 0, len(rb.Days))
	for _, d := range rb.Days {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			slog.Warn("skip booking day with bad date", "source", source, "source_id", id, "date", d.Date)
			continue
		}
		obs = append(obs, models.Observation{
			Date:              date,
			Free:              d.Free,
			Total:             d.Total,
			ReservationStatus: d.ReservationStatus,
			TypeTag:           d.Type,
			Link:              d.Link,
		})
	}
	return obs, true, nil
}
