package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BearBump/AvailBox/internal/broker/messages"
	"github.com/BearBump/AvailBox/internal/cache"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/pkg/errors"
)

const (
	DefaultRangeDays  = 14
	DefaultTrendDays  = 30
	maxRangeDays      = 366
	defaultStatusPage = 100
)

// ErrInvalidArgument marks caller errors (bad ids, dates, ranges).
var ErrInvalidArgument = errors.New("invalid argument")

type Repository interface {
	ListAvailabilityRange(ctx context.Context, entityID uint64, from, to time.Time) ([]*models.Availability, error)
	ListHistoryTrend(ctx context.Context, entityID uint64, date, since time.Time) ([]*models.HistoryEntry, error)
	GetStatuses(ctx context.Context, ids []uint64) (map[uint64]*models.StatusRecord, error)
	ListStatuses(ctx context.Context, limit, offset int) ([]*models.StatusRecord, error)
}

// Service is the read side over current state, history and poll status.
type Service struct {
	repo       Repository
	cache      cache.BytesCache
	currentTTL time.Duration
	now        func() time.Time
}

func New(repo Repository, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		cache:      c,
		currentTTL: currentTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

// Current returns the default window (today + 14 days) for one entity.
// The result is cached per entity and day.
func (s *Service) Current(ctx context.Context, entityID uint64) ([]*models.Availability, error) {
	if entityID == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "entityId is required")
	}
	today := models.DateOnly(s.now())
	key := currentKey(entityID, today)

	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var out []*models.Availability
			if json.Unmarshal(b, &out) == nil && out != nil {
				return out, nil
			}
		}
	}

	out, err := s.repo.ListAvailabilityRange(ctx, entityID, today, today.AddDate(0, 0, DefaultRangeDays))
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled() {
		b, _ := json.Marshal(out)
		_ = s.cache.Set(ctx, key, b, s.currentTTL)
	}
	return out, nil
}

// Range lists current state between from and to. A zero from means today; a
// zero to means from plus days (14 when days <= 0). entityID 0 lists all.
func (s *Service) Range(ctx context.Context, entityID uint64, from, to time.Time, days int) ([]*models.Availability, error) {
	if from.IsZero() {
		from = s.now()
	}
	from = models.DateOnly(from)
	if to.IsZero() {
		if days <= 0 {
			days = DefaultRangeDays
		}
		to = from.AddDate(0, 0, days)
	}
	to = models.DateOnly(to)
	if to.Before(from) {
		return nil, errors.Wrap(ErrInvalidArgument, "date_to is before date_from")
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, errors.Wrapf(ErrInvalidArgument, "range too large (max %d days)", maxRangeDays)
	}
	return s.repo.ListAvailabilityRange(ctx, entityID, from, to)
}

// Trend shows how availability for one target date evolved, oldest first.
func (s *Service) Trend(ctx context.Context, entityID uint64, date time.Time, daysBefore int) ([]*models.HistoryEntry, error) {
	if entityID == 0 {
		return nil, errors.Wrap(ErrInvalidArgument, "entityId is required")
	}
	if date.IsZero() {
		return nil, errors.Wrap(ErrInvalidArgument, "date is required")
	}
	if daysBefore <= 0 {
		daysBefore = DefaultTrendDays
	}
	date = models.DateOnly(date)
	since := models.DateOnly(s.now()).AddDate(0, 0, -daysBefore)

	// кэшируем только тренд с окном по умолчанию
	cacheable := s.cacheEnabled() && daysBefore == DefaultTrendDays
	key := trendKey(entityID, date)
	if cacheable {
		if b, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var out []*models.HistoryEntry
			if json.Unmarshal(b, &out) == nil && out != nil {
				return out, nil
			}
		}
	}

	out, err := s.repo.ListHistoryTrend(ctx, entityID, date, since)
	if err != nil {
		return nil, err
	}
	if cacheable {
		b, _ := json.Marshal(out)
		_ = s.cache.Set(ctx, key, b, s.currentTTL)
	}
	return out, nil
}

// Statuses returns status records in the order of ids, skipping unknown ones.
func (s *Service) Statuses(ctx context.Context, ids []uint64) ([]*models.StatusRecord, error) {
	if len(ids) == 0 {
		return []*models.StatusRecord{}, nil
	}
	m, err := s.repo.GetStatuses(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*models.StatusRecord, 0, len(ids))
	for _, id := range ids {
		if st, ok := m[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Service) ListStatuses(ctx context.Context, limit, offset int) ([]*models.StatusRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = defaultStatusPage
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListStatuses(ctx, limit, offset)
}

// ApplyChange drops cached reads for an entity after the worker reported new history.
func (s *Service) ApplyChange(ctx context.Context, msg messages.AvailabilityChanged) error {
	if msg.EntityID == 0 {
		return errors.Wrap(ErrInvalidArgument, "entity_id is required")
	}
	if !s.cacheEnabled() {
		return nil
	}

	keys := []string{currentKey(msg.EntityID, models.DateOnly(s.now()))}
	for _, d := range msg.Dates {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		keys = append(keys, trendKey(msg.EntityID, t))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		return errors.Wrap(err, "invalidate cache")
	}
	return nil
}

func currentKey(entityID uint64, day time.Time) string {
	return fmt.Sprintf("availability:%d:current:%s", entityID, day.Format("2006-01-02"))
}

func trendKey(entityID uint64, date time.Time) string {
	return fmt.Sprintf("availability:%d:trend:%s", entityID, date.Format("2006-01-02"))
}
