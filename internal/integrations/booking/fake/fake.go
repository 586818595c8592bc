package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/BearBump/AvailBox/internal/integrations/booking"
	"github.com/BearBump/AvailBox/internal/models"
)

// FakeClient is an offline booking source. Output is deterministic per
// (key, date); roughly one key in seven returns no data.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Fetch(ctx context.Context, req booking.FetchRequest) (map[string][]models.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	days := req.Days
	if days <= 0 {
		days = 1
	}

	out := make(map[string][]models.Observation, len(req.SourceKeys))
	for _, key := range req.SourceKeys {
		if !strings.Contains(key, ":") || hash(key)%7 == 0 {
			continue
		}
		total := 20 + int(hash(key)%60)
		obs := make([]models.Observation, 0, days)
		for i := 0; i < days; i++ {
			d := req.Start.AddDate(0, 0, i)
			free := int(hash(fmt.Sprintf("%s|%s", key, d.Format("2006-01-02"))) % uint32(total+1))
			status := models.ReservationPossible
			if free == 0 {
				status = models.ReservationNotPossible
			}
			obs = append(obs, models.Observation{
				Date:              d,
				Free:              free,
				Total:             total,
				ReservationStatus: status,
				TypeTag:           "open",
				Link:              "https://booking.example/" + strings.ReplaceAll(key, ":", "/"),
			})
		}
		out[key] = obs
	}
	return out, nil
}

func hash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
