package availability_api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/availability"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Service interface {
	Current(ctx context.Context, entityID uint64) ([]*models.Availability, error)
	Range(ctx context.Context, entityID uint64, from, to time.Time, days int) ([]*models.Availability, error)
	Trend(ctx context.Context, entityID uint64, date time.Time, daysBefore int) ([]*models.HistoryEntry, error)
	Statuses(ctx context.Context, ids []uint64) ([]*models.StatusRecord, error)
	ListStatuses(ctx context.Context, limit, offset int) ([]*models.StatusRecord, error)
}

// AvailabilityAPI serves current state, history trends and poll status as JSON.
type AvailabilityAPI struct {
	svc Service
	now func() time.Time
}

func New(svc Service) *AvailabilityAPI {
	return &AvailabilityAPI{svc: svc, now: func() time.Time { return time.Now().UTC() }}
}

// Register mounts the /v1 routes on r.
func (a *AvailabilityAPI) Register(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/availability", a.ListAvailability)
		r.Get("/entities/{entityId}/availability/current", a.GetCurrent)
		r.Get("/entities/{entityId}/availability/{date}/trend", a.GetTrend)
		r.Get("/entities/{entityId}/status", a.GetStatus)
		r.Get("/statuses", a.ListStatuses)
	})
}

type availabilityResponse struct {
	ID                uint64    `json:"id"`
	EntityID          uint64    `json:"entity_id"`
	Date              string    `json:"date"`
	Source            string    `json:"source"`
	SourceID          string    `json:"source_id"`
	Free              int       `json:"free"`
	Total             int       `json:"total"`
	OccupancyPercent  float64   `json:"occupancy_percent"`
	OccupancySteps    int       `json:"occupancy_steps"`
	OccupancyStatus   string    `json:"occupancy_status"`
	ReservationStatus string    `json:"reservation_status"`
	Type              string    `json:"type"`
	Link              string    `json:"link,omitempty"`
	FirstChecked      time.Time `json:"first_checked"`
	LastChecked       time.Time `json:"last_checked"`
}

type historyEntryResponse struct {
	ID                uint64    `json:"id"`
	EntityID          uint64    `json:"entity_id"`
	Date              string    `json:"date"`
	Free              int       `json:"free"`
	Total             int       `json:"total"`
	OccupancyPercent  float64   `json:"occupancy_percent"`
	OccupancyStatus   string    `json:"occupancy_status"`
	ReservationStatus string    `json:"reservation_status"`
	Type              string    `json:"type"`
	FirstChecked      time.Time `json:"first_checked"`
	LastChecked       time.Time `json:"last_checked"`
	DurationSeconds   int64     `json:"duration_seconds"`
}

type availabilityListResponse struct {
	Availability []availabilityResponse `json:"availability"`
}

type trendResponse struct {
	EntityID uint64                 `json:"entity_id"`
	Date     string                 `json:"date"`
	History  []historyEntryResponse `json:"history"`
}

type statusListResponse struct {
	Statuses []*models.StatusRecord `json:"statuses"`
}

// ListAvailability: GET /v1/availability?entity_id=&date_from=&date_to=&days=
func (a *AvailabilityAPI) ListAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var entityID uint64
	if v := q.Get("entity_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid entity_id")
			return
		}
		entityID = id
	}
	from, err := a.parseDate(q.Get("date_from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_from: "+err.Error())
		return
	}
	to, err := a.parseDate(q.Get("date_to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date_to: "+err.Error())
		return
	}
	days, err := parseInt(q.Get("days"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid days")
		return
	}

	items, err := a.svc.Range(r.Context(), entityID, from, to, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, availabilityListResponse{Availability: toAvailability(items)})
}

// GetCurrent: GET /v1/entities/{entityId}/availability/current
func (a *AvailabilityAPI) GetCurrent(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityIDParam(w, r)
	if !ok {
		return
	}
	items, err := a.svc.Current(r.Context(), entityID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, availabilityListResponse{Availability: toAvailability(items)})
}

// GetTrend: GET /v1/entities/{entityId}/availability/{date}/trend?days_before=30
func (a *AvailabilityAPI) GetTrend(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityIDParam(w, r)
	if !ok {
		return
	}
	date, err := a.parseDate(chi.URLParam(r, "date"))
	if err != nil || date.IsZero() {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}
	daysBefore, err := parseInt(r.URL.Query().Get("days_before"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid days_before")
		return
	}

	entries, err := a.svc.Trend(r.Context(), entityID, date, daysBefore)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, trendResponse{
		EntityID: entityID,
		Date:     date.Format(time.DateOnly),
		History:  toHistory(entries),
	})
}

// GetStatus: GET /v1/entities/{entityId}/status
func (a *AvailabilityAPI) GetStatus(w http.ResponseWriter, r *http.Request) {
	entityID, ok := entityIDParam(w, r)
	if !ok {
		return
	}
	sts, err := a.svc.Statuses(r.Context(), []uint64{entityID})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if len(sts) == 0 {
		writeError(w, http.StatusNotFound, "status not found")
		return
	}
	writeJSON(w, sts[0])
}

// ListStatuses: GET /v1/statuses?ids=1,2,3 or ?limit=&offset=
func (a *AvailabilityAPI) ListStatuses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if raw := q.Get("ids"); raw != "" {
		ids, err := parseIDs(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid ids")
			return
		}
		sts, err := a.svc.Statuses(r.Context(), ids)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, statusListResponse{Statuses: sts})
		return
	}

	limit, err := parseInt(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := parseInt(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	sts, err := a.svc.ListStatuses(r.Context(), limit, offset)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, statusListResponse{Statuses: sts})
}

// parseDate accepts the same formats as the start date; empty stays zero.
func (a *AvailabilityAPI) parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return models.ParseStartDate(s, a.now())
}

func entityIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "entityId"), 10, 64)
	if err != nil || id == 0 {
		writeError(w, http.StatusBadRequest, "invalid entityId")
		return 0, false
	}
	return id, true
}

func parseInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseIDs(raw string) ([]uint64, error) {
	parts := strings.Split(raw, ",")
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func toAvailability(items []*models.Availability) []availabilityResponse {
	out := make([]availabilityResponse, 0, len(items))
	for _, a := range items {
		out = append(out, availabilityResponse{
			ID:                a.ID,
			EntityID:          a.EntityID,
			Date:              a.Date.Format(time.DateOnly),
			Source:            a.Source,
			SourceID:          a.SourceID,
			Free:              a.Free,
			Total:             a.Total,
			OccupancyPercent:  a.OccupancyPercent,
			OccupancySteps:    a.OccupancySteps,
			OccupancyStatus:   a.OccupancyStatus,
			ReservationStatus: a.ReservationStatus,
			Type:              a.TypeTag,
			Link:              a.Link,
			FirstChecked:      a.FirstChecked,
			LastChecked:       a.LastChecked,
		})
	}
	return out
}

func toHistory(entries []*models.HistoryEntry) []historyEntryResponse {
	out := make([]historyEntryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, historyEntryResponse{
			ID:                h.ID,
			EntityID:          h.EntityID,
			Date:              h.Date.Format(time.DateOnly),
			Free:              h.Free,
			Total:             h.Total,
			OccupancyPercent:  h.OccupancyPercent,
			OccupancyStatus:   h.OccupancyStatus,
			ReservationStatus: h.ReservationStatus,
			Type:              h.TypeTag,
			FirstChecked:      h.FirstChecked,
			LastChecked:       h.LastChecked,
			DurationSeconds:   int64(h.Duration().Seconds()),
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func handleServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, availability.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	slog.Error("availability api", "error", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
}
