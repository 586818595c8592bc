package pgavailability

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS entities (
  id BIGSERIAL PRIMARY KEY,
  slug TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS entity_sources (
  entity_id BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
  source TEXT NOT NULL,
  source_id TEXT NOT NULL,
  bookable BOOLEAN NOT NULL DEFAULT true,
  PRIMARY KEY (entity_id, source)
)`,
		`CREATE INDEX IF NOT EXISTS idx_entity_sources_bookable ON entity_sources(entity_id) WHERE bookable`,
		`
CREATE TABLE IF NOT EXISTS availability (
  id BIGSERIAL PRIMARY KEY,
  entity_id BIGINT NOT NULL,
  date DATE NOT NULL,
  source TEXT NOT NULL DEFAULT '',
  source_id TEXT NOT NULL DEFAULT '',
  free INT NOT NULL,
  total INT NOT NULL,
  occupancy_percent DOUBLE PRECISION NOT NULL,
  occupancy_steps INT NOT NULL,
  occupancy_status TEXT NOT NULL,
  reservation_status TEXT NOT NULL,
  type_tag TEXT NOT NULL,
  link TEXT NOT NULL DEFAULT '',
  first_checked TIMESTAMPTZ NOT NULL,
  last_checked TIMESTAMPTZ NOT NULL,
  UNIQUE (entity_id, date)
)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_date_status ON availability(date, occupancy_status, last_checked)`,
		`
CREATE TABLE IF NOT EXISTS availability_history (
  id BIGSERIAL PRIMARY KEY,
  availability_id BIGINT NOT NULL REFERENCES availability(id) ON DELETE CASCADE,
  entity_id BIGINT NOT NULL,
  date DATE NOT NULL,
  free INT NOT NULL,
  total INT NOT NULL,
  occupancy_percent DOUBLE PRECISION NOT NULL,
  occupancy_status TEXT NOT NULL,
  reservation_status TEXT NOT NULL,
  type_tag TEXT NOT NULL,
  first_checked TIMESTAMPTZ NOT NULL,
  last_checked TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_history_latest ON availability_history(availability_id, first_checked DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_history_trend ON availability_history(entity_id, date, first_checked)`,
		`
CREATE TABLE IF NOT EXISTS availability_status (
  entity_id BIGINT PRIMARY KEY,
  last_checked TIMESTAMPTZ NOT NULL,
  last_success TIMESTAMPTZ NULL,
  has_data BOOLEAN NOT NULL DEFAULT false,
  consecutive_failures INT NOT NULL DEFAULT 0 CHECK (consecutive_failures >= 0)
)`,
		`CREATE INDEX IF NOT EXISTS idx_availability_status_last_checked ON availability_status(last_checked)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
