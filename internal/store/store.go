// Package store persists the canonical lead table. SQLite is the default
// backend; Postgres is available for shared deployments. Both keep the full
// record as JSON alongside the columns the pipeline queries on.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// ErrNotFound is returned when a building id has no record.
var ErrNotFound = eris.New("store: record not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	MinScore          int    `json:"min_score,omitempty"`
	Bucket            string `json:"bucket,omitempty"`
	IncludeIneligible bool   `json:"include_ineligible,omitempty"`
	Limit             int    `json:"limit,omitempty"`
	Offset            int    `json:"offset,omitempty"`
}

// Store defines the lead persistence interface.
type Store interface {
	// Upsert writes a record keyed by building_id, inserting or replacing.
	Upsert(ctx context.Context, rec *model.BuildingRecord) error

	// Get fetches one record. Returns ErrNotFound when absent.
	Get(ctx context.Context, buildingID string) (*model.BuildingRecord, error)

	// FindByAddress returns all records with the given normalized address.
	// The resolver's candidate lookup; multiple hits are legitimate when
	// locations differ beyond the dedup threshold.
	FindByAddress(ctx context.Context, normalized string) ([]model.BuildingRecord, error)

	// List returns records ordered by score descending. Ineligible records
	// are excluded unless the filter includes them.
	List(ctx context.Context, filter LeadFilter) ([]model.BuildingRecord, error)

	// Count returns the number of records matching the filter.
	Count(ctx context.Context, filter LeadFilter) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
