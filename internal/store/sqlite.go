package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	building_id        TEXT PRIMARY KEY,
	address_normalized TEXT NOT NULL,
	lat                REAL,
	lng                REAL,
	icp_bucket         TEXT NOT NULL DEFAULT '',
	score              INTEGER NOT NULL DEFAULT 0,
	ineligible         INTEGER NOT NULL DEFAULT 0,
	record             TEXT NOT NULL,
	updated_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_address ON leads(address_normalized);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);
CREATE INDEX IF NOT EXISTS idx_leads_bucket ON leads(icp_bucket);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, rec *model.BuildingRecord) error {
	if rec.BuildingID == "" {
		return eris.New("sqlite: upsert requires building_id")
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}

	var lat, lng sql.NullFloat64
	if rec.Location != nil {
		lat = sql.NullFloat64{Float64: rec.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: rec.Location.Lng, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (building_id, address_normalized, lat, lng, icp_bucket, score, ineligible, record, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(building_id) DO UPDATE SET
			address_normalized = excluded.address_normalized,
			lat = excluded.lat,
			lng = excluded.lng,
			icp_bucket = excluded.icp_bucket,
			score = excluded.score,
			ineligible = excluded.ineligible,
			record = excluded.record,
			updated_at = excluded.updated_at`,
		rec.BuildingID, rec.AddressNormalized, lat, lng, rec.ICPBucket,
		rec.Score, boolToInt(rec.Ineligible), string(recordJSON), rec.LastUpdated,
	)
	return eris.Wrapf(err, "sqlite: upsert lead %s", rec.BuildingID)
}

func (s *SQLiteStore) Get(ctx context.Context, buildingID string) (*model.BuildingRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM leads WHERE building_id = ?`, buildingID)

	var recordJSON string
	err := row.Scan(&recordJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", buildingID)
	}
	return unmarshalRecord(recordJSON)
}

func (s *SQLiteStore) FindByAddress(ctx context.Context, normalized string) ([]model.BuildingRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM leads WHERE address_normalized = ?`, normalized)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find by address")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) List(ctx context.Context, filter LeadFilter) ([]model.BuildingRecord, error) {
	query, args := buildListQuery(`SELECT record FROM leads WHERE 1=1`, filter, true)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()
	return scanRecords(rows)
}

func (s *SQLiteStore) Count(ctx context.Context, filter LeadFilter) (int, error) {
	query, args := buildListQuery(`SELECT COUNT(*) FROM leads WHERE 1=1`, filter, false)
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count leads")
	}
	return n, nil
}

func buildListQuery(base string, filter LeadFilter, ordered bool) (string, []any) {
	query := base
	var args []any

	if !filter.IncludeIneligible {
		query += ` AND ineligible = 0`
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ?`
		args = append(args, filter.MinScore)
	}
	if filter.Bucket != "" {
		query += ` AND icp_bucket = ?`
		args = append(args, filter.Bucket)
	}
	if ordered {
		query += ` ORDER BY score DESC, building_id`
		if filter.Limit > 0 {
			query += ` LIMIT ?`
			args = append(args, filter.Limit)
			if filter.Offset > 0 {
				query += ` OFFSET ?`
				args = append(args, filter.Offset)
			}
		}
	}
	return query, args
}

func scanRecords(rows *sql.Rows) ([]model.BuildingRecord, error) {
	var out []model.BuildingRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		rec, err := unmarshalRecord(recordJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func unmarshalRecord(recordJSON string) (*model.BuildingRecord, error) {
	var rec model.BuildingRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal record")
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
