package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/suncrest-solar/leadscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool, for deployments where the
// lead table is shared by more than one machine.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	building_id        TEXT PRIMARY KEY,
	address_normalized TEXT NOT NULL,
	lat                DOUBLE PRECISION,
	lng                DOUBLE PRECISION,
	icp_bucket         TEXT NOT NULL DEFAULT '',
	score              INTEGER NOT NULL DEFAULT 0,
	ineligible         BOOLEAN NOT NULL DEFAULT FALSE,
	record             JSONB NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_address ON leads(address_normalized);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);
CREATE INDEX IF NOT EXISTS idx_leads_bucket ON leads(icp_bucket);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, rec *model.BuildingRecord) error {
	if rec.BuildingID == "" {
		return eris.New("postgres: upsert requires building_id")
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now().UTC()
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}

	var lat, lng *float64
	if rec.Location != nil {
		lat, lng = &rec.Location.Lat, &rec.Location.Lng
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (building_id, address_normalized, lat, lng, icp_bucket, score, ineligible, record, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (building_id) DO UPDATE SET
			address_normalized = EXCLUDED.address_normalized,
			lat = EXCLUDED.lat,
			lng = EXCLUDED.lng,
			icp_bucket = EXCLUDED.icp_bucket,
			score = EXCLUDED.score,
			ineligible = EXCLUDED.ineligible,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at`,
		rec.BuildingID, rec.AddressNormalized, lat, lng, rec.ICPBucket,
		rec.Score, rec.Ineligible, string(recordJSON), rec.LastUpdated,
	)
	return eris.Wrapf(err, "postgres: upsert lead %s", rec.BuildingID)
}

func (s *PostgresStore) Get(ctx context.Context, buildingID string) (*model.BuildingRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record FROM leads WHERE building_id = $1`, buildingID)

	var recordJSON string
	err := row.Scan(&recordJSON)
	if eris.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", buildingID)
	}
	return unmarshalRecord(recordJSON)
}

func (s *PostgresStore) FindByAddress(ctx context.Context, normalized string) ([]model.BuildingRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM leads WHERE address_normalized = $1`, normalized)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find by address")
	}
	defer rows.Close()
	return scanPgxRecords(rows)
}

func (s *PostgresStore) List(ctx context.Context, filter LeadFilter) ([]model.BuildingRecord, error) {
	query, args := buildPgListQuery(`SELECT record FROM leads WHERE TRUE`, filter, true)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()
	return scanPgxRecords(rows)
}

func (s *PostgresStore) Count(ctx context.Context, filter LeadFilter) (int, error) {
	query, args := buildPgListQuery(`SELECT COUNT(*) FROM leads WHERE TRUE`, filter, false)
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count leads")
	}
	return n, nil
}

func buildPgListQuery(base string, filter LeadFilter, ordered bool) (string, []any) {
	query := base
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if !filter.IncludeIneligible {
		query += ` AND ineligible = FALSE`
	}
	if filter.MinScore > 0 {
		query += ` AND score >= ` + arg(filter.MinScore)
	}
	if filter.Bucket != "" {
		query += ` AND icp_bucket = ` + arg(filter.Bucket)
	}
	if ordered {
		query += ` ORDER BY score DESC, building_id`
		if filter.Limit > 0 {
			query += ` LIMIT ` + arg(filter.Limit)
			if filter.Offset > 0 {
				query += ` OFFSET ` + arg(filter.Offset)
			}
		}
	}
	return query, args
}

func scanPgxRecords(rows pgx.Rows) ([]model.BuildingRecord, error) {
	var out []model.BuildingRecord
	for rows.Next() {
		var recordJSON string
		if err := rows.Scan(&recordJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		rec, err := unmarshalRecord(recordJSON)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate leads")
}
