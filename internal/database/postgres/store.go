// Package postgres implements the turbine record store on PostgreSQL.
//
// Connections are pooled with pgxpool. The schema lives in embedded SQL
// migrations applied with goose when the store is opened.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"github.com/openclimatefix/turbine-selector/internal/database"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

//go:embed sql/migrations/*.sql
var embedMigrations embed.FS

const (
	listTurbinesSQL = `
SELECT id, name, type, notes, q_min, q_max, h_min, h_max,
       design_q, design_h, efficiency, efficiency_curve_json
FROM turbines
ORDER BY id`

	getTurbineSQL = `
SELECT id, name, type, notes, q_min, q_max, h_min, h_max,
       design_q, design_h, efficiency, efficiency_curve_json
FROM turbines
WHERE id = $1`

	listSamplesSQL = `
SELECT turbine_id, flow, efficiency
FROM efficiency_curves
WHERE turbine_id = $1
ORDER BY flow`

	insertTurbineSQL = `
INSERT INTO turbines (
    name, type, notes, q_min, q_max, h_min, h_max,
    design_q, design_h, efficiency, efficiency_curve_json
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id`

	insertSampleSQL = `
INSERT INTO efficiency_curves (turbine_id, flow, efficiency)
VALUES ($1, $2, $3)
ON CONFLICT (turbine_id, flow) DO UPDATE SET efficiency = EXCLUDED.efficiency`
)

// pgCheckViolation is the SQLSTATE raised when a CHECK constraint fails.
const pgCheckViolation = "23514"

type turbineRow struct {
	ID         int32    `db:"id"`
	Name       string   `db:"name"`
	Type       *string  `db:"type"`
	Notes      *string  `db:"notes"`
	QMin       float64  `db:"q_min"`
	QMax       float64  `db:"q_max"`
	HMin       float64  `db:"h_min"`
	HMax       float64  `db:"h_max"`
	DesignQ    *float64 `db:"design_q"`
	DesignH    *float64 `db:"design_h"`
	Efficiency *float64 `db:"efficiency"`
	CurveJSON  *string  `db:"efficiency_curve_json"`
}

func (r turbineRow) descriptor() turbine.Descriptor {
	d := turbine.Descriptor{
		ID:         r.ID,
		Name:       r.Name,
		Type:       r.Type,
		Notes:      r.Notes,
		QMin:       r.QMin,
		QMax:       r.QMax,
		HMin:       r.HMin,
		HMax:       r.HMax,
		DesignQ:    r.DesignQ,
		DesignH:    r.DesignH,
		Efficiency: r.Efficiency,
	}
	if r.CurveJSON != nil {
		d.RawCurve = *r.CurveJSON
	}
	return d
}

type sampleRow struct {
	TurbineID  int32   `db:"turbine_id"`
	Flow       float64 `db:"flow"`
	Efficiency float64 `db:"efficiency"`
}

// Options tunes how a Store is opened.
type Options struct {
	// ConnectRetries bounds the number of ping retries at startup.
	ConnectRetries uint64
	// SkipMigrations leaves the schema untouched.
	SkipMigrations bool
}

// Store is a database.TurbineStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to the database at connString, retrying with exponential
// backoff until it answers, and applies any pending migrations.
func New(ctx context.Context, connString string, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), opts.ConnectRetries),
		ctx,
	)
	err = backoff.RetryNotify(
		func() error { return pool.Ping(ctx) },
		bo,
		func(err error, wait time.Duration) {
			log.Warn().Err(err).Dur("retry_in", wait).Msg("Database not ready, retrying")
		},
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if !opts.SkipMigrations {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the embedded migrations.
func (s *Store) Migrate(ctx context.Context) error {
	log.Debug().Msg("Running migrations")
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	if err := goose.UpContext(ctx, db, "sql/migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping implements database.TurbineStore.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return turbine.Wrap(turbine.CodeStoreUnavailable, "database ping failed", err)
	}
	return nil
}

// ListTurbines implements database.TurbineStore.
func (s *Store) ListTurbines(ctx context.Context) ([]turbine.Descriptor, error) {
	l := log.With().Str("method", "ListTurbines").Logger()

	rows, err := s.pool.Query(ctx, listTurbinesSQL)
	if err != nil {
		l.Err(err).Msg("s.pool.Query()")
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "list turbines", err)
	}
	dbTurbines, err := pgx.CollectRows(rows, pgx.RowToStructByName[turbineRow])
	if err != nil {
		l.Err(err).Msg("pgx.CollectRows()")
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "list turbines", err)
	}

	descriptors := make([]turbine.Descriptor, len(dbTurbines))
	for i, r := range dbTurbines {
		descriptors[i] = r.descriptor()
	}
	l.Debug().Int("count", len(descriptors)).Msg("listed turbines")
	return descriptors, nil
}

// GetTurbine implements database.TurbineStore.
func (s *Store) GetTurbine(ctx context.Context, id int32) (turbine.Descriptor, error) {
	l := log.With().Str("method", "GetTurbine").Int32("id", id).Logger()

	rows, err := s.pool.Query(ctx, getTurbineSQL, id)
	if err != nil {
		l.Err(err).Msg("s.pool.Query()")
		return turbine.Descriptor{}, turbine.Wrap(turbine.CodeStoreUnavailable, "get turbine", err)
	}
	r, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[turbineRow])
	if errors.Is(err, pgx.ErrNoRows) {
		return turbine.Descriptor{}, turbine.Errorf(turbine.CodeNotFound, "no turbine with id %d", id)
	}
	if err != nil {
		l.Err(err).Msg("pgx.CollectExactlyOneRow()")
		return turbine.Descriptor{}, turbine.Wrap(turbine.CodeStoreUnavailable, "get turbine", err)
	}
	return r.descriptor(), nil
}

// ListEfficiencySamples implements database.TurbineStore.
func (s *Store) ListEfficiencySamples(ctx context.Context, id int32) ([]turbine.EfficiencySample, error) {
	l := log.With().Str("method", "ListEfficiencySamples").Int32("id", id).Logger()

	rows, err := s.pool.Query(ctx, listSamplesSQL, id)
	if err != nil {
		l.Err(err).Msg("s.pool.Query()")
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "list efficiency samples", err)
	}
	dbSamples, err := pgx.CollectRows(rows, pgx.RowToStructByName[sampleRow])
	if err != nil {
		l.Err(err).Msg("pgx.CollectRows()")
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "list efficiency samples", err)
	}

	samples := make([]turbine.EfficiencySample, len(dbSamples))
	for i, r := range dbSamples {
		samples[i] = turbine.EfficiencySample(r)
	}
	return samples, nil
}

// CreateTurbine inserts d and its efficiency samples in one transaction and
// returns the new id. The serialized curve is taken from d.RawCurve, or
// encoded from d.Curve when RawCurve is empty. A curve that cannot be decoded
// is stored verbatim without samples.
func (s *Store) CreateTurbine(ctx context.Context, d turbine.Descriptor) (int32, error) {
	ids, err := s.CreateTurbines(ctx, []turbine.Descriptor{d})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// CreateTurbines inserts every descriptor in a single transaction: either all
// of them are stored or none is. Ids are assigned by the database in input
// order. Rows are appended, so inserting the same catalog twice stores it twice.
func (s *Store) CreateTurbines(ctx context.Context, ds []turbine.Descriptor) ([]int32, error) {
	l := log.With().Str("method", "CreateTurbines").Int("count", len(ds)).Logger()

	for _, d := range ds {
		if err := d.Validate(); err != nil {
			return nil, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		l.Err(err).Msg("s.pool.Begin()")
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "begin transaction", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]int32, 0, len(ds))
	for _, d := range ds {
		id, err := insertTurbine(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		l.Err(err).Msg("tx.Commit()")
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "commit turbines", err)
	}
	l.Debug().Msg("created turbines")
	return ids, nil
}

func insertTurbine(ctx context.Context, tx pgx.Tx, d turbine.Descriptor) (int32, error) {
	l := log.With().Str("method", "insertTurbine").Str("name", d.Name).Logger()

	raw := d.RawCurve
	if raw == "" && len(d.Curve) > 0 {
		encoded, err := turbine.EncodeCurve(d.Curve)
		if err != nil {
			return 0, err
		}
		raw = encoded
	}
	samples, err := turbine.DecodeCurve(raw)
	if err != nil {
		l.Warn().Err(err).Msg("storing undecodable efficiency curve without samples")
		samples = nil
	}
	var curveJSON *string
	if raw != "" {
		curveJSON = &raw
	}

	var id int32
	err = tx.QueryRow(ctx, insertTurbineSQL,
		d.Name, d.Type, d.Notes, d.QMin, d.QMax, d.HMin, d.HMax,
		d.DesignQ, d.DesignH, d.Efficiency, curveJSON,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return 0, turbine.Wrap(turbine.CodeInvalidDescriptor,
				fmt.Sprintf("turbine %q violates envelope constraints", d.Name), err)
		}
		l.Err(err).Msg("tx.QueryRow()")
		return 0, turbine.Wrap(turbine.CodeStoreUnavailable, "insert turbine", err)
	}

	if len(samples) > 0 {
		batch := &pgx.Batch{}
		for _, smp := range samples {
			batch.Queue(insertSampleSQL, id, smp.Flow, smp.Efficiency)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			l.Err(err).Msg("tx.SendBatch()")
			return 0, turbine.Wrap(turbine.CodeStoreUnavailable, "insert efficiency samples", err)
		}
	}
	l.Debug().Int32("id", id).Int("samples", len(samples)).Msg("created turbine")
	return id, nil
}

var _ database.TurbineStore = (*Store)(nil)
