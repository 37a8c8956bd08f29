package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/biscayne-labs/resilience-cli/internal/db"
	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_snapshot": `INSERT INTO snapshots (run_id, generation, layers, feature_count, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
	"latest_snapshot": `SELECT payload FROM snapshots ORDER BY generation DESC LIMIT 1`,
	"count_tracts":    `SELECT COUNT(*) FROM tracts`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// newPostgresWithPool wires an existing pool, used by tests with pgxmock.
func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS snapshots (
	run_id        TEXT PRIMARY KEY,
	generation    BIGINT NOT NULL,
	layers        TEXT NOT NULL,
	feature_count INTEGER NOT NULL,
	payload       JSONB NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tracts (
	geoid      TEXT PRIMARY KEY,
	name       TEXT,
	properties JSONB,
	geom       BYTEA,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_snapshots_generation ON snapshots(generation DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *pipeline.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshots (run_id, generation, layers, feature_count, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.RunID, int64(snap.Generation), strings.Join(snapshotLayerNames(snap), ","),
		snap.FeatureCount(), payload, snap.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert snapshot")
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context) (*pipeline.Snapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM snapshots ORDER BY generation DESC LIMIT 1`,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest snapshot")
	}

	var snap pipeline.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, generation, layers, feature_count, created_at
		 FROM snapshots ORDER BY generation DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list snapshots")
	}
	defer rows.Close()

	var metas []SnapshotMeta
	for rows.Next() {
		var m SnapshotMeta
		var gen int64
		var layers string
		if err := rows.Scan(&m.RunID, &gen, &layers, &m.FeatureCount, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan snapshot")
		}
		m.Generation = uint64(gen)
		if layers != "" {
			m.Layers = strings.Split(layers, ",")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "postgres: list snapshots iterate")
}

func (s *PostgresStore) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM snapshots WHERE run_id NOT IN (
			SELECT run_id FROM snapshots ORDER BY generation DESC LIMIT $1
		)`,
		keep,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: prune snapshots")
	}
	return int(tag.RowsAffected()), nil
}

// tractColumns matches the tracts table for bulk upsert loading.
var tractColumns = []string{"geoid", "name", "properties", "geom", "updated_at"}

func (s *PostgresStore) UpsertTracts(ctx context.Context, tracts []Tract) (int, error) {
	if len(tracts) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(tracts))
	for _, t := range tracts {
		propsJSON, err := json.Marshal(t.Properties)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal tract %s properties", t.GEOID)
		}
		rows = append(rows, []any{t.GEOID, t.Name, propsJSON, t.Geom, now})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "tracts",
		Columns:      tractColumns,
		ConflictKeys: []string{"geoid"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert tracts")
	}
	return int(n), nil
}

func (s *PostgresStore) CountTracts(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tracts`).Scan(&count)
	return count, eris.Wrap(err, "postgres: count tracts")
}
