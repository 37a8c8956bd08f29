package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
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
CREATE TABLE IF NOT EXISTS snapshots (
	run_id        TEXT PRIMARY KEY,
	generation    INTEGER NOT NULL,
	layers        TEXT NOT NULL,
	feature_count INTEGER NOT NULL,
	payload       TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS tracts (
	geoid      TEXT PRIMARY KEY,
	name       TEXT,
	properties TEXT,
	geom       BLOB,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_snapshots_generation ON snapshots(generation DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_created_at ON snapshots(created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *pipeline.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, generation, layers, feature_count, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		snap.RunID, int64(snap.Generation), strings.Join(snapshotLayerNames(snap), ","),
		snap.FeatureCount(), string(payload), snap.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert snapshot")
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context) (*pipeline.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots ORDER BY generation DESC LIMIT 1`,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest snapshot")
	}

	var snap pipeline.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context, limit int) ([]SnapshotMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, generation, layers, feature_count, created_at
		 FROM snapshots ORDER BY generation DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list snapshots")
	}
	defer rows.Close()

	var metas []SnapshotMeta
	for rows.Next() {
		var m SnapshotMeta
		var gen int64
		var layers string
		if err := rows.Scan(&m.RunID, &gen, &layers, &m.FeatureCount, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan snapshot")
		}
		m.Generation = uint64(gen)
		if layers != "" {
			m.Layers = strings.Split(layers, ",")
		}
		metas = append(metas, m)
	}
	return metas, eris.Wrap(rows.Err(), "sqlite: list snapshots iterate")
}

func (s *SQLiteStore) PruneSnapshots(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE run_id NOT IN (
			SELECT run_id FROM snapshots ORDER BY generation DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prune snapshots")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpsertTracts(ctx context.Context, tracts []Tract) (int, error) {
	if len(tracts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert tracts")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tracts (geoid, name, properties, geom, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (geoid) DO UPDATE SET
		   name = excluded.name, properties = excluded.properties,
		   geom = excluded.geom, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert tracts")
	}
	defer stmt.Close()

	for _, t := range tracts {
		propsJSON, err := json.Marshal(t.Properties)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal tract %s properties", t.GEOID)
		}
		if _, err := stmt.ExecContext(ctx, t.GEOID, t.Name, string(propsJSON), t.Geom); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert tract %s", t.GEOID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert tracts")
	}
	return len(tracts), nil
}

func (s *SQLiteStore) CountTracts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tracts`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count tracts")
}
