// Package store persists classification snapshots and census-tract
// boundaries behind a driver-agnostic interface.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/biscayne-labs/resilience-cli/internal/pipeline"
)

// SnapshotMeta describes a stored snapshot without its feature payload.
type SnapshotMeta struct {
	RunID        string    `json:"run_id"`
	Generation   uint64    `json:"generation"`
	Layers       []string  `json:"layers"`
	FeatureCount int       `json:"feature_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Tract is a census-tract boundary row. Geom holds EWKB bytes (SRID 4326).
type Tract struct {
	GEOID      string            `json:"geoid"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
	Geom       []byte            `json:"-"`
}

// Store defines persistence for the classification pipeline.
type Store interface {
	// Snapshots
	SaveSnapshot(ctx context.Context, snap *pipeline.Snapshot) error
	LatestSnapshot(ctx context.Context) (*pipeline.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotMeta, error)
	PruneSnapshots(ctx context.Context, keep int) (int, error)

	// Tracts
	UpsertTracts(ctx context.Context, tracts []Tract) (int, error)
	CountTracts(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the given driver. Supported drivers are
// "sqlite" (path) and "postgres" (databaseURL).
func Open(ctx context.Context, driver, path, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, databaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

func snapshotLayerNames(snap *pipeline.Snapshot) []string {
	names := make([]string, 0, len(snap.Layers))
	for name := range snap.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
