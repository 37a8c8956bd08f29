package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Loader is the fetch boundary: it produces parsed inputs for one refresh.
// Implementations own transport concerns (HTTP, FTP, files); the engine owns
// ordering, degradation, and staleness.
type Loader interface {
	Projects(ctx context.Context) (*geojson.FeatureCollection, error)
	Risk(ctx context.Context) (*geojson.FeatureCollection, error)
	SideTable(ctx context.Context) (SideTable, error)
}

// LayerResult is the render-ready output for one layer.
type LayerResult struct {
	Collection *geojson.FeatureCollection `json:"collection"`
	Stats      *Stats                     `json:"stats"`
	Style      LayerStyle                 `json:"style"`
}

// Snapshot is one immutable classification pass over all layers. Consumers
// hold it by reference; nothing mutates it after publication.
type Snapshot struct {
	RunID      string                  `json:"run_id"`
	Generation uint64                  `json:"generation"`
	Layers     map[string]*LayerResult `json:"layers"`
	CreatedAt  time.Time               `json:"created_at"`
}

// FeatureCount returns the total features across all layers.
func (s *Snapshot) FeatureCount() int {
	if s == nil {
		return 0
	}
	var n int
	for _, lr := range s.Layers {
		if lr != nil && lr.Stats != nil {
			n += lr.Stats.Total
		}
	}
	return n
}

// Engine runs the classification pipeline and publishes immutable snapshots.
// Refresh is re-entrant: each call fetches fresh inputs, recomputes every
// layer from scratch, and publishes the result unless a newer generation has
// already been published (stale in-flight refreshes are discarded by the
// monotonic generation counter).
type Engine struct {
	loader Loader
	layers map[string]LayerConfig

	gen     atomic.Uint64
	mu      sync.RWMutex
	current *Snapshot
}

// NewEngine creates an Engine for the given loader and layer configurations.
func NewEngine(loader Loader, layers map[string]LayerConfig) *Engine {
	if layers == nil {
		layers = DefaultLayers()
	}
	return &Engine{loader: loader, layers: layers}
}

// Current returns the most recently published snapshot, or nil before the
// first successful refresh.
func (e *Engine) Current() *Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Restore installs a previously persisted snapshot as the current one and
// advances the generation counter past it, so the next refresh supersedes
// the restored snapshot instead of being discarded as stale.
func (e *Engine) Restore(snap *Snapshot) {
	if snap == nil {
		return
	}
	for {
		cur := e.gen.Load()
		if cur >= snap.Generation || e.gen.CompareAndSwap(cur, snap.Generation) {
			break
		}
	}
	e.publish(snap)
}

// Layers returns the configured layer names and configs.
func (e *Engine) Layers() map[string]LayerConfig {
	return e.layers
}

// Refresh fetches all inputs concurrently, classifies every layer, and
// publishes a new snapshot. A failed or missing source degrades to an empty
// input (logged, never fatal): the worst case is a fully-neutral
// classification, not a pipeline failure. The returned snapshot is whichever
// one is current after publication, so a refresh that lost the race to a
// newer generation returns the newer snapshot.
func (e *Engine) Refresh(ctx context.Context) (*Snapshot, error) {
	gen := e.gen.Add(1)

	var (
		projects *geojson.FeatureCollection
		risk     *geojson.FeatureCollection
		side     SideTable
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fc, err := e.loader.Projects(gctx)
		if err != nil {
			zap.L().Warn("pipeline: projects source unavailable, proceeding empty", zap.Error(err))
			return nil
		}
		projects = fc
		return nil
	})
	g.Go(func() error {
		fc, err := e.loader.Risk(gctx)
		if err != nil {
			zap.L().Warn("pipeline: risk source unavailable, proceeding empty", zap.Error(err))
			return nil
		}
		risk = fc
		return nil
	})
	g.Go(func() error {
		st, err := e.loader.SideTable(gctx)
		if err != nil {
			zap.L().Warn("pipeline: side table unavailable, enrichment will be null", zap.Error(err))
			return nil
		}
		side = st
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if side == nil {
		side = SideTable{}
	}

	snap := e.build(gen, projects, risk, side)
	return e.publish(snap), nil
}

// build runs the full pipeline for one generation: normalize, tract
// assignment, classification, statistics, styles.
func (e *Engine) build(gen uint64, projects, risk *geojson.FeatureCollection, side SideTable) *Snapshot {
	projects = Normalize(projects)
	risk = Normalize(risk)

	snap := &Snapshot{
		RunID:      uuid.New().String(),
		Generation: gen,
		Layers:     make(map[string]*LayerResult, len(e.layers)),
		CreatedAt:  time.Now().UTC(),
	}

	tractID := e.tractIDProperty()
	for name, cfg := range e.layers {
		src := risk
		if cfg.Source == SourceProjects {
			src = projects
		}
		if cfg.AssignTracts {
			src = AssignTracts(src, risk, tractID)
		}

		enriched, stats := ClassifyCollection(src, side, cfg)
		snap.Layers[name] = &LayerResult{
			Collection: enriched,
			Stats:      stats,
			Style:      BuildStyle(cfg, stats),
		}
	}

	return snap
}

// tractIDProperty resolves the tract identifier property from the risk
// layer's configuration, falling back to the TIGER default.
func (e *Engine) tractIDProperty() string {
	for _, cfg := range e.layers {
		if cfg.Source == SourceRisk && cfg.IDProperty != "" {
			return cfg.IDProperty
		}
	}
	return "GEOID"
}

// publish installs the snapshot unless a newer generation already landed.
func (e *Engine) publish(snap *Snapshot) *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && snap.Generation < e.current.Generation {
		zap.L().Debug("pipeline: discarding stale snapshot",
			zap.Uint64("stale_generation", snap.Generation),
			zap.Uint64("current_generation", e.current.Generation),
		)
		return e.current
	}
	e.current = snap
	zap.L().Info("pipeline: published snapshot",
		zap.String("run_id", snap.RunID),
		zap.Uint64("generation", snap.Generation),
		zap.Int("features", snap.FeatureCount()),
	)
	return snap
}
