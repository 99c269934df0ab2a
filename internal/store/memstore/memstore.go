// Package memstore is an in-memory FeatureStore used for dry runs and tests.
// Spatial predicates are evaluated with orb/planar math instead of PostGIS,
// but the contract matches the Postgres adapter: same not-found semantics,
// same nearest-first and smallest-area orderings.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/store"
)

type layerData struct {
	nextOID int64
	rows    map[int64]*models.Feature
}

// Store is an in-memory FeatureStore.
type Store struct {
	mu     sync.RWMutex
	layers map[string]*layerData
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{layers: make(map[string]*layerData)}
}

func (s *Store) layer(name string) *layerData {
	l, ok := s.layers[name]
	if !ok {
		l = &layerData{nextOID: 1, rows: make(map[int64]*models.Feature)}
		s.layers[name] = l
	}
	return l
}

// Seed inserts a feature directly, for test fixtures.
func (s *Store) Seed(layer string, f *models.Feature) int64 {
	oid, _ := s.Insert(context.Background(), layer, f)
	return oid
}

func (s *Store) Get(ctx context.Context, layer string, oid int64) (*models.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.layers[layer]
	if !ok {
		return nil, nil
	}
	f, ok := l.rows[oid]
	if !ok {
		return nil, nil
	}
	return cloneFeature(f), nil
}

func (s *Store) Query(ctx context.Context, layer string, filter store.Filter) ([]*models.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Feature{}
	l, ok := s.layers[layer]
	if !ok {
		return out, nil
	}

	for _, f := range l.rows {
		if matches(f, filter) {
			out = append(out, cloneFeature(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OID < out[j].OID })
	return out, nil
}

func (s *Store) QueryRange(ctx context.Context, layer string, minOID, maxOID int64) ([]*models.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Feature{}
	l, ok := s.layers[layer]
	if !ok {
		return out, nil
	}

	for oid, f := range l.rows {
		if oid >= minOID && oid <= maxOID {
			out = append(out, cloneFeature(f))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OID < out[j].OID })
	return out, nil
}

func (s *Store) QueryWithinDistance(ctx context.Context, layer string, pt orb.Point, radius float64, filter store.Filter) ([]*models.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type hit struct {
		f *models.Feature
		d float64
	}

	hits := []hit{}
	l, ok := s.layers[layer]
	if !ok {
		return []*models.Feature{}, nil
	}

	for _, f := range l.rows {
		if f.Geometry == nil || !matches(f, filter) {
			continue
		}
		if d := models.DistanceToGeometry(f.Geometry, pt); d <= radius {
			hits = append(hits, hit{f: f, d: d})
		}
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	out := make([]*models.Feature, 0, len(hits))
	for _, h := range hits {
		out = append(out, cloneFeature(h.f))
	}
	return out, nil
}

func (s *Store) Intersecting(ctx context.Context, layer string, pt orb.Point) ([]*models.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Feature{}
	l, ok := s.layers[layer]
	if !ok {
		return out, nil
	}

	for _, f := range l.rows {
		if f.Geometry != nil && models.GeometryContains(f.Geometry, pt) {
			out = append(out, cloneFeature(f))
		}
	}

	// smallest boundary wins when polygons overlap
	sort.Slice(out, func(i, j int) bool {
		return models.GeometryArea(out[i].Geometry) < models.GeometryArea(out[j].Geometry)
	})
	return out, nil
}

func (s *Store) Count(ctx context.Context, layer string, filter store.Filter) (int64, error) {
	features, err := s.Query(ctx, layer, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(features)), nil
}

func (s *Store) OIDRange(ctx context.Context, layer string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.layers[layer]
	if !ok || len(l.rows) == 0 {
		return 0, 0, nil
	}

	var min, max int64
	first := true
	for oid := range l.rows {
		if first {
			min, max = oid, oid
			first = false
			continue
		}
		if oid < min {
			min = oid
		}
		if oid > max {
			max = oid
		}
	}
	return min, max, nil
}

func (s *Store) Insert(ctx context.Context, layer string, f *models.Feature) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.layer(layer)
	oid := l.nextOID
	l.nextOID++

	f.OID = oid
	l.rows[oid] = cloneFeature(f)
	return oid, nil
}

func (s *Store) Update(ctx context.Context, layer string, f *models.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.layer(layer)
	if _, ok := l.rows[f.OID]; !ok {
		return fmt.Errorf("feature %d not found in %s", f.OID, layer)
	}
	l.rows[f.OID] = cloneFeature(f)
	return nil
}

func (s *Store) Delete(ctx context.Context, layer string, oid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.layers[layer]; ok {
		delete(l.rows, oid)
	}
	return nil
}

// WithEdit runs fn directly; the in-memory store applies writes immediately
// and has no transaction to join.
func (s *Store) WithEdit(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func matches(f *models.Feature, filter store.Filter) bool {
	for k, want := range filter {
		if !valuesEqual(f.Get(k), want) {
			return false
		}
	}
	return true
}

// valuesEqual compares attribute values loosely across numeric types, the
// same way jsonb equality treats 142 and 142.0 as equal.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
		return false
	}
	return a == b
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cloneFeature(f *models.Feature) *models.Feature {
	return models.FromRow(f.OID, f.Geometry, f.Attributes())
}
