// Package store defines the feature store contract the NG911 engine runs
// against, plus the Postgres/PostGIS implementation. The engine never touches
// SQL directly; every component takes a FeatureStore by injection so tests
// and dry runs can substitute the in-memory implementation.
package store

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/models"
)

// Filter is an attribute equality filter: every key must match the stored
// attribute value exactly.
type Filter map[string]interface{}

// FeatureStore is the spatial data store contract.
//
// Read methods return nil (or an empty slice) for "not found" rather than an
// error; errors are reserved for actual store failures. Distances and radii
// are in the linear unit of the deployment's spatial reference.
type FeatureStore interface {
	// Get returns the feature with the given OID, or nil when absent.
	Get(ctx context.Context, layer string, oid int64) (*models.Feature, error)

	// Query returns all features matching the attribute filter. A nil or
	// empty filter returns every feature in the layer.
	Query(ctx context.Context, layer string, filter Filter) ([]*models.Feature, error)

	// QueryRange returns features whose OID falls in [minOID, maxOID].
	QueryRange(ctx context.Context, layer string, minOID, maxOID int64) ([]*models.Feature, error)

	// QueryWithinDistance returns features within radius of the point,
	// optionally narrowed by an attribute filter, ordered nearest first.
	QueryWithinDistance(ctx context.Context, layer string, pt orb.Point, radius float64, filter Filter) ([]*models.Feature, error)

	// Intersecting returns polygon features containing the point, ordered by
	// ascending area so overlapping boundaries break ties deterministically.
	Intersecting(ctx context.Context, layer string, pt orb.Point) ([]*models.Feature, error)

	// Count returns the number of features matching the filter.
	Count(ctx context.Context, layer string, filter Filter) (int64, error)

	// OIDRange returns the minimum and maximum OID in the layer. Both are
	// zero for an empty layer.
	OIDRange(ctx context.Context, layer string) (int64, int64, error)

	// Insert writes a new feature and returns its assigned OID.
	Insert(ctx context.Context, layer string, f *models.Feature) (int64, error)

	// Update rewrites the attributes and geometry of an existing feature.
	Update(ctx context.Context, layer string, f *models.Feature) error

	// Delete removes the feature with the given OID.
	Delete(ctx context.Context, layer string, oid int64) error

	// WithEdit runs fn inside an edit session. If the context already
	// carries an open session the call joins it; otherwise a new session is
	// opened, committed on success, and rolled back on error. Teardown is
	// guaranteed on every exit path.
	WithEdit(ctx context.Context, fn func(ctx context.Context) error) error
}
