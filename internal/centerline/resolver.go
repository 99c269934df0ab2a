// Package centerline resolves the road centerline serving a point. Candidate
// segments are narrowed by any known street name attributes, then by a
// progressively widening search radius, with planar distance breaking ties.
package centerline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/parity"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
)

// ErrNoCenterline signals that no candidate centerline matched the attribute
// filter. Callers treat it as "cannot resolve" and skip the record.
var ErrNoCenterline = errors.New("no matching road centerline")

// ErrLadderExhausted signals that candidates matched the attribute filter but
// none fell within any radius of the escalation ladder.
var ErrLadderExhausted = errors.New("search radius ladder exhausted with no candidates")

// Radius escalation ladders, in the linear unit of the deployment's spatial
// reference (feet for Illinois state plane).
var (
	// CreationLadder is used when placing new address points.
	CreationLadder = []float64{200, 500, 1000, 3000}

	// ValidationLadder is used when validating existing addresses.
	ValidationLadder = []float64{600, 1000, 1500, 2000}
)

// Candidate is a resolved centerline with its planar distance to the query
// point.
type Candidate struct {
	Feature  *models.Feature
	Distance float64
}

// Resolver finds the nearest candidate centerline(s) for a point.
type Resolver struct {
	store  store.FeatureStore
	log    *logger.Logger
	layer  string
	ladder []float64
}

// NewResolver creates a resolver over the given centerline layer using the
// supplied radius ladder.
func NewResolver(st store.FeatureStore, log *logger.Logger, layer string, ladder []float64) *Resolver {
	if len(ladder) == 0 {
		ladder = CreationLadder
	}
	return &Resolver{
		store:  st,
		log:    log.WithComponent("centerline"),
		layer:  layer,
		ladder: ladder,
	}
}

// StreetFilter builds an attribute filter from the street-name-like
// attributes present on the input. Only attributes with values participate.
func StreetFilter(attrs map[string]interface{}) store.Filter {
	filter := store.Filter{}
	for _, name := range schema.StreetFilterAttributes {
		if v, ok := attrs[name]; ok && !models.IsEmpty(v) {
			filter[name] = v
		}
	}
	return filter
}

// FindNearest resolves the single nearest centerline for the point,
// optionally narrowed by street name attributes.
//
// Returns ErrNoCenterline when the attribute filter matches nothing, and
// ErrLadderExhausted when no attribute-matching segment falls within any
// radius of the ladder.
func (r *Resolver) FindNearest(ctx context.Context, pt orb.Point, attrs map[string]interface{}) (*models.Feature, error) {
	candidates, err := r.FindCandidates(ctx, pt, attrs)
	if err != nil {
		return nil, err
	}
	return candidates[0].Feature, nil
}

// FindCandidates resolves the candidate centerlines for a point. When
// multiple distinct street names tie within the winning radius, candidates
// are grouped by normalized name + type, only the closest representative per
// group is kept, and groups are returned sorted by ascending distance.
func (r *Resolver) FindCandidates(ctx context.Context, pt orb.Point, attrs map[string]interface{}) ([]Candidate, error) {
	filter := StreetFilter(attrs)

	if len(filter) > 0 {
		matched, err := r.store.Query(ctx, r.layer, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to query centerlines: %w", err)
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("%w: filter %v", ErrNoCenterline, filter)
		}
		if len(matched) == 1 {
			r.logResolved(matched[0])
			return []Candidate{{
				Feature:  matched[0],
				Distance: models.DistanceToGeometry(matched[0].Geometry, pt),
			}}, nil
		}
	}

	// more than one (or no attribute hint at all): widen the search radius
	// until something is in range
	for _, radius := range r.ladder {
		within, err := r.store.QueryWithinDistance(ctx, r.layer, pt, radius, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to query centerlines within %g: %w", radius, err)
		}
		if len(within) == 0 {
			continue
		}

		r.log.Debug("Centerline candidates found", map[string]interface{}{
			"radius":     radius,
			"candidates": len(within),
		})
		candidates := groupCandidates(within, pt)
		r.logResolved(candidates[0].Feature)
		return candidates, nil
	}

	return nil, fmt.Errorf("%w: radii %v", ErrLadderExhausted, r.ladder)
}

// logResolved records the winning candidate's street, azimuth and cardinal
// direction for troubleshooting side-of-street results.
func (r *Resolver) logResolved(f *models.Feature) {
	ls, ok := parity.LineGeometry(f)
	if !ok {
		return
	}
	ns, ew := parity.LineDirection(ls)
	r.log.Debug("Resolved centerline", map[string]interface{}{
		"street":    NormalizedStreetKey(f),
		"angle":     parity.LineAngle(ls),
		"direction": ns + ew,
	})
}

// groupCandidates keeps the closest segment per normalized street name +
// type and returns the groups sorted nearest first.
func groupCandidates(features []*models.Feature, pt orb.Point) []Candidate {
	best := map[string]Candidate{}
	for _, f := range features {
		d := models.DistanceToGeometry(f.Geometry, pt)
		key := NormalizedStreetKey(f)
		if cur, ok := best[key]; !ok || d < cur.Distance {
			best[key] = Candidate{Feature: f, Distance: d}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// NormalizedStreetKey builds the grouping key for a centerline: upper-cased
// street name plus post type with whitespace collapsed.
func NormalizedStreetKey(f *models.Feature) string {
	name := strings.ToUpper(strings.TrimSpace(f.GetString(schema.FldStName)))
	typ := strings.ToUpper(strings.TrimSpace(f.GetString(schema.FldStPosTyp)))
	return strings.Join(strings.Fields(name+" "+typ), " ")
}
