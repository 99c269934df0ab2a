// Package merge copies street-level attributes from a resolved road
// centerline onto an address point: the shared street name components, any
// custom per-deployment fields both schemas carry, and the side-dependent
// attributes the point inherits from its side of the street.
package merge

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/parity"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
)

// Unincorporated is the sentinel written to Inc_Muni when no incorporated
// boundary intersects the address point.
const Unincorporated = "UNINCORPORATED"

// BoundaryLayers names the municipal boundary layers used for the
// location-based municipality fallback.
type BoundaryLayers struct {
	Incorporated   string
	Unincorporated string
}

// DefaultBoundaryLayers are the provisioned boundary layer names.
var DefaultBoundaryLayers = BoundaryLayers{
	Incorporated:   "IncorporatedMunicipal",
	Unincorporated: "UnincorporatedMunicipal",
}

// Merger applies centerline attributes to address features.
type Merger struct {
	store      store.FeatureStore
	registry   *schema.Registry
	log        *logger.Logger
	boundaries BoundaryLayers
}

// NewMerger creates a merger resolving schemas through the registry.
func NewMerger(st store.FeatureStore, registry *schema.Registry, log *logger.Logger, boundaries BoundaryLayers) *Merger {
	if boundaries.Incorporated == "" {
		boundaries = DefaultBoundaryLayers
	}
	return &Merger{
		store:      st,
		registry:   registry,
		log:        log.WithComponent("merge"),
		boundaries: boundaries,
	}
}

// MergeStreetAttributes copies street-level fields from the centerline onto
// the address feature, honoring the fill-empty-slots-only policy, then runs
// the municipality fallback. The centerline argument accepts either an OID
// (int64) or an already-built feature. The address is mutated in place and
// returned for chaining.
func (m *Merger) MergeStreetAttributes(ctx context.Context, address *models.Feature, centerline interface{}) (*models.Feature, error) {
	roadSchema, err := m.registry.Load(schema.TypeRoadCenterline)
	if err != nil {
		return nil, fmt.Errorf("failed to load road centerline schema: %w", err)
	}

	line, err := m.resolveCenterlineArg(ctx, roadSchema.Layer, centerline)
	if err != nil {
		return nil, err
	}

	if line != nil {
		matchFields := m.matchFields(address, roadSchema)
		for _, name := range matchFields {
			address.Set(name, line.Get(name))
		}

		if err := m.mergeSideAttributes(address, line); err != nil {
			return nil, err
		}
	}

	if err := m.municipalityFallback(ctx, address); err != nil {
		return nil, err
	}

	return address, nil
}

// resolveCenterlineArg fetches the centerline by OID when necessary. A
// missing OID logs a warning and resolves to nil, matching the resolution
// miss semantics elsewhere: the caller gets the address back unmerged.
func (m *Merger) resolveCenterlineArg(ctx context.Context, layer string, centerline interface{}) (*models.Feature, error) {
	switch v := centerline.(type) {
	case nil:
		return nil, nil
	case *models.Feature:
		return v, nil
	case int64:
		line, err := m.store.Get(ctx, layer, v)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch centerline %d: %w", v, err)
		}
		if line == nil {
			m.log.Warn("Road centerline does not exist, street attributes not merged", map[string]interface{}{
				"oid": v,
			})
		}
		return line, nil
	case int:
		return m.resolveCenterlineArg(ctx, layer, int64(v))
	default:
		return nil, fmt.Errorf("unsupported centerline argument type %T", centerline)
	}
}

// matchFields computes the fields carried from centerline to address: the
// fixed street attribute list plus any centerline schema field the address
// also has, excluding identity, community, and date fields. Custom
// per-deployment fields ride along without a hardcoded list.
func (m *Merger) matchFields(address *models.Feature, roadSchema *schema.Descriptor) []string {
	skip := map[string]bool{}
	for _, n := range schema.SkipNames {
		skip[n] = true
	}
	for _, n := range schema.DateFields {
		skip[n] = true
	}

	fields := make([]string, 0, len(schema.StreetAttributes))
	fields = append(fields, schema.StreetAttributes...)

	inStreet := map[string]bool{}
	for _, n := range schema.StreetAttributes {
		inStreet[n] = true
	}

	for _, name := range roadSchema.FieldNames() {
		if skip[name] || inStreet[name] {
			continue
		}
		if address.HasField(name) {
			fields = append(fields, name)
		}
	}
	return fields
}

// mergeSideAttributes resolves the address's side of the centerline and
// copies every side-mapped attribute plus the side's address number prefix.
func (m *Merger) mergeSideAttributes(address *models.Feature, line *models.Feature) error {
	pt, ok := address.Point()
	if !ok {
		return nil
	}

	res, err := parity.Resolve(pt, line)
	if err != nil {
		return err
	}
	if res == nil {
		return nil
	}

	for _, mapping := range schema.InheritedFields {
		address.Set(mapping.PointField, res.InheritedValue(line, mapping))
	}
	address.Set(schema.FldAddNumPre, res.AddressPrefix)

	m.log.Debug("Merged side attributes", map[string]interface{}{
		"side":   res.Side.String(),
		"parity": res.Parity,
	})
	return nil
}

// municipalityFallback fills the municipality fields from the boundary
// layers when the centerline carried none. Incorporated boundaries are
// checked first, then unincorporated; the smallest intersecting boundary
// wins. Inc_Muni defaults to the UNINCORPORATED sentinel when no
// incorporated boundary contains the point.
func (m *Merger) municipalityFallback(ctx context.Context, address *models.Feature) error {
	if address.Has(schema.FldIncMuni) {
		return nil
	}

	pt, ok := address.Point()
	if !ok {
		return nil
	}

	inc, err := m.store.Intersecting(ctx, m.boundaries.Incorporated, pt)
	if err != nil {
		return fmt.Errorf("failed to query incorporated boundaries: %w", err)
	}
	if len(inc) > 0 {
		address.Set(schema.FldIncMuni, boundaryName(inc[0]))
		return nil
	}

	uninc, err := m.store.Intersecting(ctx, m.boundaries.Unincorporated, pt)
	if err != nil {
		return fmt.Errorf("failed to query unincorporated boundaries: %w", err)
	}
	if len(uninc) > 0 {
		address.Set(schema.FldUnincComm, boundaryName(uninc[0]))
	}

	address.Set(schema.FldIncMuni, Unincorporated)
	return nil
}

// boundaryName reads the display name carried by a municipal boundary.
func boundaryName(f *models.Feature) string {
	for _, field := range []string{"MUNI_NAME", "Name", "NAME"} {
		if v := f.GetString(field); v != "" {
			return v
		}
	}
	return ""
}
