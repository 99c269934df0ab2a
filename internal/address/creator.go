// Package address builds new NG911 address points: schema-constrained
// attributes, street attributes merged from the nearest centerline, derived
// coordinate and custom fields, and a freshly allocated NENA identifier, all
// committed in one edit session.
package address

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/centerline"
	"github.com/stwalsh4118/ng911/internal/config"
	"github.com/stwalsh4118/ng911/internal/expr"
	"github.com/stwalsh4118/ng911/internal/identifier"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/merge"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
)

// Creator assembles and persists new address point features.
type Creator struct {
	store     store.FeatureStore
	allocator *identifier.Allocator
	resolver  *centerline.Resolver
	merger    *merge.Merger
	log       *logger.Logger

	addrSchema *schema.Descriptor
	agency     config.NG911Config
}

// NewCreator creates an address point creator. The address and road
// centerline schemas are resolved through the registry once, up front.
func NewCreator(st store.FeatureStore, registry *schema.Registry, allocator *identifier.Allocator, log *logger.Logger, agency config.NG911Config) (*Creator, error) {
	addrSchema, err := registry.Load(schema.TypeAddressPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to load address points schema: %w", err)
	}
	roadSchema, err := registry.Load(schema.TypeRoadCenterline)
	if err != nil {
		return nil, fmt.Errorf("failed to load road centerline schema: %w", err)
	}

	return &Creator{
		store:      st,
		allocator:  allocator,
		resolver:   centerline.NewResolver(st, log, roadSchema.Layer, centerline.CreationLadder),
		merger:     merge.NewMerger(st, registry, log, merge.DefaultBoundaryLayers),
		log:        log.WithComponent("address"),
		addrSchema: addrSchema,
		agency:     agency,
	}, nil
}

// Create builds an address point at the given location from caller-supplied
// attributes and persists it.
//
// The nearest centerline is resolved through the creation radius ladder and
// its street attributes merged onto the point; a resolution miss is logged
// and the point is still created, since the municipality fallback and manual
// attributes may carry enough. Custom schema fields are computed, a NENA
// identifier allocated, and the feature inserted, all in one edit session.
func (c *Creator) Create(ctx context.Context, pt orb.Point, attrs map[string]interface{}) (*models.Feature, error) {
	f := models.NewFeature(c.writableFields(), pt, attrs)

	line, err := c.resolveCenterline(ctx, pt, attrs)
	if err != nil {
		return nil, err
	}

	if _, err := c.merger.MergeStreetAttributes(ctx, f, line); err != nil {
		return nil, err
	}

	c.stampDerivedFields(f, pt)
	c.applyCustomFields(f)

	err = c.store.WithEdit(ctx, func(ctx context.Context) error {
		id, err := c.allocator.NewID(ctx, c.addrSchema)
		if err != nil {
			return fmt.Errorf("failed to allocate NENA identifier: %w", err)
		}
		f.Put(c.addrSchema.GUIDField, id)

		oid, err := c.store.Insert(ctx, c.addrSchema.Layer, f)
		if err != nil {
			return fmt.Errorf("failed to insert address point: %w", err)
		}
		f.OID = oid

		return c.allocator.Flush(ctx)
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("Address point created", map[string]interface{}{
		"oid":     f.OID,
		"nena_id": f.GetString(c.addrSchema.GUIDField),
	})
	return f, nil
}

// writableFields is the schema field set plus the custom field names, so
// computed custom values have somewhere to land.
func (c *Creator) writableFields() []string {
	fields := c.addrSchema.FieldNames()
	for _, cf := range c.addrSchema.CustomFields {
		if !c.addrSchema.HasField(cf.Name) {
			fields = append(fields, cf.Name)
		}
	}
	return fields
}

// resolveCenterline runs the creation radius ladder. Resolution misses are
// data-quality conditions, not failures: they log and resolve to nil.
func (c *Creator) resolveCenterline(ctx context.Context, pt orb.Point, attrs map[string]interface{}) (*models.Feature, error) {
	line, err := c.resolver.FindNearest(ctx, pt, attrs)
	if err != nil {
		if errors.Is(err, centerline.ErrNoCenterline) || errors.Is(err, centerline.ErrLadderExhausted) {
			c.log.Warn("No centerline resolved for new address, street attributes not merged", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, nil
		}
		return nil, err
	}
	return line, nil
}

// stampDerivedFields fills the coordinate and agency identity fields.
func (c *Creator) stampDerivedFields(f *models.Feature, pt orb.Point) {
	f.Set(schema.FldLongitude, pt.X())
	f.Set(schema.FldLatitude, pt.Y())
	f.Set("DiscrpAgID", c.agency.AgencyID)
	f.Set(schema.FldCountry, "US")
}

// applyCustomFields evaluates the schema's custom field expressions against
// the feature's current attributes. Plain text templates interpolate; anything
// that parses as an expression evaluates. Failures log and skip the field.
func (c *Creator) applyCustomFields(f *models.Feature) {
	for _, cf := range c.addrSchema.CustomFields {
		value, err := evalCustomField(cf.Expression, f.Attributes())
		if err != nil {
			c.log.Warn("Custom field expression failed", map[string]interface{}{
				"field":      cf.Name,
				"expression": cf.Expression,
				"error":      err.Error(),
			})
			continue
		}
		f.Put(cf.Name, value)
	}
}

// evalCustomField tries the arithmetic evaluator first and falls back to
// token interpolation for plain text templates like "{St_Name} {St_PosTyp}".
func evalCustomField(expression string, fields map[string]interface{}) (interface{}, error) {
	value, err := expr.Eval(expression, fields)
	if err == nil {
		return value, nil
	}
	if errors.Is(err, expr.ErrParse) {
		return expr.Interpolate(expression, fields), nil
	}
	return nil, err
}
