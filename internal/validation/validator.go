// Package validation runs the NG911 address rule battery. Each address is
// scored against a fixed set of independent checks; checks never short
// circuit each other, and every processed address is recorded so batch runs
// can skip it next time.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stwalsh4118/ng911/internal/centerline"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/parity"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
)

// sideCheckFlags maps each inherited address attribute to the flag raised
// when it disagrees with the centerline's side-projected value.
var sideCheckFlags = map[string]Flag{
	schema.FldESN:       FlagInvalidESN,
	schema.FldIncMuni:   FlagInvalidIncMunicipality,
	schema.FldUnincComm: FlagInvalidUnincMunicipality,
	schema.FldPostCode:  FlagInvalidPostalCode,
	schema.FldPostComm:  FlagInvalidPostalCommunity,
	schema.FldMSAGComm:  FlagInvalidMSAG,
	schema.FldNbrhdComm: FlagInvalidNeighborhood,
	schema.FldAddCode:   FlagInvalidAdditionalCode,
	schema.FldCounty:    FlagInvalidCounty,
	schema.FldState:     FlagInvalidState,
}

// ErrAddressNotFound signals a validation request for an OID with no row.
var ErrAddressNotFound = errors.New("address not found")

// Validator runs the rule battery against single addresses.
type Validator struct {
	store    store.FeatureStore
	resolver *centerline.Resolver
	log      *logger.Logger

	addrLayer string
	guidField string
}

// NewValidator creates a validator. Schemas for the address and centerline
// layers are resolved through the registry once, up front.
func NewValidator(st store.FeatureStore, registry *schema.Registry, log *logger.Logger) (*Validator, error) {
	addrSchema, err := registry.Load(schema.TypeAddressPoints)
	if err != nil {
		return nil, fmt.Errorf("failed to load address points schema: %w", err)
	}
	roadSchema, err := registry.Load(schema.TypeRoadCenterline)
	if err != nil {
		return nil, fmt.Errorf("failed to load road centerline schema: %w", err)
	}

	return &Validator{
		store:     st,
		resolver:  centerline.NewResolver(st, log, roadSchema.Layer, centerline.ValidationLadder),
		log:       log.WithComponent("validation"),
		addrLayer: addrSchema.Layer,
		guidField: addrSchema.GUIDField,
	}, nil
}

// Validate runs every rule against the address and persists the outcome:
// a row in AddressFlags when any flag is raised, and a row in
// ValidatedAddresses unconditionally.
//
// A caller-supplied centerline skips resolution; otherwise the validation
// radius ladder runs. Failure to resolve any centerline aborts validation
// with an error since none of the parity-based checks can run without one.
func (v *Validator) Validate(ctx context.Context, address *models.Feature, hint *models.Feature) (*Result, error) {
	res := NewResult(address.GetString(v.guidField), address.OID, address.Geometry)

	if err := v.checkDuplicateAddress(ctx, address, res); err != nil {
		return nil, err
	}
	if err := v.checkIdentifier(ctx, address, res); err != nil {
		return nil, err
	}

	line := hint
	if line == nil {
		pt, ok := address.Point()
		if !ok {
			return nil, fmt.Errorf("address %d has no point geometry", address.OID)
		}
		resolved, err := v.resolver.FindNearest(ctx, pt, address.Attributes())
		if err != nil {
			return nil, fmt.Errorf("failed to resolve centerline for address %d: %w", address.OID, err)
		}
		line = resolved
	}

	v.checkRangeAndParity(address, line, res)
	v.checkStreetName(address, line, res)
	v.checkSideAttributes(address, line, res)

	if err := v.persist(ctx, res); err != nil {
		return nil, err
	}

	v.log.Debug("Address validated", map[string]interface{}{
		"oid":        address.OID,
		"nena_id":    res.NENAID,
		"flag_count": res.FlagCount(),
		"score":      res.Score(),
	})
	return res, nil
}

// ValidateOID loads an address row by OID and validates it.
func (v *Validator) ValidateOID(ctx context.Context, oid int64) (*Result, error) {
	addr, err := v.store.Get(ctx, v.addrLayer, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to load address %d: %w", oid, err)
	}
	if addr == nil {
		return nil, fmt.Errorf("%w: oid %d", ErrAddressNotFound, oid)
	}
	return v.Validate(ctx, addr, nil)
}

// checkDuplicateAddress queries for other rows sharing the full locational
// attribute set. Missing street name and address number are flagged
// independently.
func (v *Validator) checkDuplicateAddress(ctx context.Context, address *models.Feature, res *Result) error {
	if !address.Has(schema.FldStName) {
		res.Set(FlagMissingStreetName)
	}
	if !address.Has(schema.FldAddNumber) {
		res.Set(FlagMissingAddressNumber)
	}

	filter := store.Filter{}
	for _, name := range schema.LocationalAttributes {
		if address.Has(name) {
			filter[name] = address.Get(name)
		}
	}
	if len(filter) == 0 {
		return nil
	}

	count, err := v.store.Count(ctx, v.addrLayer, filter)
	if err != nil {
		return fmt.Errorf("duplicate address check failed: %w", err)
	}
	if count > 1 {
		res.Set(FlagDuplicateAddress)
	}
	return nil
}

// checkIdentifier verifies the NENA identifier is present and unique.
func (v *Validator) checkIdentifier(ctx context.Context, address *models.Feature, res *Result) error {
	id := address.GetString(v.guidField)
	if id == "" {
		res.Set(FlagMissingNENAIdentifier)
		return nil
	}

	count, err := v.store.Count(ctx, v.addrLayer, store.Filter{v.guidField: id})
	if err != nil {
		return fmt.Errorf("duplicate identifier check failed: %w", err)
	}
	if count > 1 {
		res.Set(FlagDuplicateNENAIdentifier)
	}
	return nil
}

// checkRangeAndParity verifies the address number against the side's declared
// range and parity.
func (v *Validator) checkRangeAndParity(address *models.Feature, line *models.Feature, res *Result) {
	pt, ok := address.Point()
	if !ok {
		return
	}
	num, ok := address.GetInt(schema.FldAddNumber)
	if !ok {
		return
	}

	pr, err := parity.Resolve(pt, line)
	if err != nil || pr == nil {
		return
	}

	if !pr.InRange(num) {
		res.Set(FlagAddressOutsideRange)
	}
	if !pr.ParityMatches(num) {
		res.Set(FlagInvalidParity)
	}
}

// checkStreetName compares the address street name against the resolved
// centerline's.
func (v *Validator) checkStreetName(address *models.Feature, line *models.Feature, res *Result) {
	if line == nil {
		return
	}
	addrName := strings.TrimSpace(address.GetString(schema.FldStName))
	lineName := strings.TrimSpace(line.GetString(schema.FldStName))
	if addrName == "" || lineName == "" {
		return
	}
	if !strings.EqualFold(addrName, lineName) {
		res.Set(FlagInvalidStreetName)
	}
}

// checkSideAttributes cross-checks every inherited attribute against the
// centerline's side-projected value. Only disagreements between two present
// values flag; an empty value on either side is not a mismatch.
func (v *Validator) checkSideAttributes(address *models.Feature, line *models.Feature, res *Result) {
	pt, ok := address.Point()
	if !ok || line == nil {
		return
	}

	pr, err := parity.Resolve(pt, line)
	if err != nil || pr == nil {
		return
	}

	for _, mapping := range schema.InheritedFields {
		flag, ok := sideCheckFlags[mapping.PointField]
		if !ok {
			continue
		}

		addrVal := strings.TrimSpace(address.GetString(mapping.PointField))
		lineVal := strings.TrimSpace(fmt.Sprintf("%v", valueOrEmpty(pr.InheritedValue(line, mapping))))
		if addrVal == "" || lineVal == "" {
			continue
		}
		if !strings.EqualFold(addrVal, lineVal) {
			res.Set(flag)
		}
	}
}

func valueOrEmpty(v interface{}) interface{} {
	if v == nil {
		return ""
	}
	return v
}

// persist writes the result rows inside one edit session: flagged records to
// AddressFlags, every record to ValidatedAddresses.
func (v *Validator) persist(ctx context.Context, res *Result) error {
	return v.store.WithEdit(ctx, func(ctx context.Context) error {
		if res.FlagCount() > 0 {
			row := models.FromRow(0, res.Geometry, res.FlagRow())
			if _, err := v.store.Insert(ctx, schema.LayerAddressFlags, row); err != nil {
				return fmt.Errorf("failed to write address flags: %w", err)
			}
		}

		row := models.FromRow(0, res.Geometry, res.ValidatedRow())
		if _, err := v.store.Insert(ctx, schema.LayerValidatedAddresses, row); err != nil {
			return fmt.Errorf("failed to record validated address: %w", err)
		}
		return nil
	})
}
