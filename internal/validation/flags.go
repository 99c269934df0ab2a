package validation

import (
	"math"

	"github.com/paulmach/orb"
)

// Flag names one validation rule. Flag names double as column names in the
// AddressFlags table.
type Flag string

const (
	FlagDuplicateAddress         Flag = "DUPLICATE_ADDRESS"
	FlagAddressOutsideRange      Flag = "ADDRESS_OUTSIDE_RANGE"
	FlagInvalidParity            Flag = "INVALID_PARITY"
	FlagDuplicateNENAIdentifier  Flag = "DUPLICATE_NENA_IDENTIFIER"
	FlagMissingNENAIdentifier    Flag = "MISSING_NENA_IDENTIFIER"
	FlagMissingStreetName        Flag = "MISSING_STREET_NAME"
	FlagMissingAddressNumber     Flag = "MISSING_ADDRESS_NUMBER"
	FlagInvalidStreetName        Flag = "INVALID_STREET_NAME"
	FlagInvalidESN               Flag = "INVALID_ESN"
	FlagInvalidIncMunicipality   Flag = "INVALID_INCORPORATED_MUNICIPALITY"
	FlagInvalidUnincMunicipality Flag = "INVALID_UNINCORPORATED_MUNICIPALITY"
	FlagInvalidPostalCode        Flag = "INVALID_POSTAL_CODE"
	FlagInvalidPostalCommunity   Flag = "INVALID_POSTAL_COMMUNITY"
	FlagInvalidMSAG              Flag = "INVALID_MSAG"
	FlagInvalidNeighborhood      Flag = "INVALID_NEIGHBORHOOD_COMMUNITY"
	FlagInvalidAdditionalCode    Flag = "INVALID_ADDITIONAL_CODE"
	FlagInvalidCounty            Flag = "INVALID_COUNTY"
	FlagInvalidState             Flag = "INVALID_STATE"
)

// Rules is the fixed rule battery, in evaluation order. Its length is the
// scoring denominator.
var Rules = []Flag{
	FlagDuplicateAddress,
	FlagAddressOutsideRange,
	FlagInvalidParity,
	FlagDuplicateNENAIdentifier,
	FlagMissingNENAIdentifier,
	FlagMissingStreetName,
	FlagMissingAddressNumber,
	FlagInvalidStreetName,
	FlagInvalidESN,
	FlagInvalidIncMunicipality,
	FlagInvalidUnincMunicipality,
	FlagInvalidPostalCode,
	FlagInvalidPostalCommunity,
	FlagInvalidMSAG,
	FlagInvalidNeighborhood,
	FlagInvalidAdditionalCode,
	FlagInvalidCounty,
	FlagInvalidState,
}

// Result is the flag vector and score for one validated address. Created
// once per validation and never mutated after the validator finishes with it.
type Result struct {
	NENAID    string
	SourceOID int64
	Geometry  orb.Geometry
	flags     map[Flag]int
}

// NewResult creates an empty result for an address.
func NewResult(nenaID string, sourceOID int64, geometry orb.Geometry) *Result {
	return &Result{
		NENAID:    nenaID,
		SourceOID: sourceOID,
		Geometry:  geometry,
		flags:     make(map[Flag]int),
	}
}

// Set raises a flag.
func (r *Result) Set(f Flag) {
	r.flags[f] = 1
}

// IsSet reports whether a flag was raised.
func (r *Result) IsSet(f Flag) bool {
	return r.flags[f] == 1
}

// FlagCount returns the number of raised flags.
func (r *Result) FlagCount() int {
	return len(r.flags)
}

// Score returns the validation score in [0, 100], where 100 means no flags
// and each raised flag subtracts an equal share.
func (r *Result) Score() float64 {
	count := r.FlagCount()
	if count == 0 {
		return 100
	}
	return math.Round(100 - 100*float64(count)/float64(len(Rules)))
}

// RaisedFlags returns the raised flags in rule order.
func (r *Result) RaisedFlags() []Flag {
	var out []Flag
	for _, f := range Rules {
		if r.IsSet(f) {
			out = append(out, f)
		}
	}
	return out
}

// FlagRow returns the attribute row written to the AddressFlags table: one
// column per rule plus the flag count and score.
func (r *Result) FlagRow() map[string]interface{} {
	row := map[string]interface{}{
		"NENA_GUID":        r.NENAID,
		"POINT_OID":        r.SourceOID,
		"FLAG_COUNT":       r.FlagCount(),
		"VALIDATION_SCORE": r.Score(),
	}
	for _, f := range Rules {
		row[string(f)] = r.flags[f]
	}
	return row
}

// ValidatedRow returns the attribute row written to the ValidatedAddresses
// table, marking the address as processed.
func (r *Result) ValidatedRow() map[string]interface{} {
	return map[string]interface{}{
		"NENA_GUID": r.NENAID,
		"POINT_OID": r.SourceOID,
	}
}
