package models

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb"
)

// Feature is a single row from (or destined for) a feature layer: an optional
// geometry plus a mapping of field name to value. The writable field set is
// fixed by the owning schema; when the field list is empty the feature accepts
// any attribute name (used for control tables like NENA_IDs).
//
// Attribute updates follow a fill-empty-slots-only policy: once a field holds
// a non-empty value it is never overwritten by Set or Update. Computed outputs
// (vendor fields, validation columns) bypass the policy via Put.
type Feature struct {
	OID        int64
	Geometry   orb.Geometry
	fields     []string
	attributes map[string]interface{}
}

// NewFeature creates a feature constrained to the given writable fields.
// Initial attributes pass through the same fill-only filter as Update.
func NewFeature(fields []string, geometry orb.Geometry, attrs map[string]interface{}) *Feature {
	f := &Feature{
		Geometry:   geometry,
		fields:     fields,
		attributes: make(map[string]interface{}, len(attrs)),
	}
	f.Update(attrs)
	return f
}

// FromRow reconstructs a feature read from the store. Attributes are taken
// as-is with no fill-only filtering since they represent committed state.
func FromRow(oid int64, geometry orb.Geometry, attrs map[string]interface{}) *Feature {
	if attrs == nil {
		attrs = map[string]interface{}{}
	}
	return &Feature{OID: oid, Geometry: geometry, attributes: attrs}
}

// FieldNames returns the writable field set, or the currently held attribute
// names when the feature is unconstrained.
func (f *Feature) FieldNames() []string {
	if len(f.fields) > 0 {
		out := make([]string, len(f.fields))
		copy(out, f.fields)
		return out
	}
	out := make([]string, 0, len(f.attributes))
	for k := range f.attributes {
		out = append(out, k)
	}
	return out
}

// HasField reports whether the field is writable on this feature.
func (f *Feature) HasField(name string) bool {
	if len(f.fields) == 0 {
		return true
	}
	for _, fld := range f.fields {
		if fld == name {
			return true
		}
	}
	return false
}

// Get returns the attribute value, or nil when unset.
func (f *Feature) Get(name string) interface{} {
	return f.attributes[name]
}

// Has reports whether the attribute holds a non-empty value.
func (f *Feature) Has(name string) bool {
	return !IsEmpty(f.attributes[name])
}

// GetString returns the attribute as a string, empty when unset.
func (f *Feature) GetString(name string) string {
	v := f.attributes[name]
	if IsEmpty(v) {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		return fmt.Sprintf("%v", v)
	}
}

// GetInt returns the attribute coerced to an integer. Returns 0, false when
// the value is unset or not numeric.
func (f *Feature) GetInt(name string) (int64, bool) {
	switch v := f.attributes[name].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// GetFloat returns the attribute coerced to a float64.
func (f *Feature) GetFloat(name string) (float64, bool) {
	switch v := f.attributes[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Set writes the attribute only when the field is writable and currently
// empty. Reports whether the value was written.
func (f *Feature) Set(name string, value interface{}) bool {
	if !f.HasField(name) || f.Has(name) || IsEmpty(value) {
		return false
	}
	f.attributes[name] = value
	return true
}

// Put writes the attribute unconditionally, bypassing the fill-only policy.
func (f *Feature) Put(name string, value interface{}) {
	f.attributes[name] = value
}

// Update applies the fill-only policy across a batch of attributes.
func (f *Feature) Update(attrs map[string]interface{}) {
	for k, v := range attrs {
		f.Set(k, v)
	}
}

// Attributes returns a copy of the current attribute map.
func (f *Feature) Attributes() map[string]interface{} {
	out := make(map[string]interface{}, len(f.attributes))
	for k, v := range f.attributes {
		out[k] = v
	}
	return out
}

// Point returns the feature geometry as a point when it is one.
func (f *Feature) Point() (orb.Point, bool) {
	pt, ok := f.Geometry.(orb.Point)
	return pt, ok
}

// IsEmpty reports whether a value counts as an empty slot for the fill-only
// update policy: nil, empty string, or numeric zero.
func IsEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case int:
		return t == 0
	case int32:
		return t == 0
	case int64:
		return t == 0
	case float32:
		return t == 0
	case float64:
		return t == 0
	default:
		return false
	}
}
