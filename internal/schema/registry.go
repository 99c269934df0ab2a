package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/stwalsh4118/ng911/internal/logger"
)

// ErrSchemaNotFound signals a lookup miss: no schema file matches the
// requested feature type and no ESB-style fallback applies. Callers treat it
// as "no schema known", not a hard failure.
var ErrSchemaNotFound = errors.New("schema not found")

// FieldCategory classifies a field per the NENA data model.
type FieldCategory string

const (
	CategoryReserved    FieldCategory = "RESERVED"
	CategoryMandatory   FieldCategory = "MANDATORY"
	CategoryConditional FieldCategory = "CONDITIONAL"
	CategoryOptional    FieldCategory = "OPTIONAL"
)

// FieldInfo describes a single schema field.
type FieldInfo struct {
	Name     string        `json:"name"`
	Category FieldCategory `json:"category"`
}

// CustomField is a per-deployment calculated field: its value is derived from
// an expression over the feature's own attributes at creation time.
type CustomField struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// schemaFile mirrors the on-disk schema JSON layout.
type schemaFile struct {
	FeatureType  string        `json:"featureType"`
	Layer        string        `json:"layer"`
	NENAPrefix   string        `json:"nenaPrefix"`
	GUIDField    string        `json:"guidField"`
	FieldInfos   []FieldInfo   `json:"fieldInfos"`
	CustomFields []CustomField `json:"customFields"`
	FeatureSet   struct {
		GeometryType     string `json:"geometryType"`
		SpatialReference struct {
			WKID int `json:"wkid"`
		} `json:"spatialReference"`
	} `json:"featureSet"`
}

// Descriptor is the resolved schema for one logical feature type.
type Descriptor struct {
	FeatureType  string
	Layer        string
	NENAPrefix   string
	GUIDField    string
	GeometryType string
	WKID         int
	Fields       []FieldInfo
	CustomFields []CustomField
}

// FieldNames returns every field name in the schema.
func (d *Descriptor) FieldNames() []string {
	out := make([]string, 0, len(d.Fields))
	for _, f := range d.Fields {
		out = append(out, f.Name)
	}
	return out
}

// FieldsByCategory returns the names of fields in the given category.
func (d *Descriptor) FieldsByCategory(cat FieldCategory) []string {
	var out []string
	for _, f := range d.Fields {
		if f.Category == cat {
			out = append(out, f.Name)
		}
	}
	return out
}

// HasField reports whether the schema carries the named field.
func (d *Descriptor) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// typeLookup maps logical feature type names to schema file basenames.
var typeLookup = map[string]string{
	TypeAddressPoints:        "AddressPoints",
	TypeRoadCenterline:       "RoadCenterline",
	TypeProvisioningBoundary: "ProvisioningBoundary",
	TypePSAP:                 "PSAP",
}

// defaultPrefixes supplies identifier prefixes when the schema file omits one.
var defaultPrefixes = map[string]string{
	TypeAddressPoints:        "SITE",
	TypeRoadCenterline:       "RCL",
	TypePSAP:                 "PSAP",
	TypeESB:                  "ES",
	TypeESBEMS:               "EMS",
	TypeESBFire:              "FIRE",
	TypeESBLaw:               "LAW",
	TypeProvisioningBoundary: "PB",
}

// defaultGUIDFields supplies NENA identifier field names per feature type.
var defaultGUIDFields = map[string]string{
	TypeAddressPoints:        FldSiteNGUID,
	TypeRoadCenterline:       FldRCLNGUID,
	TypePSAP:                 "ES_NGUID",
	TypeESB:                  "ES_NGUID",
	TypeESBEMS:               "EMS_NGUID",
	TypeESBFire:              "FIRE_NGUID",
	TypeESBLaw:               "LAW_NGUID",
	TypeProvisioningBoundary: "PB_NGUID",
}

// Registry resolves logical feature type names to schema descriptors loaded
// from a directory of JSON schema files. Descriptors are cached per type for
// the life of the registry.
type Registry struct {
	dir   string
	log   *logger.Logger
	mu    sync.RWMutex
	cache map[string]*Descriptor
}

// NewRegistry creates a registry reading schema files from dir.
func NewRegistry(dir string, log *logger.Logger) *Registry {
	return &Registry{
		dir:   dir,
		log:   log,
		cache: make(map[string]*Descriptor),
	}
}

// Load resolves a feature type to its schema descriptor.
//
// Emergency service boundary subtypes (ESB_FIRE, ESB_LAW, ...) share the PSAP
// base template: when no schema file exists for an ESB-prefixed type, the
// PSAP schema is loaded and its type, layer, GUID field, and identifier
// prefix are substituted for the subtype's.
func (r *Registry) Load(featureType string) (*Descriptor, error) {
	r.mu.RLock()
	if d, ok := r.cache[featureType]; ok {
		r.mu.RUnlock()
		return d, nil
	}
	r.mu.RUnlock()

	d, err := r.loadFile(featureType)
	if errors.Is(err, ErrSchemaNotFound) && isESBType(featureType) {
		d, err = r.loadESBFallback(featureType)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[featureType] = d
	r.mu.Unlock()

	return d, nil
}

func (r *Registry) loadFile(featureType string) (*Descriptor, error) {
	base, ok := typeLookup[featureType]
	if !ok {
		base = featureType
	}

	path := filepath.Join(r.dir, base+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, featureType)
		}
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}

	var sf schemaFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}

	d := &Descriptor{
		FeatureType:  featureType,
		Layer:        sf.Layer,
		NENAPrefix:   sf.NENAPrefix,
		GUIDField:    sf.GUIDField,
		GeometryType: sf.FeatureSet.GeometryType,
		WKID:         sf.FeatureSet.SpatialReference.WKID,
		Fields:       sf.FieldInfos,
		CustomFields: sf.CustomFields,
	}
	if d.Layer == "" {
		d.Layer = base
	}
	if d.NENAPrefix == "" {
		d.NENAPrefix = defaultPrefixes[featureType]
	}
	if d.GUIDField == "" {
		d.GUIDField = defaultGUIDFields[featureType]
	}

	r.log.Debug("Loaded schema", map[string]interface{}{
		"feature_type": featureType,
		"layer":        d.Layer,
		"fields":       len(d.Fields),
	})

	return d, nil
}

// loadESBFallback builds an ESB subtype descriptor from the PSAP template,
// renaming the GUID field and identifier prefix for the subtype.
func (r *Registry) loadESBFallback(featureType string) (*Descriptor, error) {
	base, err := r.loadFile(TypePSAP)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (no PSAP template for ESB fallback)", ErrSchemaNotFound, featureType)
	}

	d := &Descriptor{
		FeatureType:  featureType,
		Layer:        esbLayerName(featureType),
		NENAPrefix:   defaultPrefixes[featureType],
		GUIDField:    defaultGUIDFields[featureType],
		GeometryType: base.GeometryType,
		WKID:         base.WKID,
		CustomFields: base.CustomFields,
	}
	if d.NENAPrefix == "" {
		d.NENAPrefix = "ES"
	}
	if d.GUIDField == "" {
		d.GUIDField = "ES_NGUID"
	}

	// substitute the template's GUID field with the subtype's
	d.Fields = make([]FieldInfo, 0, len(base.Fields))
	for _, f := range base.Fields {
		if f.Name == base.GUIDField {
			f.Name = d.GUIDField
		}
		d.Fields = append(d.Fields, f)
	}

	r.log.Debug("Built ESB schema from PSAP template", map[string]interface{}{
		"feature_type": featureType,
		"guid_field":   d.GUIDField,
	})

	return d, nil
}

func isESBType(featureType string) bool {
	return strings.HasPrefix(strings.ToUpper(featureType), "ESB")
}

func esbLayerName(featureType string) string {
	parts := strings.SplitN(featureType, "_", 2)
	if len(parts) == 2 && parts[1] != "" {
		sub := strings.ToLower(parts[1])
		return "ESB_" + strings.ToUpper(sub[:1]) + sub[1:]
	}
	return "ESB"
}
