package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store/memstore"
)

const roadLayer = "RoadCenterline"

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	dir := t.TempDir()
	content := `{
		"featureType": "ROAD_CENTERLINE",
		"layer": "RoadCenterline",
		"fieldInfos": [
			{"name": "RCL_NGUID", "category": "RESERVED"},
			{"name": "St_Name", "category": "MANDATORY"},
			{"name": "St_PosTyp", "category": "OPTIONAL"},
			{"name": "Speed_Lim", "category": "OPTIONAL"},
			{"name": "DateUpdate", "category": "RESERVED"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "RoadCenterline.json"), []byte(content), 0o644))
	return schema.NewRegistry(dir, logger.New("test"))
}

func testCenterline() *models.Feature {
	return models.FromRow(1, orb.LineString{{0, 0}, {100, 0}}, map[string]interface{}{
		schema.FldStName:   "MAIN",
		schema.FldStPosTyp: "ST",
		"Speed_Lim":        30,
		"DateUpdate":       "2024-01-01",
		"Parity_L":         "E",
		"FromAddr_L":       100,
		"ToAddr_L":         198,
		"AdNumPre_L":       "N",
		"MSAGComm_L":       "WATERLOO",
		"ESN_L":            "411",
		"IncMuni_L":        "WATERLOO",
		"PostCode_L":       "62298",
	})
}

func newTestMerger(t *testing.T, st *memstore.Store) *Merger {
	t.Helper()
	return NewMerger(st, testRegistry(t), logger.New("test"), DefaultBoundaryLayers)
}

func TestMergeStreetAttributes_CopiesStreetAndSideFields(t *testing.T) {
	// Arrange
	st := memstore.New()
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, map[string]interface{}{
		schema.FldAddNumber: 142,
	})

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, testCenterline())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "MAIN", addr.GetString(schema.FldStName))
	assert.Equal(t, "ST", addr.GetString(schema.FldStPosTyp))

	// custom schema field rode along, date field did not
	speed, ok := addr.GetInt("Speed_Lim")
	require.True(t, ok)
	assert.Equal(t, int64(30), speed)
	assert.False(t, addr.Has("DateUpdate"))

	// left-side attributes inherited for a point north of the line
	assert.Equal(t, "WATERLOO", addr.GetString(schema.FldMSAGComm))
	assert.Equal(t, "411", addr.GetString(schema.FldESN))
	assert.Equal(t, "62298", addr.GetString(schema.FldPostCode))
	assert.Equal(t, "N", addr.GetString(schema.FldAddNumPre))
}

func TestMergeStreetAttributes_NeverOverwritesExistingValues(t *testing.T) {
	// Arrange: address already carries a street name and an ESN
	st := memstore.New()
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, map[string]interface{}{
		schema.FldStName: "OLD NAME",
		schema.FldESN:    "999",
	})

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, testCenterline())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "OLD NAME", addr.GetString(schema.FldStName))
	assert.Equal(t, "999", addr.GetString(schema.FldESN))
}

func TestMergeStreetAttributes_ResolvesCenterlineByOID(t *testing.T) {
	// Arrange
	st := memstore.New()
	oid := st.Seed(roadLayer, testCenterline())
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, nil)

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, oid)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "MAIN", addr.GetString(schema.FldStName))
}

func TestMergeStreetAttributes_MissingCenterlineOIDLogsAndContinues(t *testing.T) {
	// Arrange
	st := memstore.New()
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, nil)

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, int64(9999))

	// Assert: no error, nothing merged, fallback sentinel applied
	require.NoError(t, err)
	assert.False(t, addr.Has(schema.FldStName))
	assert.Equal(t, Unincorporated, addr.GetString(schema.FldIncMuni))
}

func TestMunicipalityFallback_IncorporatedBoundaryWins(t *testing.T) {
	// Arrange: centerline carries no municipality, the boundary layer does
	st := memstore.New()
	st.Seed(DefaultBoundaryLayers.Incorporated, models.NewFeature(nil,
		orb.Polygon{{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}},
		map[string]interface{}{"MUNI_NAME": "WATERLOO"}))
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, nil)

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "WATERLOO", addr.GetString(schema.FldIncMuni))
}

func TestMunicipalityFallback_SmallestBoundaryWins(t *testing.T) {
	// Arrange: two overlapping incorporated boundaries contain the point
	st := memstore.New()
	st.Seed(DefaultBoundaryLayers.Incorporated, models.NewFeature(nil,
		orb.Polygon{{{0, 0}, {1000, 0}, {1000, 1000}, {0, 1000}, {0, 0}}},
		map[string]interface{}{"MUNI_NAME": "BIG"}))
	st.Seed(DefaultBoundaryLayers.Incorporated, models.NewFeature(nil,
		orb.Polygon{{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}},
		map[string]interface{}{"MUNI_NAME": "SMALL"}))
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, nil)

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "SMALL", addr.GetString(schema.FldIncMuni))
}

func TestMunicipalityFallback_UnincorporatedSentinel(t *testing.T) {
	// Arrange: no incorporated boundary, one unincorporated community
	st := memstore.New()
	st.Seed(DefaultBoundaryLayers.Unincorporated, models.NewFeature(nil,
		orb.Polygon{{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}},
		map[string]interface{}{"Name": "BURKSVILLE"}))
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, nil)

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "BURKSVILLE", addr.GetString(schema.FldUnincComm))
	assert.Equal(t, Unincorporated, addr.GetString(schema.FldIncMuni))
}

func TestMunicipalityFallback_SkipsWhenAlreadySet(t *testing.T) {
	// Arrange
	st := memstore.New()
	st.Seed(DefaultBoundaryLayers.Incorporated, models.NewFeature(nil,
		orb.Polygon{{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}},
		map[string]interface{}{"MUNI_NAME": "WATERLOO"}))
	m := newTestMerger(t, st)
	addr := models.NewFeature(nil, orb.Point{50, 10}, map[string]interface{}{
		schema.FldIncMuni: "VALMEYER",
	})

	// Act
	_, err := m.MergeStreetAttributes(context.Background(), addr, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "VALMEYER", addr.GetString(schema.FldIncMuni))
}
