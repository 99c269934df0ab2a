package validation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/ng911/internal/centerline"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store/memstore"
)

const (
	addrLayer  = "AddressPoints"
	roadLayer  = "RoadCenterline"
	testAgency = "co.monroe.il.us"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"AddressPoints":  `{"featureType": "ADDRESS_POINTS", "layer": "AddressPoints"}`,
		"RoadCenterline": `{"featureType": "ROAD_CENTERLINE", "layer": "RoadCenterline"}`,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644))
	}
	return schema.NewRegistry(dir, logger.New("test"))
}

func newTestValidator(t *testing.T, st *memstore.Store) *Validator {
	t.Helper()
	v, err := NewValidator(st, testRegistry(t), logger.New("test"))
	require.NoError(t, err)
	return v
}

// mainStreet is a west-east centerline with even addresses 100-198 on the
// north (left) side.
func mainStreet() *models.Feature {
	return models.FromRow(1, orb.LineString{{0, 0}, {100, 0}}, map[string]interface{}{
		schema.FldStName: "MAIN",
		"Parity_L":       "E",
		"FromAddr_L":     100,
		"ToAddr_L":       198,
		"ESN_L":          "411",
		"MSAGComm_L":     "WATERLOO",
	})
}

func seedAddress(st *memstore.Store, attrs map[string]interface{}) *models.Feature {
	f := models.FromRow(0, orb.Point{50, 10}, attrs)
	st.Seed(addrLayer, f)
	return f
}

func TestValidate_CleanAddress(t *testing.T) {
	// Arrange
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	res, err := v.Validate(context.Background(), addr, mainStreet())

	// Assert
	require.NoError(t, err)
	assert.Zero(t, res.FlagCount())
	assert.Equal(t, 100.0, res.Score())
	assert.Empty(t, res.RaisedFlags())
}

func TestValidate_RecordsEveryProcessedAddress(t *testing.T) {
	// Arrange
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	_, err := v.Validate(context.Background(), addr, mainStreet())
	require.NoError(t, err)

	// Assert: no flag row for a clean address, but a validated row always
	flags, err := st.Query(context.Background(), schema.LayerAddressFlags, nil)
	require.NoError(t, err)
	assert.Empty(t, flags)

	validated, err := st.Query(context.Background(), schema.LayerValidatedAddresses, nil)
	require.NoError(t, err)
	require.Len(t, validated, 1)
	assert.Equal(t, "SITE1@"+testAgency, validated[0].GetString("NENA_GUID"))
}

func TestValidate_DuplicateAddressAndIdentifier(t *testing.T) {
	// Arrange: two rows with the same civic address and identifier
	st := memstore.New()
	v := newTestValidator(t, st)
	attrs := map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	}
	addr := seedAddress(st, attrs)
	seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	res, err := v.Validate(context.Background(), addr, mainStreet())

	// Assert
	require.NoError(t, err)
	assert.True(t, res.IsSet(FlagDuplicateAddress))
	assert.True(t, res.IsSet(FlagDuplicateNENAIdentifier))
	assert.Equal(t, 2, res.FlagCount())
	assert.Equal(t, 89.0, res.Score())
}

func TestValidate_MissingMandatoryFields(t *testing.T) {
	// Arrange: no street name, no address number, no identifier
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{})

	// Act
	res, err := v.Validate(context.Background(), addr, mainStreet())

	// Assert
	require.NoError(t, err)
	assert.True(t, res.IsSet(FlagMissingStreetName))
	assert.True(t, res.IsSet(FlagMissingAddressNumber))
	assert.True(t, res.IsSet(FlagMissingNENAIdentifier))
	assert.Equal(t, 3, res.FlagCount())
}

func TestValidate_RangeAndParity(t *testing.T) {
	tests := []struct {
		name      string
		number    int
		wantFlags []Flag
	}{
		{"in range and even", 142, nil},
		{"odd on even side", 143, []Flag{FlagInvalidParity}},
		{"outside range", 500, []Flag{FlagAddressOutsideRange}},
		{"outside range and odd", 501, []Flag{FlagAddressOutsideRange, FlagInvalidParity}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memstore.New()
			v := newTestValidator(t, st)
			addr := seedAddress(st, map[string]interface{}{
				"Site_NGUID":        "SITE1@" + testAgency,
				schema.FldAddNumber: tt.number,
				schema.FldStName:    "MAIN",
			})

			res, err := v.Validate(context.Background(), addr, mainStreet())

			require.NoError(t, err)
			assert.ElementsMatch(t, tt.wantFlags, res.RaisedFlags())
		})
	}
}

func TestValidate_CenterlineWithoutRangeFieldsNeverFlagsRange(t *testing.T) {
	// Arrange: the matched centerline declares no FromAddr/ToAddr at all
	st := memstore.New()
	v := newTestValidator(t, st)
	road := models.FromRow(1, orb.LineString{{0, 0}, {100, 0}}, map[string]interface{}{
		schema.FldStName: "MAIN",
	})
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	res, err := v.Validate(context.Background(), addr, road)

	// Assert: an undeclared range matches every number
	require.NoError(t, err)
	assert.False(t, res.IsSet(FlagAddressOutsideRange))
	assert.False(t, res.IsSet(FlagInvalidParity))
}

func TestValidate_StreetNameMismatch(t *testing.T) {
	// Arrange
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "OAK",
	})

	// Act
	res, err := v.Validate(context.Background(), addr, mainStreet())

	// Assert
	require.NoError(t, err)
	assert.True(t, res.IsSet(FlagInvalidStreetName))
}

func TestValidate_SideAttributeMismatch(t *testing.T) {
	// Arrange: the address carries an ESN disagreeing with the left side
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
		schema.FldESN:       "999",
		schema.FldMSAGComm:  "WATERLOO",
	})

	// Act
	res, err := v.Validate(context.Background(), addr, mainStreet())

	// Assert: only the disagreeing pair flags, matching values do not
	require.NoError(t, err)
	assert.True(t, res.IsSet(FlagInvalidESN))
	assert.False(t, res.IsSet(FlagInvalidMSAG))
	assert.Equal(t, 1, res.FlagCount())
	assert.Equal(t, 94.0, res.Score())
}

func TestValidate_FlagRowWritten(t *testing.T) {
	// Arrange
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 143,
		schema.FldStName:    "MAIN",
	})

	// Act
	_, err := v.Validate(context.Background(), addr, mainStreet())
	require.NoError(t, err)

	// Assert: one flag row with per-rule columns and the score
	rows, err := st.Query(context.Background(), schema.LayerAddressFlags, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	parity, _ := row.GetInt(string(FlagInvalidParity))
	dup, _ := row.GetInt(string(FlagDuplicateAddress))
	count, _ := row.GetInt("FLAG_COUNT")
	score, _ := row.GetFloat("VALIDATION_SCORE")
	assert.Equal(t, int64(1), parity)
	assert.Equal(t, int64(0), dup)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 94.0, score)
}

func TestValidate_UnresolvableCenterlineAborts(t *testing.T) {
	// Arrange: no centerline hint and an empty road layer
	st := memstore.New()
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	_, err := v.Validate(context.Background(), addr, nil)

	// Assert
	assert.ErrorIs(t, err, centerline.ErrNoCenterline)
}

func TestValidate_ResolvesCenterlineWhenNoHint(t *testing.T) {
	// Arrange
	st := memstore.New()
	st.Seed(roadLayer, mainStreet())
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	res, err := v.Validate(context.Background(), addr, nil)

	// Assert
	require.NoError(t, err)
	assert.Zero(t, res.FlagCount())
}

func TestValidateOID(t *testing.T) {
	// Arrange
	st := memstore.New()
	st.Seed(roadLayer, mainStreet())
	v := newTestValidator(t, st)
	addr := seedAddress(st, map[string]interface{}{
		"Site_NGUID":        "SITE1@" + testAgency,
		schema.FldAddNumber: 142,
		schema.FldStName:    "MAIN",
	})

	// Act
	res, err := v.ValidateOID(context.Background(), addr.OID)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, addr.OID, res.SourceOID)
}

func TestValidateOID_NotFound(t *testing.T) {
	st := memstore.New()
	v := newTestValidator(t, st)

	_, err := v.ValidateOID(context.Background(), 9999)

	assert.ErrorIs(t, err, ErrAddressNotFound)
}

func TestResult_Score(t *testing.T) {
	res := NewResult("SITE1@x", 1, nil)
	assert.Equal(t, 100.0, res.Score())

	res.Set(FlagInvalidParity)
	assert.Equal(t, 94.0, res.Score())

	for _, f := range Rules {
		res.Set(f)
	}
	assert.Equal(t, 0.0, res.Score())
	assert.Equal(t, len(Rules), res.FlagCount())
}
