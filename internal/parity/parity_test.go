package parity

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/schema"
)

// mainStreet builds a west-to-east centerline with even numbers 100-198 on
// the left (north) side and odd numbers 101-199 on the right.
func mainStreet() *models.Feature {
	return models.FromRow(1, orb.LineString{{0, 0}, {100, 0}}, map[string]interface{}{
		schema.FldStName: "MAIN",
		"Parity_L":       "E",
		"Parity_R":       "O",
		"FromAddr_L":     100,
		"ToAddr_L":       198,
		"FromAddr_R":     101,
		"ToAddr_R":       199,
		"AdNumPre_L":     "",
		"AdNumPre_R":     "",
		"MSAGComm_L":     "WATERLOO",
		"MSAGComm_R":     "COLUMBIA",
		"ESN_L":          "411",
		"ESN_R":          "412",
	})
}

func TestResolve_LeftSideEvenRange(t *testing.T) {
	// Arrange: point north of a west-east line resolves to the left side
	line := mainStreet()

	// Act
	res, err := Resolve(orb.Point{50, 10}, line)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, schema.SideLeft, res.Side)
	assert.Equal(t, ParityEven, res.Parity)
	assert.Equal(t, int64(100), res.FromAddr)
	assert.Equal(t, int64(198), res.ToAddr)

	assert.True(t, res.InRange(142))
	assert.True(t, res.ParityMatches(142))
	assert.False(t, res.ParityMatches(143))
	assert.False(t, res.InRange(200))
}

func TestResolve_RightSideOddRange(t *testing.T) {
	// Arrange
	line := mainStreet()

	// Act
	res, err := Resolve(orb.Point{50, -10}, line)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, schema.SideRight, res.Side)
	assert.Equal(t, ParityOdd, res.Parity)
	assert.True(t, res.ParityMatches(143))
	assert.False(t, res.ParityMatches(142))
}

func TestResolve_NilAndNonLineCenterlines(t *testing.T) {
	res, err := Resolve(orb.Point{0, 0}, nil)
	require.NoError(t, err)
	assert.Nil(t, res)

	point := models.FromRow(1, orb.Point{1, 1}, nil)
	res, err = Resolve(orb.Point{0, 0}, point)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestResolve_NormalizesParityWords(t *testing.T) {
	// Arrange: legacy data spells parity out
	line := models.FromRow(1, orb.LineString{{0, 0}, {100, 0}}, map[string]interface{}{
		"Parity_L": "Even",
		"Parity_R": "odd",
	})

	left, err := Resolve(orb.Point{50, 10}, line)
	require.NoError(t, err)
	right, err := Resolve(orb.Point{50, -10}, line)
	require.NoError(t, err)

	assert.Equal(t, ParityEven, left.Parity)
	assert.Equal(t, ParityOdd, right.Parity)
}

func TestResult_InRangeHandlesDescendingRanges(t *testing.T) {
	res := &Result{FromAddr: 198, ToAddr: 100, HasRange: true}

	assert.True(t, res.InRange(142))
	assert.False(t, res.InRange(99))
	assert.False(t, res.InRange(199))
}

func TestResolve_MissingRangeFieldsMatchEveryNumber(t *testing.T) {
	// Arrange: a centerline that declares no address range at all
	line := models.FromRow(1, orb.LineString{{0, 0}, {100, 0}}, map[string]interface{}{
		schema.FldStName: "MAIN",
	})

	// Act
	res, err := Resolve(orb.Point{50, 10}, line)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.HasRange)
	assert.True(t, res.InRange(142))
	assert.True(t, res.InRange(100000))
}

func TestResult_ParityMatchesBothAndUnknown(t *testing.T) {
	both := &Result{Parity: ParityBoth}
	unknown := &Result{Parity: ""}
	zero := &Result{Parity: ParityZero}

	for _, num := range []int64{142, 143} {
		assert.True(t, both.ParityMatches(num))
		assert.True(t, unknown.ParityMatches(num))
		assert.True(t, zero.ParityMatches(num))
	}
}

func TestResult_InheritedValue(t *testing.T) {
	// Arrange
	line := mainStreet()
	mapping := schema.SideMapping{
		PointField: schema.FldMSAGComm,
		LineFields: schema.SidePair{Left: "MSAGComm_L", Right: "MSAGComm_R"},
	}

	left := &Result{Side: schema.SideLeft}
	right := &Result{Side: schema.SideRight}

	// Act & Assert
	assert.Equal(t, "WATERLOO", left.InheritedValue(line, mapping))
	assert.Equal(t, "COLUMBIA", right.InheritedValue(line, mapping))
}

func TestSideOf_UsesNearestSegment(t *testing.T) {
	// Arrange: an L-shaped line; the point is nearest the vertical leg
	ls := orb.LineString{{0, 0}, {100, 0}, {100, 100}}

	// Act & Assert: east of the vertical leg is its right side going north
	assert.Equal(t, schema.SideRight, SideOf(ls, orb.Point{110, 50}))
	assert.Equal(t, schema.SideLeft, SideOf(ls, orb.Point{90, 50}))
}

func TestResolve_MultiLineUsesLongestPart(t *testing.T) {
	// Arrange
	line := models.FromRow(1, orb.MultiLineString{
		{{0, 100}, {1, 100}},
		{{0, 0}, {50, 0}, {100, 0}},
	}, map[string]interface{}{
		"Parity_L": "E",
	})

	// Act
	res, err := Resolve(orb.Point{50, 10}, line)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, schema.SideLeft, res.Side)
}

func TestLineAngleAndDirection(t *testing.T) {
	east := orb.LineString{{0, 0}, {100, 0}}
	north := orb.LineString{{0, 0}, {0, 100}}

	assert.InDelta(t, 90, LineAngle(east), 1e-9)
	assert.InDelta(t, 0, LineAngle(north), 1e-9)

	ns, ew := LineDirection(orb.LineString{{0, 0}, {100, 100}})
	assert.Equal(t, "N", ns)
	assert.Equal(t, "E", ew)

	ns, ew = LineDirection(orb.LineString{{100, 100}, {0, 0}})
	assert.Equal(t, "S", ns)
	assert.Equal(t, "W", ew)
}
