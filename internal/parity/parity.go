// Package parity determines which side of a road centerline an address point
// falls on, the address number parity declared for that side, and the
// address range and attributes the point inherits from it.
package parity

import (
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/stwalsh4118/ng911/internal/models"
	"github.com/stwalsh4118/ng911/internal/schema"
)

// Parity values from the NENA parity domain.
const (
	ParityOdd  = "O"
	ParityEven = "E"
	ParityBoth = "B"
	ParityZero = "Z"
)

// Result holds the side-of-street resolution for one point against one
// centerline. It is ephemeral: computed fresh per merge or validation call
// and folded into the feature or the flag vector, never persisted directly.
type Result struct {
	Side          schema.Side
	Parity        string
	FromAddr      int64
	ToAddr        int64
	HasRange      bool
	AddressPrefix string
}

// Resolve projects the point onto the centerline and reads the side-specific
// range and parity fields for the resulting side.
//
// A nil centerline or a centerline without polyline geometry yields a nil
// result with no error: no inheritance is possible, which callers must treat
// as "nothing to inherit", not a failure.
func Resolve(pt orb.Point, line *models.Feature) (*Result, error) {
	if line == nil {
		return nil, nil
	}

	ls, ok := LineGeometry(line)
	if !ok {
		return nil, nil
	}

	side := SideOf(ls, pt)

	res := &Result{
		Side:          side,
		Parity:        normalizeParity(line.GetString(schema.ParityFields.Field(side))),
		AddressPrefix: line.GetString(schema.AddNumPrefixFields.Field(side)),
	}
	var fromOK, toOK bool
	res.FromAddr, fromOK = line.GetInt(schema.FromAddrFields.Field(side))
	res.ToAddr, toOK = line.GetInt(schema.ToAddrFields.Field(side))
	res.HasRange = fromOK || toOK

	return res, nil
}

// InheritedValue returns the centerline's value for an inherited address
// attribute on the resolved side.
func (r *Result) InheritedValue(line *models.Feature, m schema.SideMapping) interface{} {
	if r == nil || line == nil {
		return nil
	}
	return line.Get(m.LineFields.Field(r.Side))
}

// InRange reports whether an address number falls inside the side's
// [from, to] range. Ranges stored in descending order are honored. A side
// that declares no range at all matches every number, the same way an
// unknown parity declaration never flags.
func (r *Result) InRange(num int64) bool {
	if !r.HasRange {
		return true
	}
	lo, hi := r.FromAddr, r.ToAddr
	if lo > hi {
		lo, hi = hi, lo
	}
	return num >= lo && num <= hi
}

// ParityMatches reports whether an address number's odd/even-ness agrees
// with the side's declared parity. Both-parity sides match everything, and
// an unknown or zero parity declaration never flags.
func (r *Result) ParityMatches(num int64) bool {
	switch r.Parity {
	case ParityOdd:
		return num%2 != 0
	case ParityEven:
		return num%2 == 0
	default:
		return true
	}
}

// SideOf determines which side of the polyline the point lies on, using the
// cross product of the nearest segment against the point. Points exactly on
// the line resolve to the left side.
func SideOf(ls orb.LineString, pt orb.Point) schema.Side {
	a, b := nearestSegment(ls, pt)

	cross := (b[0]-a[0])*(pt[1]-a[1]) - (b[1]-a[1])*(pt[0]-a[0])
	if cross < 0 {
		return schema.SideRight
	}
	return schema.SideLeft
}

// nearestSegment returns the segment of the polyline closest to the point.
func nearestSegment(ls orb.LineString, pt orb.Point) (orb.Point, orb.Point) {
	if len(ls) < 2 {
		if len(ls) == 1 {
			return ls[0], ls[0]
		}
		return orb.Point{}, orb.Point{}
	}

	bestA, bestB := ls[0], ls[1]
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		if d := models.DistanceToSegment(ls[i], ls[i+1], pt); d < best {
			best = d
			bestA, bestB = ls[i], ls[i+1]
		}
	}
	return bestA, bestB
}

// LineGeometry extracts a polyline from the feature, flattening multi-part
// lines to their longest part.
func LineGeometry(f *models.Feature) (orb.LineString, bool) {
	switch g := f.Geometry.(type) {
	case orb.LineString:
		return g, len(g) >= 2
	case orb.MultiLineString:
		var longest orb.LineString
		for _, part := range g {
			if len(part) > len(longest) {
				longest = part
			}
		}
		return longest, len(longest) >= 2
	default:
		return nil, false
	}
}

// normalizeParity reduces stored parity values ("Even", "E", "odd", ...) to
// their domain letter.
func normalizeParity(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	return v[:1]
}

// LineAngle returns the azimuth angle in degrees between the polyline's
// first and last points, zero at north.
func LineAngle(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}
	first, last := ls[0], ls[len(ls)-1]
	return 90 - (180/math.Pi)*math.Atan2(last[1]-first[1], last[0]-first[0])
}

// LineDirection returns the northing and easting direction of the polyline,
// e.g. ("N", "E").
func LineDirection(ls orb.LineString) (string, string) {
	if len(ls) < 2 {
		return "", ""
	}
	first, last := ls[0], ls[len(ls)-1]

	ns := "S"
	if last[1] > first[1] {
		ns = "N"
	}
	ew := "W"
	if last[0] > first[0] {
		ew = "E"
	}
	return ns, ew
}
