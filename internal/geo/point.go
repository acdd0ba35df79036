// Package geo builds point geometries from traffic records and finds records
// whose points lie within a fixed-radius buffer of one another.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/traffic-cli/internal/model"
)

// SRID of the dataset coordinates (WGS 84).
const SRID = 4326

// DefaultRadius is the buffer radius in degrees, roughly 100 meters at
// Chicago's latitude.
const DefaultRadius = 0.001

// ErrMissingColumn is returned when a required column is absent from the table.
var ErrMissingColumn = eris.New("geo: missing column")

// Site is one table row placed on the map.
type Site struct {
	// Row is the row's position in the source table.
	Row   int
	ID    string
	Point *geom.Point
}

// Coordinate converts a JSON value to a float. Numbers pass through and
// numeric strings are parsed; anything else is rejected.
func Coordinate(v any) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, !math.IsNaN(c)
	case int:
		return float64(c), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NewPoint returns an XY point with SRID 4326.
func NewPoint(lng, lat float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lng, lat}).SetSRID(SRID)
}

// Sites builds a point for every row with usable coordinates in lngCol and
// latCol. Rows with missing or non-numeric coordinates are skipped. The ID of
// each site is the string form of idCol; an absent ID is the empty string.
func Sites(t *model.Table, idCol, lngCol, latCol string) ([]Site, error) {
	for _, col := range []string{idCol, lngCol, latCol} {
		if !t.HasColumn(col) {
			return nil, eris.Wrapf(ErrMissingColumn, "geo: column %q", col)
		}
	}

	sites := make([]Site, 0, t.Len())
	for i := range t.Len() {
		lngV, ok := t.Value(i, lngCol)
		if !ok {
			continue
		}
		latV, ok := t.Value(i, latCol)
		if !ok {
			continue
		}
		lng, ok := Coordinate(lngV)
		if !ok {
			continue
		}
		lat, ok := Coordinate(latV)
		if !ok {
			continue
		}
		sites = append(sites, Site{
			Row:   i,
			ID:    Label(t.Row(i)[idCol]),
			Point: NewPoint(lng, lat),
		})
	}
	return sites, nil
}

// Label renders an identifier value as text.
func Label(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
