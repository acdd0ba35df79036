package export

import (
	"strings"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/model"
)

// Attribute columns of the adjacency shapefile. DBF field names are capped
// at ten characters.
const (
	fieldStreet   = "STREET"
	fieldCount    = "N_ADJ"
	fieldAdjacent = "ADJACENT"

	maxAttrLen = 254
)

// WriteShapefile writes one point per adjacency entry to path (.shp with its
// .shx and .dbf siblings). The point is the entry's row location in t; entries
// whose row has no usable coordinates are skipped. Returns the number of
// points written.
func WriteShapefile(path string, t *model.Table, adj []geo.Adjacency, opts geo.Options) (int, error) {
	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return 0, eris.Wrapf(err, "shp: create %s", path)
	}
	defer w.Close()

	if err := w.SetFields([]shp.Field{
		shp.StringField(fieldStreet, 80),
		shp.NumberField(fieldCount, 6),
		shp.StringField(fieldAdjacent, maxAttrLen),
	}); err != nil {
		return 0, eris.Wrap(err, "shp: set fields")
	}

	var written, skipped int
	for _, a := range adj {
		lngV, _ := t.Value(a.Row, opts.LngColumn)
		latV, _ := t.Value(a.Row, opts.LatColumn)
		lng, ok1 := geo.Coordinate(lngV)
		lat, ok2 := geo.Coordinate(latV)
		if !ok1 || !ok2 {
			skipped++
			continue
		}

		idx := int(w.Write(&shp.Point{X: lng, Y: lat}))
		attrs := []any{
			a.Intersection,
			len(a.Adjacent),
			truncate(strings.Join(a.Adjacent, ";"), maxAttrLen),
		}
		for field, v := range attrs {
			if err := w.WriteAttribute(idx, field, v); err != nil {
				return written, eris.Wrapf(err, "shp: write attribute %d of row %d", field, idx)
			}
		}
		written++
	}

	if skipped > 0 {
		zap.L().Debug("shp: skipped entries without coordinates", zap.Int("skipped", skipped))
	}
	zap.L().Info("shapefile export written", zap.String("path", path), zap.Int("points", written))
	return written, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
