package render

import (
	"fmt"
	"html/template"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/model"
)

// ErrNoTimeColumn is returned by Heatmaps when the table has no time column.
var ErrNoTimeColumn = eris.New("render: time column not present")

// DefaultHeatPattern names the per-hour heatmap files; %d is the 1-based
// position of the hour group.
const DefaultHeatPattern = "chicago_traffic_heat_%d_map.html"

// HeatOptions controls the per-hour heatmaps.
type HeatOptions struct {
	TimeColumn  string
	LatColumn   string
	LngColumn   string
	Radius      int
	Zoom        int
	FilePattern string
}

// DefaultHeatOptions returns the heatmap options for the traffic feed.
func DefaultHeatOptions() HeatOptions {
	return HeatOptions{
		TimeColumn:  "time",
		LatColumn:   "start_latitude",
		LngColumn:   "start_longitude",
		Radius:      5,
		Zoom:        9,
		FilePattern: DefaultHeatPattern,
	}
}

// HeatPoint is one weighted point of a heatmap.
type HeatPoint struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Intensity float64 `json:"intensity"`
}

// HourGroup is the set of rows observed in one hour of day.
type HourGroup struct {
	Hour int
	Rows []int
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.0",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 03:04:05 PM",
	"15:04:05",
	"15:04",
}

// ParseTime parses a feed timestamp. Socrata floating timestamps, RFC 3339
// and bare clock times are accepted.
func ParseTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// HourGroups buckets rows by hour of day, with groups ordered by the first
// row that falls in each hour. Rows whose time cannot be parsed are left out
// and counted in skipped.
func HourGroups(t *model.Table, timeCol string) (groups []HourGroup, skipped int, err error) {
	if !t.HasColumn(timeCol) {
		return nil, 0, ErrNoTimeColumn
	}
	pos := make(map[int]int)
	for i := range t.Len() {
		v, _ := t.Value(i, timeCol)
		ts, ok := ParseTime(v)
		if !ok {
			skipped++
			continue
		}
		h := ts.Hour()
		idx, seen := pos[h]
		if !seen {
			idx = len(groups)
			pos[h] = idx
			groups = append(groups, HourGroup{Hour: h})
		}
		groups[idx].Rows = append(groups[idx].Rows, i)
	}
	return groups, skipped, nil
}

// Heatmaps writes one heatmap per hour group into dir and returns the written
// paths in group order. It returns ErrNoTimeColumn when the time column is
// absent.
func Heatmaps(dir string, t *model.Table, opts HeatOptions) ([]string, error) {
	groups, skipped, err := HourGroups(t, opts.TimeColumn)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		zap.L().Warn("rows with unparseable time skipped", zap.Int("rows", skipped))
	}

	pattern := opts.FilePattern
	if pattern == "" {
		pattern = DefaultHeatPattern
	}

	var paths []string
	for _, g := range groups {
		points := heatPoints(t, g, opts)
		if len(points) == 0 {
			zap.L().Debug("hour without plottable points skipped", zap.Int("hour", g.Hour))
			continue
		}
		path := filepath.Join(dir, fmt.Sprintf(pattern, len(paths)+1))
		if err := heatmap(path, g, points, opts); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	zap.L().Info("heatmaps written", zap.Int("files", len(paths)))
	return paths, nil
}

// heatPoints returns the points of g's rows that have usable coordinates.
func heatPoints(t *model.Table, g HourGroup, opts HeatOptions) []HeatPoint {
	points := make([]HeatPoint, 0, len(g.Rows))
	for _, row := range g.Rows {
		latV, _ := t.Value(row, opts.LatColumn)
		lngV, _ := t.Value(row, opts.LngColumn)
		lat, ok1 := geo.Coordinate(latV)
		lng, ok2 := geo.Coordinate(lngV)
		if !ok1 || !ok2 {
			continue
		}
		points = append(points, HeatPoint{Lat: lat, Lng: lng, Intensity: 1})
	}
	return points
}

func heatmap(path string, g HourGroup, points []HeatPoint, opts HeatOptions) error {
	var sumLat, sumLng float64
	for _, p := range points {
		sumLat += p.Lat
		sumLng += p.Lng
	}

	centerLat, centerLng := DefaultCenterLat, DefaultCenterLng
	if n := float64(len(points)); n > 0 {
		centerLat, centerLng = sumLat/n, sumLng/n
	}

	pointsJSON, err := marshalTemplateJS(points)
	if err != nil {
		return eris.Wrap(err, "render: marshal heat points")
	}

	data := struct {
		Title      string
		CenterLat  float64
		CenterLng  float64
		Zoom       int
		Radius     int
		PointsJSON template.JS
	}{
		Title:      fmt.Sprintf("Chicago Traffic Density %02d:00", g.Hour),
		CenterLat:  centerLat,
		CenterLng:  centerLng,
		Zoom:       opts.Zoom,
		Radius:     opts.Radius,
		PointsJSON: pointsJSON,
	}
	return writePage(path, "heatmap.html.tmpl", data)
}
