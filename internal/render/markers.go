package render

import (
	"html/template"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/model"
)

// DefaultMarkerFile is the marker map file name.
const DefaultMarkerFile = "chicago_folium_map.html"

// Marker is one pin on the marker map.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Popup string  `json:"popup"`
	Color string  `json:"color"`
	Icon  string  `json:"icon"`
}

// MapOptions controls the marker map.
type MapOptions struct {
	IDColumn       string
	StartLatColumn string
	StartLngColumn string
	EndLatColumn   string
	EndLngColumn   string
	CenterLat      float64
	CenterLng      float64
	Zoom           int
	Title          string
}

// DefaultMapOptions returns the options for the Chicago marker map.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		IDColumn:       "street",
		StartLatColumn: "start_latitude",
		StartLngColumn: "start_longitude",
		EndLatColumn:   "end_latitude",
		EndLngColumn:   "end_longitude",
		CenterLat:      DefaultCenterLat,
		CenterLng:      DefaultCenterLng,
		Zoom:           12,
		Title:          "Chicago Traffic Adjacency",
	}
}

// BuildMarkers places a green "play" marker at the start and a red "pause"
// marker at the end of every street named in an adjacency list. Coordinates
// come from the first row of t whose ID column equals the street and whose
// start coordinates are usable; an end point with unusable coordinates is
// skipped.
func BuildMarkers(adj []geo.Adjacency, t *model.Table, opts MapOptions) []Marker {
	coord := func(row int, latCol, lngCol string) (float64, float64, bool) {
		latV, _ := t.Value(row, latCol)
		lngV, _ := t.Value(row, lngCol)
		lat, ok1 := geo.Coordinate(latV)
		lng, ok2 := geo.Coordinate(lngV)
		return lat, lng, ok1 && ok2
	}

	first := make(map[string]int)
	for i := range t.Len() {
		if _, _, ok := coord(i, opts.StartLatColumn, opts.StartLngColumn); !ok {
			continue
		}
		v, _ := t.Value(i, opts.IDColumn)
		id := geo.Label(v)
		if _, ok := first[id]; !ok {
			first[id] = i
		}
	}

	var out []Marker
	for _, a := range adj {
		for _, street := range a.Adjacent {
			row, ok := first[street]
			if !ok {
				continue
			}
			popup := "Adjacent Intersection: " + street
			if lat, lng, ok := coord(row, opts.StartLatColumn, opts.StartLngColumn); ok {
				out = append(out, Marker{Lat: lat, Lng: lng, Popup: popup, Color: "green", Icon: "play"})
			}
			if lat, lng, ok := coord(row, opts.EndLatColumn, opts.EndLngColumn); ok {
				out = append(out, Marker{Lat: lat, Lng: lng, Popup: popup, Color: "red", Icon: "pause"})
			}
		}
	}
	return out
}

// MarkerMap writes the marker map for adj to path and returns the number of
// markers placed.
func MarkerMap(path string, adj []geo.Adjacency, t *model.Table, opts MapOptions) (int, error) {
	markers := BuildMarkers(adj, t, opts)
	if markers == nil {
		markers = []Marker{}
	}
	markersJSON, err := marshalTemplateJS(markers)
	if err != nil {
		return 0, eris.Wrap(err, "render: marshal markers")
	}

	data := struct {
		Title       string
		CenterLat   float64
		CenterLng   float64
		Zoom        int
		MarkersJSON template.JS
	}{
		Title:       opts.Title,
		CenterLat:   opts.CenterLat,
		CenterLng:   opts.CenterLng,
		Zoom:        opts.Zoom,
		MarkersJSON: markersJSON,
	}
	if err := writePage(path, "markers.html.tmpl", data); err != nil {
		return 0, err
	}

	zap.L().Info("marker map written", zap.String("path", path), zap.Int("markers", len(markers)))
	return len(markers), nil
}
