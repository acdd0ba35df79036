package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/model"
)

func streets() *model.Table {
	return model.NewTableFromRecords([]model.Record{
		{"street": "Ashland", "start_latitude": 41.88, "start_longitude": -87.66, "end_latitude": 41.89, "end_longitude": -87.66, "time": "2024-05-01T08:10:00.000"},
		{"street": "Western", "start_latitude": "41.80", "start_longitude": "-87.68", "end_latitude": nil, "end_longitude": nil, "time": "2024-05-01T09:00:00.000"},
		{"street": "Ashland", "start_latitude": 1.0, "start_longitude": 1.0, "end_latitude": 1.0, "end_longitude": 1.0, "time": "2024-05-01T08:45:00.000"},
		{"street": "Halsted", "start_latitude": nil, "start_longitude": -87.64, "time": "not a time"},
	})
}

func TestBuildMarkers(t *testing.T) {
	adj := []geo.Adjacency{
		{Intersection: "Western", Adjacent: []string{"Ashland"}},
		{Intersection: "Ashland", Adjacent: []string{"Western", "Halsted", "Unknown"}},
	}

	got := BuildMarkers(adj, streets(), DefaultMapOptions())
	require.Len(t, got, 3)

	assert.Equal(t, Marker{Lat: 41.88, Lng: -87.66, Popup: "Adjacent Intersection: Ashland", Color: "green", Icon: "play"}, got[0])
	assert.Equal(t, Marker{Lat: 41.89, Lng: -87.66, Popup: "Adjacent Intersection: Ashland", Color: "red", Icon: "pause"}, got[1])
	assert.Equal(t, Marker{Lat: 41.80, Lng: -87.68, Popup: "Adjacent Intersection: Western", Color: "green", Icon: "play"}, got[2])
}

func TestBuildMarkers_SkipsRowsWithoutStartCoordinates(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"street": "Damen", "start_latitude": nil, "start_longitude": nil, "end_latitude": 1.0, "end_longitude": 1.0},
		{"street": "Damen", "start_latitude": "41.90", "start_longitude": "-87.67", "end_latitude": 41.91, "end_longitude": -87.67},
	})
	adj := []geo.Adjacency{{Intersection: "Ashland", Adjacent: []string{"Damen"}}}

	got := BuildMarkers(adj, tbl, DefaultMapOptions())
	require.Len(t, got, 2)
	assert.Equal(t, Marker{Lat: 41.90, Lng: -87.67, Popup: "Adjacent Intersection: Damen", Color: "green", Icon: "play"}, got[0])
	assert.Equal(t, Marker{Lat: 41.91, Lng: -87.67, Popup: "Adjacent Intersection: Damen", Color: "red", Icon: "pause"}, got[1])
}

func TestMarkerMap_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultMarkerFile)
	adj := []geo.Adjacency{{Intersection: "Western", Adjacent: []string{"Ashland"}}}

	n, err := MarkerMap(path, adj, streets(), DefaultMapOptions())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(b)
	assert.Contains(t, html, "Adjacent Intersection: Ashland")
	assert.Contains(t, html, "41.8781")
	assert.Contains(t, html, `"icon":"pause"`)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestMarkerMap_NoAdjacency(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultMarkerFile)
	n, err := MarkerMap(path, nil, streets(), DefaultMapOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "var markers = [];")
}

func TestHourGroups_FirstAppearanceOrder(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"time": "2024-05-01T17:00:00"},
		{"time": "2024-05-01T08:30:00"},
		{"time": "2024-05-01T17:59:59"},
		{"time": 12.0},
	})

	groups, skipped, err := HourGroups(tbl, "time")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []HourGroup{
		{Hour: 17, Rows: []int{0, 2}},
		{Hour: 8, Rows: []int{1}},
	}, groups)
}

func TestHeatmaps(t *testing.T) {
	dir := t.TempDir()

	paths, err := Heatmaps(dir, streets(), DefaultHeatOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "chicago_traffic_heat_1_map.html"),
		filepath.Join(dir, "chicago_traffic_heat_2_map.html"),
	}, paths)

	b, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "08:00")
	assert.Regexp(t, `radius:\s+5\s`, string(b))

	b, err = os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(b), "09:00")
}

func TestHeatmaps_HourWithoutCoordinatesIsNotNumbered(t *testing.T) {
	dir := t.TempDir()
	tbl := model.NewTableFromRecords([]model.Record{
		{"street": "Halsted", "start_latitude": nil, "start_longitude": nil, "time": "2024-05-01T07:00:00"},
		{"street": "Ashland", "start_latitude": 41.88, "start_longitude": -87.66, "time": "2024-05-01T08:00:00"},
	})

	paths, err := Heatmaps(dir, tbl, DefaultHeatOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "chicago_traffic_heat_1_map.html")}, paths)

	b, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), "08:00")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestHeatmaps_NoTimeColumn(t *testing.T) {
	dir := t.TempDir()
	tbl := model.NewTableFromRecords([]model.Record{{"start_latitude": 41.0, "start_longitude": -87.0}})

	paths, err := Heatmaps(dir, tbl, DefaultHeatOptions())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoTimeColumn))
	assert.Empty(t, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{
		"2024-05-01T08:10:00.000",
		"2024-05-01 08:10:00.0",
		"2024-05-01T08:10:00Z",
		"08:10",
	} {
		ts, ok := ParseTime(s)
		require.True(t, ok, s)
		assert.Equal(t, 8, ts.Hour(), s)
	}

	_, ok := ParseTime("yesterday")
	assert.False(t, ok)
	_, ok = ParseTime(nil)
	assert.False(t, ok)
}
