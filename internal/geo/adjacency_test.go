package geo

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/traffic-cli/internal/model"
)

func pointTable(pts ...[3]any) *model.Table {
	recs := make([]model.Record, len(pts))
	for i, p := range pts {
		recs[i] = model.Record{"street": p[0], "start_longitude": p[1], "start_latitude": p[2]}
	}
	return model.NewTableFromRecords(recs)
}

func testOptions(s Strategy) Options {
	opts := DefaultOptions()
	opts.Strategy = s
	return opts
}

func TestFindAdjacent_TwoGroups(t *testing.T) {
	tbl := pointTable(
		[3]any{"A", 0.0, 0.0},
		[3]any{"B", 0.0, 0.0001},
		[3]any{"C", 5.0, 5.0},
		[3]any{"D", 5.0, 5.0001},
	)

	for _, s := range []Strategy{StrategyScan, StrategyGrid} {
		t.Run(string(s), func(t *testing.T) {
			adj, err := FindAdjacent(tbl, testOptions(s))
			require.NoError(t, err)
			require.Len(t, adj, 4)

			assert.Equal(t, Adjacency{Intersection: "A", Adjacent: []string{"B"}, Row: 0}, adj[0])
			assert.Equal(t, Adjacency{Intersection: "B", Adjacent: []string{"A"}, Row: 1}, adj[1])
			assert.Equal(t, Adjacency{Intersection: "C", Adjacent: []string{"D"}, Row: 2}, adj[2])
			assert.Equal(t, Adjacency{Intersection: "D", Adjacent: []string{"C"}, Row: 3}, adj[3])
		})
	}
}

func TestFindAdjacent_CoincidentPointsAreSymmetric(t *testing.T) {
	tbl := pointTable(
		[3]any{"Ashland", -87.66, 41.88},
		[3]any{"Ashland", -87.66, 41.88},
		[3]any{"Western", -87.60, 41.80},
	)

	adj, err := FindAdjacent(tbl, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, adj, 2)
	assert.Equal(t, []string{"Ashland"}, adj[0].Adjacent)
	assert.Equal(t, []string{"Ashland"}, adj[1].Adjacent)
}

func TestFindAdjacent_StringCoordinatesAndSkippedRows(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"street": "A", "start_longitude": "-87.6298", "start_latitude": "41.8781"},
		{"street": "B", "start_longitude": nil, "start_latitude": "41.8781"},
		{"street": "C", "start_longitude": "n/a", "start_latitude": "41.8781"},
		{"street": "D", "start_longitude": -87.6299, "start_latitude": 41.8781},
	})

	adj, err := FindAdjacent(tbl, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, adj, 2)
	assert.Equal(t, "A", adj[0].Intersection)
	assert.Equal(t, []string{"D"}, adj[0].Adjacent)
	assert.Equal(t, 3, adj[1].Row)
}

func TestFindAdjacent_MaxEntries(t *testing.T) {
	var pts [][3]any
	for i := range 20 {
		pts = append(pts, [3]any{fmt.Sprintf("S%d", i), 0.0, float64(i) * 0.0001})
	}
	opts := DefaultOptions()
	opts.MaxEntries = 7

	adj, err := FindAdjacent(pointTable(pts...), opts)
	require.NoError(t, err)
	assert.Len(t, adj, 7)
	assert.Equal(t, "S6", adj[6].Intersection)
}

func TestFindAdjacent_MissingColumn(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{{"start_longitude": 1.0, "start_latitude": 1.0}})
	_, err := FindAdjacent(tbl, DefaultOptions())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrMissingColumn))
}

func TestFindAdjacent_InvalidOptions(t *testing.T) {
	tbl := pointTable([3]any{"A", 0.0, 0.0})

	opts := DefaultOptions()
	opts.Radius = 0
	_, err := FindAdjacent(tbl, opts)
	require.Error(t, err)

	opts = DefaultOptions()
	opts.Strategy = "rtree"
	_, err = FindAdjacent(tbl, opts)
	require.Error(t, err)
}

func TestFindAdjacent_GridMatchesScan(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	var pts [][3]any
	for i := range 300 {
		pts = append(pts, [3]any{
			fmt.Sprintf("S%d", i),
			-87.7 + rng.Float64()*0.02,
			41.85 + rng.Float64()*0.02,
		})
	}
	tbl := pointTable(pts...)

	scan, err := FindAdjacent(tbl, testOptions(StrategyScan))
	require.NoError(t, err)
	grid, err := FindAdjacent(tbl, testOptions(StrategyGrid))
	require.NoError(t, err)

	assert.NotEmpty(t, scan)
	assert.Equal(t, scan, grid)
}

func TestFindAdjacent_Symmetry(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	var pts [][3]any
	for i := range 100 {
		pts = append(pts, [3]any{fmt.Sprintf("S%d", i), rng.Float64() * 0.01, rng.Float64() * 0.01})
	}

	adj, err := FindAdjacent(pointTable(pts...), DefaultOptions())
	require.NoError(t, err)

	lists := make(map[string]map[string]bool)
	for _, a := range adj {
		lists[a.Intersection] = make(map[string]bool)
		for _, b := range a.Adjacent {
			lists[a.Intersection][b] = true
		}
	}
	for a, neighbours := range lists {
		for b := range neighbours {
			assert.True(t, lists[b][a], "%s lists %s but not the reverse", a, b)
		}
	}
}

func TestBuffer_Intersects(t *testing.T) {
	buf := NewBuffer(NewPoint(0, 0), 0.001)

	assert.True(t, buf.Intersects(NewPoint(0, 0)))
	assert.True(t, buf.Intersects(NewPoint(0.0005, 0.0005)))
	assert.False(t, buf.Intersects(NewPoint(0.0008, 0.0008)), "inside bounds but outside the disc")
	assert.False(t, buf.Intersects(NewPoint(0.002, 0)))

	assert.InDelta(t, -0.001, buf.Bounds().Min(0), 1e-12)
	assert.InDelta(t, 0.001, buf.Bounds().Max(1), 1e-12)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyGrid, s)

	s, err = ParseStrategy("scan")
	require.NoError(t, err)
	assert.Equal(t, StrategyScan, s)

	_, err = ParseStrategy("kd")
	require.Error(t, err)
}

func TestCoordinate(t *testing.T) {
	f, ok := Coordinate(" 41.5 ")
	assert.True(t, ok)
	assert.Equal(t, 41.5, f)

	_, ok = Coordinate("")
	assert.False(t, ok)

	_, ok = Coordinate(true)
	assert.False(t, ok)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "", Label(nil))
	assert.Equal(t, "Ashland", Label("Ashland"))
	assert.Equal(t, "1234", Label(1234.0))
	assert.Equal(t, "true", Label(true))
}
