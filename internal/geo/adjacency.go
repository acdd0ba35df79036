package geo

import (
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/model"
)

// Strategy selects how candidate pairs are enumerated.
type Strategy string

const (
	// StrategyScan compares every site with every other site.
	StrategyScan Strategy = "scan"
	// StrategyGrid only compares sites in neighbouring grid cells. Results
	// are identical to StrategyScan.
	StrategyGrid Strategy = "grid"
)

// ParseStrategy converts a config string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyScan, StrategyGrid:
		return Strategy(s), nil
	case "":
		return StrategyGrid, nil
	default:
		return "", eris.Errorf("geo: unknown strategy %q (valid: scan, grid)", s)
	}
}

// Options configures FindAdjacent.
type Options struct {
	IDColumn  string
	LngColumn string
	LatColumn string
	// Radius is the buffer radius in coordinate degrees.
	Radius float64
	// MaxEntries stops the search once this many rows have produced an
	// entry. Zero means no cap.
	MaxEntries int
	Strategy   Strategy
}

// DefaultOptions returns the options used for the traffic tracker dataset.
func DefaultOptions() Options {
	return Options{
		IDColumn:  "street",
		LngColumn: "start_longitude",
		LatColumn: "start_latitude",
		Radius:    DefaultRadius,
		Strategy:  StrategyGrid,
	}
}

// Adjacency lists the identifiers of the records whose points fall within
// the buffer of one record.
type Adjacency struct {
	Intersection string   `json:"intersection" yaml:"intersection"`
	Adjacent     []string `json:"adjacent" yaml:"adjacent"`
	// Row is the position of the source record in the input table.
	Row int `json:"row" yaml:"row"`
}

// Buffer is the disc of a fixed radius around a point.
type Buffer struct {
	center *geom.Point
	radius float64
	bounds *geom.Bounds
}

// NewBuffer returns the buffer of radius r around p.
func NewBuffer(p *geom.Point, r float64) *Buffer {
	x, y := p.X(), p.Y()
	return &Buffer{
		center: p,
		radius: r,
		bounds: geom.NewBounds(geom.XY).Set(x-r, y-r, x+r, y+r),
	}
}

// Bounds returns the buffer's bounding box.
func (b *Buffer) Bounds() *geom.Bounds { return b.bounds }

// Intersects reports whether p lies inside or on the edge of the buffer.
func (b *Buffer) Intersects(p *geom.Point) bool {
	if !b.bounds.OverlapsPoint(geom.XY, p.Coords()) {
		return false
	}
	return math.Hypot(p.X()-b.center.X(), p.Y()-b.center.Y()) <= b.radius
}

// FindAdjacent returns one entry for every row whose buffer contains at least
// one other row's point, in row order. Each entry's adjacent list is in row
// order too. Coincident points are not collapsed: each appears in the other's
// list.
func FindAdjacent(t *model.Table, opts Options) ([]Adjacency, error) {
	if opts.Radius <= 0 {
		return nil, eris.Errorf("geo: radius must be positive, got %v", opts.Radius)
	}
	sites, err := Sites(t, opts.IDColumn, opts.LngColumn, opts.LatColumn)
	if err != nil {
		return nil, err
	}

	var candidates func(i int) []int
	switch opts.Strategy {
	case StrategyScan:
		candidates = func(int) []int { return allIndexes(len(sites)) }
	case StrategyGrid, "":
		g := newGrid(sites, opts.Radius)
		candidates = g.near
	default:
		return nil, eris.Errorf("geo: unknown strategy %q", opts.Strategy)
	}

	var out []Adjacency
	for i, s := range sites {
		buf := NewBuffer(s.Point, opts.Radius)
		var adjacent []string
		for _, j := range candidates(i) {
			if j == i {
				continue
			}
			if buf.Intersects(sites[j].Point) {
				adjacent = append(adjacent, sites[j].ID)
			}
		}
		if len(adjacent) == 0 {
			continue
		}
		out = append(out, Adjacency{Intersection: s.ID, Adjacent: adjacent, Row: s.Row})
		if opts.MaxEntries > 0 && len(out) >= opts.MaxEntries {
			break
		}
	}

	zap.L().Debug("adjacency scan complete",
		zap.String("strategy", string(opts.Strategy)),
		zap.Int("sites", len(sites)),
		zap.Int("entries", len(out)),
	)
	return out, nil
}

func allIndexes(n int) []int {
	out := make([]int, n)
	for i := range n {
		out[i] = i
	}
	return out
}

type cell struct{ x, y int64 }

// grid buckets sites into square cells one radius wide, so every point within
// a radius of a site lies in the site's cell or one of its eight neighbours.
type grid struct {
	size  float64
	cells map[cell][]int
	of    []cell
}

func newGrid(sites []Site, size float64) *grid {
	g := &grid{
		size:  size,
		cells: make(map[cell][]int),
		of:    make([]cell, len(sites)),
	}
	for i, s := range sites {
		c := g.cellOf(s.Point)
		g.of[i] = c
		g.cells[c] = append(g.cells[c], i)
	}
	return g
}

func (g *grid) cellOf(p *geom.Point) cell {
	return cell{
		x: int64(math.Floor(p.X() / g.size)),
		y: int64(math.Floor(p.Y() / g.size)),
	}
}

// near returns the indexes of the sites in the 3x3 block around site i, in
// ascending order.
func (g *grid) near(i int) []int {
	c := g.of[i]
	var out []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			out = append(out, g.cells[cell{c.x + dx, c.y + dy}]...)
		}
	}
	slices.Sort(out)
	return out
}
