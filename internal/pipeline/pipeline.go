// Package pipeline composes the traffic stages into the two flows the CLI
// runs: ingest (fetch, clean, filter, persist) and visualize (adjacency,
// marker map, heatmaps). Each stage takes a table and returns a new one.
package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/config"
	"github.com/sells-group/traffic-cli/internal/fetcher"
	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/metrics"
	"github.com/sells-group/traffic-cli/internal/model"
	"github.com/sells-group/traffic-cli/internal/render"
	"github.com/sells-group/traffic-cli/internal/store"
	"github.com/sells-group/traffic-cli/internal/transform"
)

// Phase status values.
const (
	PhaseComplete = "complete"
	PhaseFailed   = "failed"
	PhaseSkipped  = "skipped"
)

// PhaseResult records the outcome of one stage.
type PhaseResult struct {
	Name     string `json:"name" yaml:"name"`
	Status   string `json:"status" yaml:"status"`
	Duration int64  `json:"duration_ms" yaml:"duration_ms"`
	Rows     int    `json:"rows" yaml:"rows"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Result is the summary of a pipeline run.
type Result struct {
	RunID string `json:"run_id" yaml:"run_id"`

	Pages   int                     `json:"pages" yaml:"pages"`
	Fetched int                     `json:"fetched" yaml:"fetched"`
	Stop    fetcher.StopReason      `json:"stop,omitempty" yaml:"stop,omitempty"`
	Missing transform.MissingReport `json:"missing,omitempty" yaml:"missing,omitempty"`
	Kept    int                     `json:"kept" yaml:"kept"`
	Dropped int                     `json:"dropped" yaml:"dropped"`
	Stored  int64                   `json:"stored" yaml:"stored"`

	Congestion map[string]int  `json:"congestion,omitempty" yaml:"congestion,omitempty"`
	Adjacency  []geo.Adjacency `json:"adjacency" yaml:"adjacency"`
	Markers    int             `json:"markers" yaml:"markers"`
	MarkerMap  string          `json:"marker_map,omitempty" yaml:"marker_map,omitempty"`
	Heatmaps   []string        `json:"heatmaps,omitempty" yaml:"heatmaps,omitempty"`

	Phases []PhaseResult `json:"phases" yaml:"phases"`
}

// Pipeline runs the traffic stages against one source and one store.
type Pipeline struct {
	cfg     *config.Config
	fetcher fetcher.Fetcher
	store   store.Store
	metrics *metrics.Metrics

	// OnPage, when set, is called after every fetched page.
	OnPage func(offset, n int)
}

// New creates a Pipeline. st may be nil for flows that do not persist; m may
// be nil, in which case a private registry is used.
func New(cfg *config.Config, f fetcher.Fetcher, st store.Store, m *metrics.Metrics) *Pipeline {
	if m == nil {
		m = metrics.New()
	}
	return &Pipeline{cfg: cfg, fetcher: f, store: st, metrics: m}
}

// NewHTTPFetcher builds the fetcher described by the source config.
func NewHTTPFetcher(cfg config.SourceConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.UserAgent,
		AppToken:   cfg.AppToken,
		Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxRetries: cfg.MaxRetries,
	})
}

// AdjacencyOptions converts the adjacency config into geo options.
func AdjacencyOptions(cfg config.AdjacencyConfig) (geo.Options, error) {
	strategy, err := geo.ParseStrategy(cfg.Strategy)
	if err != nil {
		return geo.Options{}, err
	}
	opts := geo.DefaultOptions()
	if cfg.IDColumn != "" {
		opts.IDColumn = cfg.IDColumn
	}
	if cfg.LngColumn != "" {
		opts.LngColumn = cfg.LngColumn
	}
	if cfg.LatColumn != "" {
		opts.LatColumn = cfg.LatColumn
	}
	if cfg.Radius > 0 {
		opts.Radius = cfg.Radius
	}
	opts.MaxEntries = cfg.MaxEntries
	opts.Strategy = strategy
	return opts, nil
}

func newResult() *Result {
	return &Result{RunID: uuid.New().String()}
}

// track runs fn as the named phase, recording its duration and outcome on res.
func (p *Pipeline) track(res *Result, name string, fn func() (int, error)) error {
	log := zap.L().With(zap.String("run_id", res.RunID), zap.String("phase", name))

	start := time.Now()
	rows, err := fn()
	p.metrics.ObserveStage(name, start)

	phase := PhaseResult{Name: name, Duration: time.Since(start).Milliseconds(), Rows: rows}
	switch {
	case eris.Is(err, errSkip):
		phase.Status = PhaseSkipped
		err = nil
		log.Info("pipeline: phase skipped")
	case err != nil:
		phase.Status = PhaseFailed
		phase.Error = err.Error()
		log.Error("pipeline: phase failed", zap.Int64("duration_ms", phase.Duration), zap.Error(err))
	default:
		phase.Status = PhaseComplete
		log.Info("pipeline: phase complete", zap.Int64("duration_ms", phase.Duration), zap.Int("rows", rows))
	}
	res.Phases = append(res.Phases, phase)
	return err
}

var errSkip = eris.New("pipeline: phase skipped")

// Run executes the full flow: ingest into the store, then visualize the raw
// table. The run stops at the first failed phase.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := newResult()
	zap.L().Info("pipeline: starting run", zap.String("run_id", res.RunID))

	raw, err := p.ingest(ctx, res)
	if err != nil {
		return res, err
	}
	if err := p.visualize(ctx, res, raw); err != nil {
		return res, err
	}
	return res, nil
}

// Ingest fetches every page, cleans and filters the table, and replaces the
// stored table with the result. It returns the raw (unfiltered) table as well
// so callers can visualize it.
func (p *Pipeline) Ingest(ctx context.Context) (*Result, *model.Table, error) {
	res := newResult()
	raw, err := p.ingest(ctx, res)
	return res, raw, err
}

// Visualize computes adjacency over t and writes the marker map and heatmaps.
func (p *Pipeline) Visualize(ctx context.Context, t *model.Table) (*Result, error) {
	res := newResult()
	return res, p.visualize(ctx, res, t)
}

// Map runs the single-shot flow: one unpaginated request, then visualize. A
// failed request (including any non-200 status) is returned before anything
// is written.
func (p *Pipeline) Map(ctx context.Context) (*Result, error) {
	res := newResult()

	var raw *model.Table
	err := p.track(res, "fetch", func() (int, error) {
		t, err := fetcher.FetchOnce(ctx, p.fetcher, p.cfg.Source.URL)
		if err != nil {
			return 0, err
		}
		raw = t
		res.Pages, res.Fetched = 1, t.Len()
		p.metrics.PagesFetched.Inc()
		p.metrics.RecordsFetched.Add(float64(t.Len()))
		return t.Len(), nil
	})
	if err != nil {
		return res, err
	}
	return res, p.visualize(ctx, res, raw)
}

func (p *Pipeline) ingest(ctx context.Context, res *Result) (*model.Table, error) {
	if p.store == nil {
		return nil, eris.New("pipeline: no store configured")
	}

	var raw *model.Table
	_ = p.track(res, "fetch", func() (int, error) {
		pr := fetcher.Paginate(ctx, p.fetcher, fetcher.PageOptions{
			URL:       p.cfg.Source.URL,
			PageSize:  p.cfg.Source.PageSize,
			MaxOffset: p.cfg.Source.MaxOffset,
			PageDelay: time.Duration(p.cfg.Source.PageDelayMS) * time.Millisecond,
			OnPage: func(offset, n int) {
				p.metrics.PagesFetched.Inc()
				p.metrics.RecordsFetched.Add(float64(n))
				if p.OnPage != nil {
					p.OnPage(offset, n)
				}
			},
		})
		raw = pr.Table
		res.Pages, res.Fetched, res.Stop = pr.Pages, pr.Table.Len(), pr.Stop
		// A failed page truncates the fetch; it does not fail the run.
		return pr.Table.Len(), nil
	})
	if err := ctx.Err(); err != nil {
		return raw, eris.Wrap(err, "pipeline: fetch cancelled")
	}

	var filtered *model.Table
	_ = p.track(res, "clean", func() (int, error) {
		cleaned, report := transform.Clean(raw)
		res.Missing = report

		filtered = transform.FilterNonNegative(cleaned)
		res.Kept = filtered.Len()
		res.Dropped = cleaned.Len() - filtered.Len()
		p.metrics.RowsDropped.WithLabelValues("filter").Add(float64(res.Dropped))
		res.Congestion = transform.Breakdown(filtered, p.cfg.Source.SpeedColumn)
		return filtered.Len(), nil
	})

	err := p.track(res, "persist", func() (int, error) {
		if filtered.Len() == 0 && len(filtered.Columns()) == 0 {
			zap.L().Warn("pipeline: nothing fetched, stored table left unchanged")
			return 0, errSkip
		}
		n, err := p.store.ReplaceTable(ctx, p.cfg.Store.Table, filtered)
		if err != nil {
			return 0, eris.Wrap(err, "pipeline: persist")
		}
		res.Stored = n
		p.metrics.RowsStored.Add(float64(n))
		return int(n), nil
	})
	return raw, err
}

func (p *Pipeline) visualize(_ context.Context, res *Result, t *model.Table) error {
	opts, err := AdjacencyOptions(p.cfg.Adjacency)
	if err != nil {
		return err
	}

	adjacencySkipped := false
	err = p.track(res, "adjacency", func() (int, error) {
		adj, err := geo.FindAdjacent(t, opts)
		if eris.Is(err, geo.ErrMissingColumn) {
			zap.L().Warn("Adjacency skipped: a required column is not present in the dataset",
				zap.Strings("columns", []string{opts.IDColumn, opts.LngColumn, opts.LatColumn}),
				zap.Error(err),
			)
			adjacencySkipped = true
			return 0, errSkip
		}
		if err != nil {
			return 0, eris.Wrap(err, "pipeline: adjacency")
		}
		res.Adjacency = adj
		p.metrics.AdjacencyEntries.Set(float64(len(adj)))
		return len(adj), nil
	})
	if err != nil {
		return err
	}

	rc := p.cfg.Render
	err = p.track(res, "markers", func() (int, error) {
		if adjacencySkipped {
			return 0, errSkip
		}
		mapOpts := render.DefaultMapOptions()
		mapOpts.IDColumn = opts.IDColumn
		if rc.MapZoom > 0 {
			mapOpts.Zoom = rc.MapZoom
		}
		name := rc.MarkerFile
		if name == "" {
			name = render.DefaultMarkerFile
		}
		path := filepath.Join(rc.OutputDir, name)
		n, err := render.MarkerMap(path, res.Adjacency, t, mapOpts)
		if err != nil {
			return 0, err
		}
		res.Markers, res.MarkerMap = n, path
		p.metrics.ArtifactsWritten.WithLabelValues("marker_map").Inc()
		return n, nil
	})
	if err != nil {
		return err
	}

	return p.track(res, "heatmaps", func() (int, error) {
		heatOpts := render.DefaultHeatOptions()
		heatOpts.LatColumn, heatOpts.LngColumn = opts.LatColumn, opts.LngColumn
		if rc.TimeColumn != "" {
			heatOpts.TimeColumn = rc.TimeColumn
		}
		if rc.HeatPattern != "" {
			heatOpts.FilePattern = rc.HeatPattern
		}
		if rc.HeatZoom > 0 {
			heatOpts.Zoom = rc.HeatZoom
		}
		if rc.HeatRadius > 0 {
			heatOpts.Radius = rc.HeatRadius
		}

		paths, err := render.Heatmaps(rc.OutputDir, t, heatOpts)
		if eris.Is(err, render.ErrNoTimeColumn) {
			zap.L().Warn("The 'time' column is not present in the dataset", zap.String("column", heatOpts.TimeColumn))
			return 0, errSkip
		}
		res.Heatmaps = paths
		p.metrics.ArtifactsWritten.WithLabelValues("heatmap").Add(float64(len(paths)))
		return len(paths), err
	})
}
