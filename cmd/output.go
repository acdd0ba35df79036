package main

import (
	"context"
	"encoding/json"
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/traffic-cli/internal/pipeline"
	"github.com/sells-group/traffic-cli/internal/store"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}
	return st, nil
}

// writeResult prints res to w in the requested format.
func writeResult(w io.Writer, format string, res *pipeline.Result) error {
	switch format {
	case formatText, "":
		writeSummary(w, res)
		return nil
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(res)
	default:
		return eris.Errorf("unknown format %q (valid: text, json, yaml)", format)
	}
}

// writeSummary prints the adjacency listing followed by a run summary.
func writeSummary(w io.Writer, res *pipeline.Result) {
	p := message.NewPrinter(language.English)

	for _, a := range res.Adjacency {
		p.Fprintf(w, "Intersection: %s, Adjacent Intersections: %v\n", a.Intersection, a.Adjacent)
	}

	p.Fprintf(w, "\nrun %s\n", res.RunID)
	if res.Pages > 0 {
		p.Fprintf(w, "  fetched   %d records in %d pages", res.Fetched, res.Pages)
		if res.Stop != "" {
			p.Fprintf(w, " (%s)", res.Stop)
		}
		p.Fprintf(w, "\n")
	}
	if res.Kept > 0 || res.Dropped > 0 {
		p.Fprintf(w, "  kept      %d rows, dropped %d\n", res.Kept, res.Dropped)
	}
	if res.Stored > 0 {
		p.Fprintf(w, "  stored    %d rows\n", res.Stored)
	}
	if len(res.Congestion) > 0 {
		levels := make([]string, 0, len(res.Congestion))
		for k := range res.Congestion {
			levels = append(levels, k)
		}
		sort.Strings(levels)
		for _, l := range levels {
			p.Fprintf(w, "  %-9s %d segments\n", l, res.Congestion[l])
		}
	}
	p.Fprintf(w, "  adjacent  %d intersections\n", len(res.Adjacency))
	if res.MarkerMap != "" {
		p.Fprintf(w, "  map       %s (%d markers)\n", res.MarkerMap, res.Markers)
	}
	for _, h := range res.Heatmaps {
		p.Fprintf(w, "  heatmap   %s\n", h)
	}
}
