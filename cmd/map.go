package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/traffic-cli/internal/metrics"
	"github.com/sells-group/traffic-cli/internal/pipeline"
)

var (
	mapFormat     string
	mapMaxEntries int
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Fetch one page and render the adjacency marker map",
	Long:  "Issues a single request to the source, computes adjacency over the response and writes the marker map and heatmaps. Nothing is stored. A failed request exits non-zero before any file is written.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("max-entries") {
			cfg.Adjacency.MaxEntries = mapMaxEntries
		}
		if err := cfg.Validate("map"); err != nil {
			return err
		}

		m := metrics.New()
		p := pipeline.New(cfg, pipeline.NewHTTPFetcher(cfg.Source), nil, m)

		res, err := p.Map(ctx)
		if err != nil {
			return eris.Wrap(err, "map")
		}
		writeTextfile(m)
		return writeResult(cmd.OutOrStdout(), mapFormat, res)
	},
}

func init() {
	mapCmd.Flags().StringVar(&mapFormat, "format", formatText, "output format: text, json or yaml")
	mapCmd.Flags().IntVar(&mapMaxEntries, "max-entries", 0, "stop after this many adjacency entries (0 = no cap)")
	rootCmd.AddCommand(mapCmd)
}
