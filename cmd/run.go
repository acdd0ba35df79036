package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/metrics"
	"github.com/sells-group/traffic-cli/internal/pipeline"
)

var (
	runFormat   string
	runProgress bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch, clean, store and visualize the traffic dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("run"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := metrics.New()
		p := pipeline.New(cfg, pipeline.NewHTTPFetcher(cfg.Source), st, m)

		if runProgress {
			bar := progressbar.NewOptions(-1,
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionSetDescription("fetching"),
				progressbar.OptionShowCount(),
				progressbar.OptionSpinnerType(14),
				progressbar.OptionClearOnFinish(),
			)
			defer bar.Finish() //nolint:errcheck
			p.OnPage = func(_, n int) { _ = bar.Add(n) }
		}

		res, runErr := p.Run(ctx)
		writeTextfile(m)

		if err := writeResult(cmd.OutOrStdout(), runFormat, res); err != nil {
			return err
		}
		if runErr != nil {
			return eris.Wrap(runErr, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.String("run_id", res.RunID),
			zap.Int("fetched", res.Fetched),
			zap.Int64("stored", res.Stored),
			zap.Int("adjacency", len(res.Adjacency)),
			zap.Int("heatmaps", len(res.Heatmaps)),
		)
		return nil
	},
}

// writeTextfile dumps the run's metrics when a textfile path is configured.
func writeTextfile(m *metrics.Metrics) {
	if cfg.Metrics.TextfilePath == "" {
		return
	}
	if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
		zap.L().Warn("metrics textfile not written", zap.Error(err))
	}
}

func init() {
	runCmd.Flags().StringVar(&runFormat, "format", formatText, "output format: text, json or yaml")
	runCmd.Flags().BoolVar(&runProgress, "progress", true, "show fetch progress on stderr")
	rootCmd.AddCommand(runCmd)
}
