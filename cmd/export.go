package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/export"
	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/pipeline"
)

var (
	exportFormat string
	exportOut    string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored table as a spreadsheet or an adjacency shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("export"); err != nil {
			return err
		}

		out := exportOut
		switch exportFormat {
		case "xlsx":
			if out == "" {
				out = "traffic_data.xlsx"
			}
		case "shp":
			if out == "" {
				out = "traffic_adjacency.shp"
			}
		default:
			return eris.Errorf("unknown export format %q (valid: xlsx, shp)", exportFormat)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		t, err := st.ReadTable(ctx, cfg.Store.Table, exportLimit, 0)
		if err != nil {
			return eris.Wrap(err, "export: read table")
		}

		var n int
		switch exportFormat {
		case "xlsx":
			if err := export.WriteXLSX(out, t, export.DefaultSheet); err != nil {
				return err
			}
			n = t.Len()
		case "shp":
			opts, err := pipeline.AdjacencyOptions(cfg.Adjacency)
			if err != nil {
				return err
			}
			adj, err := geo.FindAdjacent(t, opts)
			if err != nil {
				return eris.Wrap(err, "export: adjacency")
			}
			if n, err = export.WriteShapefile(out, t, adj, opts); err != nil {
				return err
			}
		}

		zap.L().Info("export complete",
			zap.String("format", exportFormat),
			zap.String("path", out),
			zap.Int("features", n),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", n, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "xlsx", "export format: xlsx or shp")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (default traffic_data.xlsx or traffic_adjacency.shp)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 10000, "maximum rows read from the store")
	rootCmd.AddCommand(exportCmd)
}
