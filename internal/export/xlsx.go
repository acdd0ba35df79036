// Package export writes the stored traffic table and adjacency results to
// desktop formats: an XLSX workbook and a point shapefile.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/model"
)

// DefaultSheet is the worksheet name used by WriteXLSX.
const DefaultSheet = "traffic"

// WriteXLSX writes t to a single-sheet workbook at path. The first row holds
// the column names; numbers and booleans keep their cell types and structured
// values are written as JSON text.
func WriteXLSX(path string, t *model.Table, sheetName string) error {
	if sheetName == "" {
		sheetName = DefaultSheet
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrapf(err, "xlsx: add sheet %s", sheetName)
	}

	cols := t.Columns()
	header := sheet.AddRow()
	for _, c := range cols {
		header.AddCell().SetString(c)
	}

	for i := range t.Len() {
		row := sheet.AddRow()
		for _, c := range cols {
			cell := row.AddCell()
			v, ok := t.Value(i, c)
			if !ok {
				continue
			}
			setCell(cell, v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "xlsx: save %s", path)
	}
	zap.L().Info("xlsx export written", zap.String("path", path), zap.Int("rows", t.Len()))
	return nil
}

func setCell(cell *xlsx.Cell, v any) {
	switch x := v.(type) {
	case string:
		cell.SetString(x)
	case float64:
		cell.SetFloat(x)
	case int:
		cell.SetInt(x)
	case int64:
		cell.SetInt(int(x))
	case bool:
		cell.SetBool(x)
	case map[string]any, []any, model.Record:
		b, err := json.Marshal(x)
		if err != nil {
			cell.SetString(fmt.Sprint(x))
			return
		}
		cell.SetString(string(b))
	default:
		cell.SetString(fmt.Sprint(x))
	}
}
