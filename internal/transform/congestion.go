package transform

import (
	"strconv"
	"strings"

	"github.com/sells-group/traffic-cli/internal/model"
)

// Congestion level constants, following the traffic tracker's colour bands.
const (
	LevelHeavy    = "heavy"
	LevelMedium   = "medium"
	LevelFreeFlow = "free_flow"
	LevelNoData   = "no_data"
)

// Speed thresholds in miles per hour.
const (
	heavyMaxSpeed  = 9.0  // 0-9 mph
	mediumMaxSpeed = 20.0 // 10-20 mph
)

// Classify returns the congestion level for an estimated segment speed.
// Rules:
//   - no_data: speed < 0 (the feed reports -1 when there is no estimate)
//   - heavy: speed <= 9
//   - medium: speed <= 20
//   - free_flow: speed > 20
func Classify(speed float64) string {
	switch {
	case speed < 0:
		return LevelNoData
	case speed <= heavyMaxSpeed:
		return LevelHeavy
	case speed <= mediumMaxSpeed:
		return LevelMedium
	default:
		return LevelFreeFlow
	}
}

// Breakdown counts rows per congestion level using the speed column. The
// column may hold numbers or numeric strings; rows without a usable speed
// count as no_data.
func Breakdown(t *model.Table, speedCol string) map[string]int {
	out := make(map[string]int)
	for i := range t.Len() {
		v, ok := t.Value(i, speedCol)
		if !ok {
			out[LevelNoData]++
			continue
		}
		speed, ok := AsNumber(v)
		if !ok {
			s, isStr := v.(string)
			if !isStr {
				out[LevelNoData]++
				continue
			}
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				out[LevelNoData]++
				continue
			}
			speed = f
		}
		out[Classify(speed)]++
	}
	return out
}
