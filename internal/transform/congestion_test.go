package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/traffic-cli/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		speed    float64
		expected string
	}{
		{name: "no estimate", speed: -1, expected: LevelNoData},
		{name: "stopped", speed: 0, expected: LevelHeavy},
		{name: "heavy at threshold", speed: 9, expected: LevelHeavy},
		{name: "medium just past heavy", speed: 9.5, expected: LevelMedium},
		{name: "medium at threshold", speed: 20, expected: LevelMedium},
		{name: "free flow", speed: 31, expected: LevelFreeFlow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.speed))
		})
	}
}

func TestBreakdown(t *testing.T) {
	tbl := model.NewTableFromRecords([]model.Record{
		{"speed": "-1"},
		{"speed": "5"},
		{"speed": 15.0},
		{"speed": "27"},
		{"speed": "fast"},
		{},
	})

	got := Breakdown(tbl, "speed")
	assert.Equal(t, map[string]int{
		LevelNoData:   3,
		LevelHeavy:    1,
		LevelMedium:   1,
		LevelFreeFlow: 1,
	}, got)
}
