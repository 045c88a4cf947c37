package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeriesValidate(t *testing.T) {
	cases := []struct {
		name    string
		series  Series
		wantErr bool
	}{
		{"empty", nil, false},
		{"ordered", Series{{Step: 1, Count: 0}, {Step: 5, Count: 3}, {Step: 6, Count: 1}}, false},
		{"missing entries allowed", Series{{Step: 2, Missing: true}, {Step: 4, Count: 1}}, false},
		{"step zero", Series{{Step: 0, Count: 1}}, true},
		{"duplicate step", Series{{Step: 3, Count: 1}, {Step: 3, Count: 2}}, true},
		{"decreasing step", Series{{Step: 5, Count: 1}, {Step: 4, Count: 2}}, true},
		{"negative count", Series{{Step: 1, Count: -1}}, true},
		{"negative count on missing is ignored", Series{{Step: 1, Count: -1, Missing: true}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.series.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
