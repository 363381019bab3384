package fancurve_test

import (
	"testing"

	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/fancurve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	table, rest, err := fancurve.Parse([]string{"70:60", "50:30", "80:90"})
	require.NoError(t, err)
	assert.Empty(t, rest)

	// Sorted ascending by temperature regardless of input order
	expected := fancurve.Table{{Temp: 50, Fan: 30}, {Temp: 70, Fan: 60}, {Temp: 80, Fan: 90}}
	assert.Equal(t, expected, table)
}

func TestParseStopsAtFlag(t *testing.T) {
	table, rest, err := fancurve.Parse([]string{"50:30", "80:90", "-d", "0-2"})
	require.NoError(t, err)
	assert.Len(t, table, 2)
	assert.Equal(t, []string{"-d", "0-2"}, rest)
}

func TestParseRejections(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{name: "zero temperature", args: []string{"0:50"}, code: fancurve.ErrInvalidSetpoint},
		{name: "fan above 100", args: []string{"50:150"}, code: fancurve.ErrInvalidSetpoint},
		{name: "negative temperature", args: []string{"-5:50"}, code: fancurve.ErrNoSetpoints},
		{name: "missing colon", args: []string{"5050"}, code: fancurve.ErrInvalidSetpoint},
		{name: "non-numeric", args: []string{"warm:slow"}, code: fancurve.ErrInvalidSetpoint},
		{name: "empty input", args: []string{}, code: fancurve.ErrNoSetpoints},
		{name: "only flags", args: []string{"-d", "0"}, code: fancurve.ErrNoSetpoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := fancurve.Parse(tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.CodeOf(err))
		})
	}
}

func TestParseStableSortKeepsTieOrder(t *testing.T) {
	table, _, err := fancurve.Parse([]string{"60:40", "60:55", "50:20"})
	require.NoError(t, err)

	expected := fancurve.Table{{Temp: 50, Fan: 20}, {Temp: 60, Fan: 40}, {Temp: 60, Fan: 55}}
	assert.Equal(t, expected, table)
}

func TestInterpolate(t *testing.T) {
	table := fancurve.Table{{Temp: 50, Fan: 30}, {Temp: 70, Fan: 60}, {Temp: 80, Fan: 90}}

	tests := []struct {
		name string
		temp int
		want int
	}{
		{name: "below first clamps", temp: 40, want: 30},
		{name: "at first", temp: 50, want: 30},
		{name: "midpoint", temp: 60, want: 45},
		{name: "at middle", temp: 70, want: 60},
		{name: "between middle and last", temp: 75, want: 75},
		{name: "at last", temp: 80, want: 90},
		{name: "above last clamps", temp: 90, want: 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Interpolate(tt.temp))
		})
	}
}

func TestInterpolateTruncatesTowardZero(t *testing.T) {
	// 10 degrees spanning 5 percent: fractional results at every step
	table := fancurve.Table{{Temp: 50, Fan: 0}, {Temp: 60, Fan: 5}}

	assert.Equal(t, 0, table.Interpolate(51)) // 0.5 truncates
	assert.Equal(t, 1, table.Interpolate(53)) // 1.5 truncates
	assert.Equal(t, 4, table.Interpolate(59)) // 4.5 truncates
}

func TestInterpolateMonotonic(t *testing.T) {
	table := fancurve.Table{{Temp: 40, Fan: 20}, {Temp: 55, Fan: 35}, {Temp: 70, Fan: 70}, {Temp: 85, Fan: 100}}

	prev := table.Interpolate(30)
	for temp := 31; temp <= 95; temp++ {
		cur := table.Interpolate(temp)
		assert.GreaterOrEqual(t, cur, prev, "fan speed decreased at %d", temp)
		prev = cur
	}
}

func TestInterpolateExactMatches(t *testing.T) {
	table := fancurve.Table{{Temp: 45, Fan: 25}, {Temp: 62, Fan: 48}, {Temp: 77, Fan: 83}}

	for _, sp := range table {
		assert.Equal(t, sp.Fan, table.Interpolate(sp.Temp))
	}
}

func TestInterpolateEmptyTable(t *testing.T) {
	assert.Equal(t, 0, fancurve.Table{}.Interpolate(60))
}

func TestTableString(t *testing.T) {
	table := fancurve.Table{{Temp: 50, Fan: 30}, {Temp: 70, Fan: 60}}
	assert.Equal(t, "50:30% 70:60%", table.String())
}
