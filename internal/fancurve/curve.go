// Package fancurve maps GPU temperatures to fan speeds through a
// piecewise-linear curve defined by user-supplied setpoints.
package fancurve

import (
	"sort"
	"strconv"
	"strings"

	"github.com/nvmltool/nvmltool/internal/errors"
)

// MaxSetpoints bounds how many control points a curve may carry.
const MaxSetpoints = 16

// Setpoint is a single temperature to fan-speed control point.
// Temp is in Celsius and must be positive; Fan is a percentage 0-100.
type Setpoint struct {
	Temp int
	Fan  int
}

// Table is a fan curve: setpoints sorted ascending by temperature.
// A Table is immutable once parsed.
type Table []Setpoint

// Parse consumes setpoint tokens of the form "<temp>:<fan>" from args and
// returns the resulting table plus the arguments that were not consumed.
// Parsing stops at the first token with a flag prefix, after MaxSetpoints
// tokens, or when args is exhausted. Ties in temperature keep their input
// order (stable sort), so the earlier of two equal-temperature setpoints
// decides the fan value at and below that temperature.
func Parse(args []string) (Table, []string, error) {
	errFactory := errors.New()

	table := make(Table, 0, len(args))
	rest := []string{}

	for i, arg := range args {
		if strings.HasPrefix(arg, "-") || len(table) == MaxSetpoints {
			rest = args[i:]
			break
		}

		sp, err := parseSetpoint(arg)
		if err != nil {
			return nil, nil, err
		}
		table = append(table, sp)
	}

	if len(table) == 0 {
		return nil, nil, errFactory.New(ErrNoSetpoints)
	}

	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Temp < table[j].Temp
	})

	return table, rest, nil
}

func parseSetpoint(token string) (Setpoint, error) {
	errFactory := errors.New()

	tempStr, fanStr, ok := strings.Cut(token, ":")
	if !ok {
		return Setpoint{}, errFactory.WithData(ErrInvalidSetpoint, token)
	}

	temp, err := strconv.Atoi(tempStr)
	if err != nil || temp <= 0 {
		return Setpoint{}, errFactory.WithData(ErrInvalidSetpoint, token)
	}

	fan, err := strconv.Atoi(fanStr)
	if err != nil || fan < 0 || fan > 100 {
		return Setpoint{}, errFactory.WithData(ErrInvalidSetpoint, token)
	}

	return Setpoint{Temp: temp, Fan: fan}, nil
}

// Interpolate returns the target fan percentage for the given temperature.
// Temperatures at or below the first setpoint clamp to its fan value, at or
// above the last to its fan value. Between two setpoints the fan value is
// linearly interpolated with integer division; fractional percentages
// truncate toward zero rather than round.
func (t Table) Interpolate(temp int) int {
	if len(t) == 0 {
		return 0
	}

	if temp <= t[0].Temp {
		return t[0].Fan
	}

	last := t[len(t)-1]
	if temp >= last.Temp {
		return last.Fan
	}

	for i := 0; i < len(t)-1; i++ {
		lo, hi := t[i], t[i+1]
		if temp >= lo.Temp && temp <= hi.Temp {
			return lo.Fan + (hi.Fan-lo.Fan)*(temp-lo.Temp)/(hi.Temp-lo.Temp)
		}
	}

	return t[0].Fan
}

// String renders the curve the way it is announced before the control loop
// starts, e.g. "50:30% 70:60% 80:90%".
func (t Table) String() string {
	var b strings.Builder
	for i, sp := range t {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(sp.Temp))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(sp.Fan))
		b.WriteByte('%')
	}

	return b.String()
}
