// Package format renders device telemetry for the terminal: temperature
// units, per-device status lines, and the info command's human and JSON
// output. Display conversion never feeds back into control decisions; the
// control loop always operates on raw Celsius readings.
package format

import (
	"github.com/nvmltool/nvmltool/internal/errors"
)

const ErrInvalidUnit = errors.ErrorCode("format_invalid_temperature_unit")

// Unit is a display temperature unit.
type Unit byte

const (
	Celsius    Unit = 'C'
	Fahrenheit Unit = 'F'
	Kelvin     Unit = 'K'
)

// ParseUnit accepts the --temp-unit flag values C, F and K.
func ParseUnit(s string) (Unit, error) {
	errFactory := errors.New()

	switch s {
	case "C":
		return Celsius, nil
	case "F":
		return Fahrenheit, nil
	case "K":
		return Kelvin, nil
	default:
		return 0, errFactory.WithData(ErrInvalidUnit, s)
	}
}

// Convert converts a Celsius reading to the display unit.
func (u Unit) Convert(tempC int) float64 {
	switch u {
	case Fahrenheit:
		return float64(tempC)*9.0/5.0 + 32.0
	case Kelvin:
		return float64(tempC) + 273.15
	default:
		return float64(tempC)
	}
}

// String returns the unit suffix character.
func (u Unit) String() string {
	return string(rune(u))
}
