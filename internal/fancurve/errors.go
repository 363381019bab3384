package fancurve

import "github.com/nvmltool/nvmltool/internal/errors"

const (
	ErrInvalidSetpoint = errors.ErrorCode("fancurve_invalid_setpoint")
	ErrNoSetpoints     = errors.ErrorCode("fancurve_no_setpoints")
)
