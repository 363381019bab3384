package fanctl

import "github.com/nvmltool/nvmltool/internal/errors"

const (
	ErrNoDevices       = errors.ErrorCode("fanctl_no_devices")
	ErrNoCurve         = errors.ErrorCode("fanctl_no_curve")
	ErrInvalidInterval = errors.ErrorCode("fanctl_invalid_interval")
	ErrSetupFailed     = errors.ErrorCode("fanctl_setup_failed")
	ErrTemperatureRead = errors.ErrorCode("fanctl_temperature_read_failed")
	ErrFanWrite        = errors.ErrorCode("fanctl_fan_write_failed")
)
