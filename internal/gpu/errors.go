package gpu

import (
	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/nvmltool/nvmltool/internal/errors"
)

const (
	// Initialization and Lifecycle Errors
	ErrInitFailed     = errors.ErrorCode("gpu_init_failed")
	ErrShutdownFailed = errors.ErrorCode("gpu_shutdown_failed")

	// Device Discovery Errors
	ErrDeviceCountFailed = errors.ErrorCode("gpu_device_count_failed")
	ErrDeviceNotFound    = errors.ErrorCode("gpu_device_not_found")
	ErrNoDevices         = errors.ErrorCode("gpu_no_devices")
	ErrInvalidDeviceSpec = errors.ErrorCode("gpu_invalid_device_spec")
	ErrDeviceInfoFailed  = errors.ErrorCode("gpu_device_info_failed")

	// Temperature Errors
	ErrTemperatureReadFailed = errors.ErrorCode("gpu_temperature_read_failed")

	// Fan Control Errors
	ErrFanCountFailed    = errors.ErrorCode("gpu_fan_count_failed")
	ErrGetFanSpeedFailed = errors.ErrorCode("gpu_fan_speed_failed")
	ErrSetFanSpeed       = errors.ErrorCode("gpu_set_fan_speed_failed")
	ErrRestoreAutoFan    = errors.ErrorCode("gpu_restore_auto_fan_failed")
	ErrNoFans            = errors.ErrorCode("gpu_no_controllable_fans")

	// Power Management Errors
	ErrPowerReadFailed   = errors.ErrorCode("gpu_power_read_failed")
	ErrPowerLimitsFailed = errors.ErrorCode("gpu_power_limits_failed")
	ErrSetPowerLimit     = errors.ErrorCode("gpu_set_power_limit_failed")
	ErrPowerOutOfRange   = errors.ErrorCode("gpu_power_limit_out_of_range")

	// Memory Errors
	ErrMemoryInfoFailed = errors.ErrorCode("gpu_memory_info_failed")
)

// nvmlError adapts an NVML return code to error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
