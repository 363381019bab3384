package gpu

import (
	"math"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/nvmltool/nvmltool/internal/errors"
)

const milliWattsPerWatt = 1000

type device struct {
	index  int
	handle nvml.Device
}

func (d *device) Index() int {
	return d.index
}

func (d *device) UUID() (string, error) {
	errFactory := errors.New()

	uuid, ret := d.handle.GetUUID()
	if !IsNVMLSuccess(ret) {
		return "", errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	return uuid, nil
}

func (d *device) Name() (string, error) {
	errFactory := errors.New()

	name, ret := d.handle.GetName()
	if !IsNVMLSuccess(ret) {
		return "", errFactory.Wrap(ErrDeviceInfoFailed, newNVMLError(ret))
	}

	return name, nil
}

func (d *device) Temperature() (int, error) {
	errFactory := errors.New()

	temp, ret := d.handle.GetTemperature(nvml.TEMPERATURE_GPU)
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrTemperatureReadFailed, newNVMLError(ret))
	}

	return int(temp), nil
}

func (d *device) FanCount() (int, error) {
	errFactory := errors.New()

	count, ret := d.handle.GetNumFans()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrFanCountFailed, newNVMLError(ret))
	}

	return count, nil
}

func (d *device) FanSpeed() (int, error) {
	errFactory := errors.New()

	speed, ret := d.handle.GetFanSpeed()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrGetFanSpeedFailed, newNVMLError(ret))
	}

	return int(speed), nil
}

func (d *device) SetFanSpeed(fanIndex, percent int) error {
	errFactory := errors.New()

	if ret := nvml.DeviceSetFanSpeed_v2(d.handle, fanIndex, percent); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrSetFanSpeed, newNVMLError(ret))
	}

	return nil
}

// RestoreAutoFan hands the fan back to the driver's own temperature-based
// control policy.
func (d *device) RestoreAutoFan(fanIndex int) error {
	errFactory := errors.New()

	ret := nvml.DeviceSetFanControlPolicy(d.handle, fanIndex, nvml.FAN_POLICY_TEMPERATURE_CONTINOUS_SW)
	if !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrRestoreAutoFan, newNVMLError(ret))
	}

	return nil
}

func (d *device) PowerUsage() (float64, error) {
	errFactory := errors.New()

	usage, ret := d.handle.GetPowerUsage()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrPowerReadFailed, newNVMLError(ret))
	}

	return float64(usage) / milliWattsPerWatt, nil
}

func (d *device) PowerLimit() (float64, error) {
	errFactory := errors.New()

	limit, ret := d.handle.GetPowerManagementLimit()
	if !IsNVMLSuccess(ret) {
		return 0, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	return float64(limit) / milliWattsPerWatt, nil
}

func (d *device) PowerLimitConstraints() (float64, float64, error) {
	errFactory := errors.New()

	minLimit, maxLimit, ret := d.handle.GetPowerManagementLimitConstraints()
	if !IsNVMLSuccess(ret) {
		return 0, 0, errFactory.Wrap(ErrPowerLimitsFailed, newNVMLError(ret))
	}

	return float64(minLimit) / milliWattsPerWatt, float64(maxLimit) / milliWattsPerWatt, nil
}

func (d *device) SetPowerLimit(watts int) error {
	errFactory := errors.New()

	if watts < 0 || watts > math.MaxUint32/milliWattsPerWatt {
		return errFactory.WithData(ErrPowerOutOfRange, watts)
	}

	limitInMilliWatts := uint32(watts) * milliWattsPerWatt

	if ret := d.handle.SetPowerManagementLimit(limitInMilliWatts); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrSetPowerLimit, newNVMLError(ret))
	}

	return nil
}

func (d *device) MemoryInfo() (used, total, free uint64, err error) {
	errFactory := errors.New()

	memory, ret := d.handle.GetMemoryInfo()
	if !IsNVMLSuccess(ret) {
		return 0, 0, 0, errFactory.Wrap(ErrMemoryInfoFailed, newNVMLError(ret))
	}

	return memory.Used, memory.Total, memory.Free, nil
}
