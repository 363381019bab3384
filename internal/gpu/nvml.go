package gpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/logger"
)

type controller struct {
	count       int
	initialized bool
	logger      logger.Logger
}

// New initializes NVML and enumerates the available devices.
func New(log logger.Logger) (Controller, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrInitFailed, newNVMLError(ret))
	}

	c := &controller{initialized: true, logger: log}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		c.Shutdown()
		return nil, errFactory.Wrap(ErrDeviceCountFailed, newNVMLError(ret))
	}

	if count == 0 {
		c.Shutdown()
		return nil, errFactory.New(ErrNoDevices)
	}

	c.count = count
	log.Debug().Int("devices", count).Msg("NVML initialized")

	return c, nil
}

func (c *controller) Shutdown() error {
	errFactory := errors.New()
	if !c.initialized {
		return nil
	}

	if ret := nvml.Shutdown(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(ErrShutdownFailed, newNVMLError(ret))
	}
	c.initialized = false

	return nil
}

func (c *controller) DeviceCount() int {
	return c.count
}

func (c *controller) Device(index int) (Device, error) {
	errFactory := errors.New()

	if index < 0 || index >= c.count {
		return nil, errFactory.WithData(ErrDeviceNotFound,
			fmt.Sprintf("device %d not found (available: 0-%d)", index, c.count-1))
	}

	handle, ret := nvml.DeviceGetHandleByIndex(index)
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrDeviceNotFound, newNVMLError(ret))
	}

	return &device{index: index, handle: handle}, nil
}

func (c *controller) DeviceByUUID(fragment string) (Device, error) {
	errFactory := errors.New()

	for i := 0; i < c.count; i++ {
		dev, err := c.Device(i)
		if err != nil {
			continue
		}

		uuid, err := dev.UUID()
		if err != nil {
			continue
		}

		if matchUUID(uuid, fragment) {
			return dev, nil
		}
	}

	return nil, errFactory.WithData(ErrDeviceNotFound,
		fmt.Sprintf("device with UUID %q not found", fragment))
}

func (c *controller) TargetIDs(spec, uuidFragment string) ([]int, error) {
	if uuidFragment != "" {
		dev, err := c.DeviceByUUID(uuidFragment)
		if err != nil {
			return nil, err
		}

		return []int{dev.Index()}, nil
	}

	if spec != "" {
		return ParseDeviceSpec(spec)
	}

	ids := make([]int, c.count)
	for i := range ids {
		ids[i] = i
	}

	return ids, nil
}
