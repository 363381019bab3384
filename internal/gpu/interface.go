package gpu

// Controller owns the NVML lifecycle and hands out device handles.
type Controller interface {
	Shutdown() error
	DeviceCount() int

	// Device returns the handle for a device index. Out-of-range indices
	// are reported against the enumerated device count.
	Device(index int) (Device, error)

	// DeviceByUUID resolves a case-sensitive UUID substring to a device,
	// scanning in index order; the first match wins.
	DeviceByUUID(fragment string) (Device, error)

	// TargetIDs expands the user-facing device selection into device
	// indices. An empty spec and fragment selects every device.
	TargetIDs(spec, uuidFragment string) ([]int, error)
}

// Device is the per-GPU surface the rest of the tool consumes. Every call
// maps to a single NVML query or setter and is individually fallible.
type Device interface {
	Index() int
	UUID() (string, error)
	Name() (string, error)

	Temperature() (int, error)

	FanCount() (int, error)
	FanSpeed() (int, error)
	SetFanSpeed(fanIndex, percent int) error
	RestoreAutoFan(fanIndex int) error

	PowerUsage() (float64, error)
	PowerLimit() (float64, error)
	PowerLimitConstraints() (minWatts, maxWatts float64, err error)
	SetPowerLimit(watts int) error

	MemoryInfo() (used, total, free uint64, err error)
}
