package telemetry

import (
	"context"
	"time"
)

// Collector records control-loop samples.
type Collector interface {
	Record(ctx context.Context, sample *Sample) error
	Close() error
}

// Sample is one device's state in one control-loop cycle.
type Sample struct {
	Timestamp        time.Time
	DeviceID         int
	Temperature      int
	TargetFanPercent int
}

// Config holds the telemetry storage settings.
type Config struct {
	DBPath string
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return factory().New(ErrInvalidDBPath)
	}
	return nil
}

// Disabled returns a Collector that drops every sample. Used when telemetry
// is switched off so the control loop does not need a nil check per cycle.
func Disabled() Collector {
	return noopCollector{}
}

type noopCollector struct{}

func (noopCollector) Record(context.Context, *Sample) error { return nil }
func (noopCollector) Close() error                          { return nil }
