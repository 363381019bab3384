// Package fanctl runs the closed-loop fan controller: it polls device
// temperatures at a fixed cadence, maps them through the fan curve and
// applies the result to every fan of every controlled device. Any read or
// write failure stops the whole loop; a partially controlled set of fans is
// judged more dangerous than handing everything back to the driver's
// automatic policy.
package fanctl

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/fancurve"
	"github.com/nvmltool/nvmltool/internal/format"
	"github.com/nvmltool/nvmltool/internal/logger"
	"github.com/nvmltool/nvmltool/internal/telemetry"
)

// controlledDevice is a device confirmed to have at least one fan.
type controlledDevice struct {
	id       int
	dev      Device
	fanCount int
}

// Controller owns the set of controlled devices for one loop invocation.
// The set is fixed at construction; there is no hot-add or remove.
type Controller struct {
	devices   []controlledDevice
	curve     fancurve.Table
	interval  time.Duration
	unit      format.Unit
	out       io.Writer
	collector telemetry.Collector
	logger    logger.Logger
}

// New validates the configuration and confirms fan control support on every
// requested device. Setup is all or nothing: a single device without
// controllable fans prevents the loop from starting for all of them.
func New(cfg Config) (*Controller, error) {
	errFactory := errors.New()

	if len(cfg.Devices) == 0 {
		return nil, errFactory.New(ErrNoDevices)
	}
	if len(cfg.Curve) == 0 {
		return nil, errFactory.New(ErrNoCurve)
	}
	if cfg.Interval <= 0 {
		return nil, errFactory.WithData(ErrInvalidInterval, cfg.Interval)
	}

	c := &Controller{
		curve:     cfg.Curve,
		interval:  cfg.Interval,
		unit:      cfg.Unit,
		out:       cfg.Out,
		collector: cfg.Collector,
		logger:    cfg.Logger,
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.collector == nil {
		c.collector = telemetry.Disabled()
	}
	if c.logger == nil {
		c.logger = logger.Default()
	}

	setupFailures := 0
	for _, dev := range cfg.Devices {
		fanCount, err := dev.FanCount()
		if err != nil || fanCount == 0 {
			c.logger.Error().Err(err).Int("device", dev.Index()).
				Msg("device has no controllable fans")
			setupFailures++
			continue
		}

		c.devices = append(c.devices, controlledDevice{
			id:       dev.Index(),
			dev:      dev,
			fanCount: fanCount,
		})
	}

	if setupFailures > 0 {
		return nil, errFactory.WithData(ErrSetupFailed,
			fmt.Sprintf("%d of %d devices cannot be controlled", setupFailures, len(cfg.Devices)))
	}

	return c, nil
}

// Run announces the active curve and polls until the context is cancelled or
// a device call fails. The first cycle runs immediately; the interval is the
// gap between cycles, not a delay before the first one. Run performs no
// restoration itself; callers run Restore after Run returns, on this same
// goroutine.
func (c *Controller) Run(ctx context.Context) error {
	fmt.Fprintf(c.out, "Starting dynamic fan control for %d device(s) (Ctrl-C to exit)\n", len(c.devices))
	fmt.Fprintf(c.out, "Setpoints: %s\n", c.curve)

	if ctx.Err() != nil {
		return nil
	}
	if err := c.cycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.cycle(ctx); err != nil {
				return err
			}
		}
	}
}

// cycle runs one polling iteration over every device in registration order.
func (c *Controller) cycle(ctx context.Context) error {
	errFactory := errors.New()
	now := time.Now()

	for _, cd := range c.devices {
		temp, err := cd.dev.Temperature()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: Cannot read temperature (%v)\n", cd.id, err)
			return errFactory.Wrap(ErrTemperatureRead, err)
		}

		target := c.curve.Interpolate(temp)

		for fan := 0; fan < cd.fanCount; fan++ {
			if err := cd.dev.SetFanSpeed(fan, target); err != nil {
				fmt.Fprintf(os.Stderr, "%d:Fan%d:Error: %v\n", cd.id, fan, err)
				return errFactory.Wrap(ErrFanWrite, err)
			}
		}

		fmt.Fprintln(c.out, format.ControlStatusLine(cd.id, temp, target, c.unit))

		sample := &telemetry.Sample{
			Timestamp:        now,
			DeviceID:         cd.id,
			Temperature:      temp,
			TargetFanPercent: target,
		}
		if err := c.collector.Record(ctx, sample); err != nil {
			c.logger.Warn().Err(err).Int("device", cd.id).Msg("failed to record telemetry sample")
		}
	}

	return nil
}

// Restore hands every fan of every controlled device back to the automatic
// temperature-based policy. Best effort: failures are logged, never retried
// and never block exit.
func (c *Controller) Restore() {
	fmt.Fprintln(c.out, "Restoring automatic fan control...")

	for _, cd := range c.devices {
		fanCount, err := cd.dev.FanCount()
		if err != nil {
			c.logger.Error().Err(err).Int("device", cd.id).
				Msg("failed to query fan count during restore")
			continue
		}

		for fan := 0; fan < fanCount; fan++ {
			if err := cd.dev.RestoreAutoFan(fan); err != nil {
				c.logger.Error().Err(err).Int("device", cd.id).Int("fan", fan).
					Msg("failed to restore automatic fan control")
			}
		}
	}
}

// DeviceIDs returns the controlled device ids in registration order.
func (c *Controller) DeviceIDs() []int {
	ids := make([]int, len(c.devices))
	for i, cd := range c.devices {
		ids[i] = cd.id
	}

	return ids
}
