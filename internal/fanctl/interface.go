package fanctl

import (
	"io"
	"time"

	"github.com/nvmltool/nvmltool/internal/fancurve"
	"github.com/nvmltool/nvmltool/internal/format"
	"github.com/nvmltool/nvmltool/internal/logger"
	"github.com/nvmltool/nvmltool/internal/telemetry"
)

// Device is the surface the control loop needs from a GPU. Satisfied by
// gpu.Device; tests substitute fakes.
type Device interface {
	Index() int
	Temperature() (int, error)
	FanCount() (int, error)
	SetFanSpeed(fanIndex, percent int) error
	RestoreAutoFan(fanIndex int) error
}

// Config assembles a control loop.
type Config struct {
	Devices  []Device
	Curve    fancurve.Table
	Interval time.Duration
	Unit     format.Unit

	// Out receives the announcement and the per-cycle status lines.
	// Defaults to os.Stdout, which is unbuffered.
	Out io.Writer

	// Collector receives one sample per device per cycle. Defaults to the
	// disabled collector.
	Collector telemetry.Collector

	Logger logger.Logger
}
