package fanctl

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/fancurve"
	"github.com/nvmltool/nvmltool/internal/format"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fanWrite struct {
	fan     int
	percent int
}

// fakeDevice serves queued temperature readings; once they run out every
// further read fails, which gives tests a deterministic way to stop the loop
// after an exact number of cycles.
type fakeDevice struct {
	index       int
	fanCount    int
	fanCountErr error
	temps       []int
	setErr      error
	writes      []fanWrite
	restored    []int
	restoreErr  error
}

func (d *fakeDevice) Index() int { return d.index }

func (d *fakeDevice) Temperature() (int, error) {
	if len(d.temps) == 0 {
		return 0, fmt.Errorf("sensor unavailable")
	}
	temp := d.temps[0]
	d.temps = d.temps[1:]

	return temp, nil
}

func (d *fakeDevice) FanCount() (int, error) {
	if d.fanCountErr != nil {
		return 0, d.fanCountErr
	}

	return d.fanCount, nil
}

func (d *fakeDevice) SetFanSpeed(fanIndex, percent int) error {
	if d.setErr != nil {
		return d.setErr
	}
	d.writes = append(d.writes, fanWrite{fan: fanIndex, percent: percent})

	return nil
}

func (d *fakeDevice) RestoreAutoFan(fanIndex int) error {
	if d.restoreErr != nil {
		return d.restoreErr
	}
	d.restored = append(d.restored, fanIndex)

	return nil
}

func testCurve() fancurve.Table {
	return fancurve.Table{{Temp: 50, Fan: 30}, {Temp: 70, Fan: 60}, {Temp: 80, Fan: 90}}
}

func newTestController(t *testing.T, out *bytes.Buffer, devices ...Device) *Controller {
	t.Helper()

	c, err := New(Config{
		Devices:  devices,
		Curve:    testCurve(),
		Interval: time.Millisecond,
		Unit:     format.Celsius,
		Out:      out,
	})
	require.NoError(t, err)

	return c
}

func TestNewRejectsEmptyConfig(t *testing.T) {
	_, err := New(Config{Curve: testCurve(), Interval: time.Second})
	require.Error(t, err)
	assert.Equal(t, ErrNoDevices, errors.CodeOf(err))

	_, err = New(Config{Devices: []Device{&fakeDevice{fanCount: 1}}, Interval: time.Second})
	require.Error(t, err)
	assert.Equal(t, ErrNoCurve, errors.CodeOf(err))

	_, err = New(Config{Devices: []Device{&fakeDevice{fanCount: 1}}, Curve: testCurve()})
	require.Error(t, err)
	assert.Equal(t, ErrInvalidInterval, errors.CodeOf(err))
}

func TestNewAllOrNothingSetup(t *testing.T) {
	withFans := &fakeDevice{index: 0, fanCount: 2, temps: []int{60}}
	noFans := &fakeDevice{index: 1, fanCount: 0}

	_, err := New(Config{
		Devices:  []Device{withFans, noFans},
		Curve:    testCurve(),
		Interval: time.Second,
	})
	require.Error(t, err)
	assert.Equal(t, ErrSetupFailed, errors.CodeOf(err))
	assert.Empty(t, withFans.writes, "no device may be driven when setup fails")
}

func TestRunCycleWritesInterpolatedSpeeds(t *testing.T) {
	// One queued reading per device: the second cycle's failing read stops
	// the loop after exactly one full cycle.
	first := &fakeDevice{index: 0, fanCount: 2, temps: []int{60}}
	second := &fakeDevice{index: 2, fanCount: 1, temps: []int{90}}

	var out bytes.Buffer
	c := newTestController(t, &out, first, second)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrTemperatureRead, errors.CodeOf(err))

	// 60C interpolates to 45%, written to both fans of device 0
	assert.Equal(t, []fanWrite{{fan: 0, percent: 45}, {fan: 1, percent: 45}}, first.writes)
	// 90C clamps to the last setpoint
	assert.Equal(t, []fanWrite{{fan: 0, percent: 90}}, second.writes)

	output := out.String()
	assert.Contains(t, output, "Starting dynamic fan control for 2 device(s)")
	assert.Contains(t, output, "Setpoints: 50:30% 70:60% 80:90%")
	assert.Contains(t, output, "0:60.0C -> 45%")
	assert.Contains(t, output, "2:90.0C -> 90%")
}

func TestRunFirstCycleRunsBeforeFirstTick(t *testing.T) {
	// The hour-long interval means any fan write must come from a cycle run
	// before the ticker first fires. The sentinel device has no readings, so
	// that same first cycle also terminates the loop.
	dev := &fakeDevice{index: 0, fanCount: 1, temps: []int{60}}
	sentinel := &fakeDevice{index: 1, fanCount: 1}

	var out bytes.Buffer
	c, err := New(Config{
		Devices:  []Device{dev, sentinel},
		Curve:    testCurve(),
		Interval: time.Hour,
		Unit:     format.Celsius,
		Out:      &out,
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, ErrTemperatureRead, errors.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("loop waited for the first tick instead of cycling immediately")
	}

	assert.Equal(t, []fanWrite{{fan: 0, percent: 45}}, dev.writes)
	assert.Contains(t, out.String(), "0:60.0C -> 45%")
}

func TestRunStatusLinesKeepRegistrationOrder(t *testing.T) {
	first := &fakeDevice{index: 3, fanCount: 1, temps: []int{50, 50}}
	second := &fakeDevice{index: 1, fanCount: 1, temps: []int{50}}

	var out bytes.Buffer
	c := newTestController(t, &out, first, second)

	err := c.Run(context.Background())
	require.Error(t, err)

	firstLine := bytes.Index(out.Bytes(), []byte("3:50.0C"))
	secondLine := bytes.Index(out.Bytes(), []byte("1:50.0C"))
	require.GreaterOrEqual(t, firstLine, 0)
	require.GreaterOrEqual(t, secondLine, 0)
	assert.Less(t, firstLine, secondLine, "status lines must follow registration order")
}

func TestRunTemperatureFailureIsTerminalForWholeLoop(t *testing.T) {
	failing := &fakeDevice{index: 0, fanCount: 1} // no readings: fails immediately
	healthy := &fakeDevice{index: 1, fanCount: 1, temps: []int{60, 60, 60}}

	var out bytes.Buffer
	c := newTestController(t, &out, failing, healthy)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrTemperatureRead, errors.CodeOf(err))
	assert.Empty(t, healthy.writes, "devices after the failing one must not be driven")
}

func TestRunFanWriteFailureIsTerminal(t *testing.T) {
	bad := &fakeDevice{index: 0, fanCount: 1, temps: []int{60, 60}, setErr: fmt.Errorf("write refused")}

	var out bytes.Buffer
	c := newTestController(t, &out, bad)

	err := c.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ErrFanWrite, errors.CodeOf(err))
}

func TestRunCancelledContextWritesNothing(t *testing.T) {
	dev := &fakeDevice{index: 0, fanCount: 1, temps: []int{60, 60, 60}}

	var out bytes.Buffer
	c := newTestController(t, &out, dev)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, c.Run(ctx))
	assert.Empty(t, dev.writes, "no device writes after cancellation is observed")
}

func TestRestoreCoversEveryFan(t *testing.T) {
	first := &fakeDevice{index: 0, fanCount: 2}
	second := &fakeDevice{index: 1, fanCount: 1}

	var out bytes.Buffer
	c := newTestController(t, &out, first, second)

	c.Restore()

	assert.Equal(t, []int{0, 1}, first.restored)
	assert.Equal(t, []int{0}, second.restored)
	assert.Contains(t, out.String(), "Restoring automatic fan control...")
}

func TestRestoreIsBestEffort(t *testing.T) {
	failing := &fakeDevice{index: 0, fanCount: 1, restoreErr: fmt.Errorf("not supported")}
	healthy := &fakeDevice{index: 1, fanCount: 2}

	var out bytes.Buffer
	c := newTestController(t, &out, failing, healthy)

	c.Restore()

	assert.Equal(t, []int{0, 1}, healthy.restored, "restore must continue past failures")
}

func TestDeviceIDs(t *testing.T) {
	var out bytes.Buffer
	c := newTestController(t, &out,
		&fakeDevice{index: 4, fanCount: 1},
		&fakeDevice{index: 0, fanCount: 1})

	assert.Equal(t, []int{4, 0}, c.DeviceIDs())
}
