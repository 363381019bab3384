package main

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDevice struct {
	index    int
	fanCount int
	fanErr   error
}

func (d *stubDevice) Index() int                   { return d.index }
func (d *stubDevice) UUID() (string, error)        { return "GPU-stub", nil }
func (d *stubDevice) Name() (string, error)        { return "Stub", nil }
func (d *stubDevice) Temperature() (int, error)    { return 60, nil }
func (d *stubDevice) FanSpeed() (int, error)       { return 45, nil }
func (d *stubDevice) PowerUsage() (float64, error) { return 180, nil }
func (d *stubDevice) PowerLimit() (float64, error) { return 360, nil }
func (d *stubDevice) SetPowerLimit(int) error      { return nil }
func (d *stubDevice) SetFanSpeed(int, int) error   { return nil }
func (d *stubDevice) RestoreAutoFan(int) error     { return nil }

func (d *stubDevice) FanCount() (int, error) {
	if d.fanErr != nil {
		return 0, d.fanErr
	}
	return d.fanCount, nil
}

func (d *stubDevice) PowerLimitConstraints() (float64, float64, error) {
	return 100, 400, nil
}

func (d *stubDevice) MemoryInfo() (used, total, free uint64, err error) {
	return 0, 0, 0, nil
}

func TestRequireFansRejectsFanlessDevice(t *testing.T) {
	_, err := requireFans(&stubDevice{fanCount: 0})
	require.Error(t, err)
	assert.Equal(t, gpu.ErrNoFans, errors.CodeOf(err))
}

func TestRequireFansReturnsCount(t *testing.T) {
	count, err := requireFans(&stubDevice{fanCount: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestHandleSignalsCancelsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	go handleSignals(sigs, cancel)

	sigs <- syscall.SIGTERM

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled after a termination signal")
	}
}
