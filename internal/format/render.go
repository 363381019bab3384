package format

import (
	"encoding/json"
	"fmt"
	"strings"
)

const bytesPerMB = 1024 * 1024

// ControlStatusLine renders one control-loop status line:
// "<deviceId>:<displayTemp><unitChar> -> <fanPercent>%".
func ControlStatusLine(deviceID, tempC, fanPercent int, unit Unit) string {
	return fmt.Sprintf("%d:%.1f%s -> %d%%", deviceID, unit.Convert(tempC), unit, fanPercent)
}

// TempLine renders the temp command's per-device line.
func TempLine(deviceID, tempC int, unit Unit) string {
	return fmt.Sprintf("%d:%.1f", deviceID, unit.Convert(tempC))
}

// FanLine renders the fan command's per-device line.
func FanLine(deviceID, fanPercent int) string {
	return fmt.Sprintf("%d:%d", deviceID, fanPercent)
}

// PowerLine renders the power command's per-device line.
func PowerLine(deviceID int, watts float64) string {
	return fmt.Sprintf("%d:%.2f", deviceID, watts)
}

// StatusLine renders the status command's compact per-device overview.
func StatusLine(deviceID, tempC, fanPercent int, watts float64, unit Unit) string {
	return fmt.Sprintf("%d:%.1f%s,%d%%,%.1fW", deviceID, unit.Convert(tempC), unit, fanPercent, watts)
}

// ListLine renders the list command's per-device line.
func ListLine(deviceID int, uuid, name string) string {
	return fmt.Sprintf("%d:%s %s", deviceID, uuid, name)
}

// DeviceInfo is the info command's view of one device. Fields that could not
// be read keep their zero value; the human renderer omits them.
type DeviceInfo struct {
	DeviceID        int     `json:"device_id"`
	Name            string  `json:"name"`
	UUID            string  `json:"uuid"`
	Temperature     float64 `json:"temperature"`
	TemperatureUnit string  `json:"temperature_unit"`
	MemoryTotalMB   uint64  `json:"memory_total_mb"`
	MemoryUsedMB    uint64  `json:"memory_used_mb"`
	MemoryFreeMB    uint64  `json:"memory_free_mb"`
	FanSpeedPercent int     `json:"fan_speed_percent"`
	PowerUsageWatts float64 `json:"power_usage_watts"`
	PowerLimitWatts float64 `json:"power_limit_watts"`

	hasTemp   bool
	hasMemory bool
	hasFan    bool
	hasPower  bool
}

func (i *DeviceInfo) SetTemperature(tempC int, unit Unit) {
	i.Temperature = unit.Convert(tempC)
	i.TemperatureUnit = unit.String()
	i.hasTemp = true
}

func (i *DeviceInfo) SetMemory(used, total, free uint64) {
	i.MemoryUsedMB = used / bytesPerMB
	i.MemoryTotalMB = total / bytesPerMB
	i.MemoryFreeMB = free / bytesPerMB
	i.hasMemory = true
}

func (i *DeviceInfo) SetFanSpeed(percent int) {
	i.FanSpeedPercent = percent
	i.hasFan = true
}

func (i *DeviceInfo) SetPower(usageWatts, limitWatts float64) {
	i.PowerUsageWatts = usageWatts
	i.PowerLimitWatts = limitWatts
	i.hasPower = true
}

// Human renders the info block shown without the json subcommand.
func (i *DeviceInfo) Human() string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Device %d", i.DeviceID)
	if i.Name != "" {
		fmt.Fprintf(&b, ": %s", i.Name)
	}
	b.WriteString(" ===\n")

	if i.UUID != "" {
		fmt.Fprintf(&b, "UUID:        %s\n", i.UUID)
	}
	if i.hasTemp {
		fmt.Fprintf(&b, "Temperature: %.1f%s\n", i.Temperature, i.TemperatureUnit)
	}
	if i.hasMemory {
		usedPct := float64(i.MemoryUsedMB) / float64(i.MemoryTotalMB) * 100.0
		fmt.Fprintf(&b, "Memory:      %d MB / %d MB (%.1f%%)\n", i.MemoryUsedMB, i.MemoryTotalMB, usedPct)
	}
	if i.hasFan {
		fmt.Fprintf(&b, "Fan Speed:   %d%%\n", i.FanSpeedPercent)
	}
	if i.hasPower {
		powerPct := i.PowerUsageWatts / i.PowerLimitWatts * 100.0
		fmt.Fprintf(&b, "Power:       %.2fW / %.2fW (%.1f%%)\n", i.PowerUsageWatts, i.PowerLimitWatts, powerPct)
	}

	return b.String()
}

// InfoJSON renders the info json output for a set of devices.
func InfoJSON(infos []*DeviceInfo) (string, error) {
	out, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return "", err
	}

	return string(out), nil
}
