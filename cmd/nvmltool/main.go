package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nvmltool/nvmltool/internal/config"
	"github.com/nvmltool/nvmltool/internal/errors"
	"github.com/nvmltool/nvmltool/internal/fanctl"
	"github.com/nvmltool/nvmltool/internal/fancurve"
	"github.com/nvmltool/nvmltool/internal/format"
	"github.com/nvmltool/nvmltool/internal/gpu"
	"github.com/nvmltool/nvmltool/internal/logger"
	"github.com/nvmltool/nvmltool/internal/pid"
	"github.com/nvmltool/nvmltool/internal/telemetry"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "-h", "--help", "help":
		printUsage()
		return 0
	case "info", "power", "fan", "fanctl", "temp", "status", "list":
	default:
		printUsage()
		return 1
	}

	// fanctl consumes setpoint tokens before general option parsing
	var curve fancurve.Table
	if cmd == "fanctl" {
		var err error
		curve, rest, err = fancurve.Parse(rest)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	sub, setValue, rest, ok := parseSubcommand(cmd, rest)
	if !ok {
		return 1
	}

	flags := pflag.NewFlagSet(cmd, pflag.ContinueOnError)
	config.AddFlags(flags)
	if err := flags.Parse(rest); err != nil {
		printUsage()
		return 1
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if err := logger.Init(cfg.LogLevel, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	unit, err := format.ParseUnit(cfg.TempUnit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid temperature unit %q\n", cfg.TempUnit)
		return 1
	}

	ctrl, err := gpu.New(logger.Default())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer ctrl.Shutdown()

	ids, err := ctrl.TargetIDs(cfg.Device, cfg.UUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch cmd {
	case "info":
		return runInfo(ctrl, ids, unit, sub == "json")
	case "power":
		if sub == "set" {
			return runPowerSet(ctrl, ids, setValue)
		}
		return runPower(ctrl, ids)
	case "fan":
		switch sub {
		case "set":
			return runFanSet(ctrl, ids, setValue)
		case "restore":
			return runFanRestore(ctrl, ids)
		default:
			return runFan(ctrl, ids)
		}
	case "temp":
		return runTemp(ctrl, ids, unit)
	case "status":
		return runStatus(ctrl, ids, unit)
	case "list":
		return runList(ctrl, ids)
	case "fanctl":
		return runFanctl(ctrl, ids, curve, unit, cfg)
	}

	return 1
}

// parseSubcommand recognizes the optional set/restore/json word after the
// command name. Reports false after printing the error.
func parseSubcommand(cmd string, rest []string) (sub string, setValue int, remaining []string, ok bool) {
	remaining = rest

	switch cmd {
	case "power", "fan":
		if len(rest) > 0 && rest[0] == "set" {
			if len(rest) < 2 {
				fmt.Fprintln(os.Stderr, "Error: 'set' requires a value")
				return "", 0, nil, false
			}
			value, err := strconv.Atoi(rest[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: Invalid value %q\n", rest[1])
				return "", 0, nil, false
			}
			return "set", value, rest[2:], true
		}
		if cmd == "fan" && len(rest) > 0 && rest[0] == "restore" {
			return "restore", 0, rest[1:], true
		}
	case "info":
		if len(rest) > 0 && rest[0] == "json" {
			return "json", 0, rest[1:], true
		}
	}

	return "", 0, remaining, true
}

// forEachDevice resolves each requested id and runs fn. Per-device failures
// are reported and counted but do not stop iteration over the rest.
func forEachDevice(ctrl gpu.Controller, ids []int, fn func(dev gpu.Device) bool) int {
	errCount := 0
	for _, id := range ids {
		dev, err := ctrl.Device(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			errCount++
			continue
		}
		if !fn(dev) {
			errCount++
		}
	}

	if errCount > 0 {
		return 1
	}
	return 0
}

func runInfo(ctrl gpu.Controller, ids []int, unit format.Unit, asJSON bool) int {
	infos := make([]*format.DeviceInfo, 0, len(ids))

	rc := forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		info := &format.DeviceInfo{DeviceID: dev.Index()}

		if name, err := dev.Name(); err == nil {
			info.Name = name
		}
		if uuid, err := dev.UUID(); err == nil {
			info.UUID = uuid
		}
		if temp, err := dev.Temperature(); err == nil {
			info.SetTemperature(temp, unit)
		}
		if used, total, free, err := dev.MemoryInfo(); err == nil {
			info.SetMemory(used, total, free)
		}
		if speed, err := dev.FanSpeed(); err == nil {
			info.SetFanSpeed(speed)
		}
		if usage, err := dev.PowerUsage(); err == nil {
			if limit, err := dev.PowerLimit(); err == nil {
				info.SetPower(usage, limit)
			}
		}

		infos = append(infos, info)
		return true
	})

	if asJSON {
		out, err := format.InfoJSON(infos)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		for _, info := range infos {
			fmt.Println(info.Human())
		}
	}

	return rc
}

func runPower(ctrl gpu.Controller, ids []int) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		usage, err := dev.PowerUsage()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: %v\n", dev.Index(), err)
			return false
		}

		fmt.Println(format.PowerLine(dev.Index(), usage))
		return true
	})
}

func runPowerSet(ctrl gpu.Controller, ids []int, watts int) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		minWatts, maxWatts, err := dev.PowerLimitConstraints()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: Cannot get power limit constraints (%v)\n", dev.Index(), err)
			return false
		}

		if float64(watts) < minWatts || float64(watts) > maxWatts {
			fmt.Fprintf(os.Stderr, "%d:Error: Power limit %dW outside valid range (%.2f-%.2fW)\n",
				dev.Index(), watts, minWatts, maxWatts)
			return false
		}

		if err := dev.SetPowerLimit(watts); err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: Failed to set power limit (%v)\n", dev.Index(), err)
			return false
		}

		fmt.Printf("%d:Power limit set to %dW\n", dev.Index(), watts)
		return true
	})
}

func runFan(ctrl gpu.Controller, ids []int) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		speed, err := dev.FanSpeed()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: %v\n", dev.Index(), err)
			return false
		}

		fmt.Println(format.FanLine(dev.Index(), speed))
		return true
	})
}

func runFanSet(ctrl gpu.Controller, ids []int, percent int) int {
	if percent < 0 || percent > 100 {
		fmt.Fprintln(os.Stderr, "Error: Fan speed must be between 0-100%")
		return 1
	}

	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		fanCount, err := requireFans(dev)
		if err != nil {
			return false
		}

		for fan := 0; fan < fanCount; fan++ {
			if err := dev.SetFanSpeed(fan, percent); err != nil {
				fmt.Fprintf(os.Stderr, "%d:Fan%d:Error: %v\n", dev.Index(), fan, err)
				return false
			}
			fmt.Printf("%d:Fan%d:Set to %d%%\n", dev.Index(), fan, percent)
		}

		fmt.Printf("%d:Warning: Fan control is now MANUAL - monitor temperatures!\n", dev.Index())
		fmt.Printf("%d:Note: Use 'nvmltool fan restore -d %d' to restore automatic control\n",
			dev.Index(), dev.Index())
		return true
	})
}

func runFanRestore(ctrl gpu.Controller, ids []int) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		fanCount, err := requireFans(dev)
		if err != nil {
			return false
		}

		for fan := 0; fan < fanCount; fan++ {
			if err := dev.RestoreAutoFan(fan); err != nil {
				fmt.Fprintf(os.Stderr, "%d:Fan%d:Error: %v\n", dev.Index(), fan, err)
				return false
			}
			fmt.Printf("%d:Fan%d:Restored to automatic control\n", dev.Index(), fan)
		}

		fmt.Printf("%d:All fans restored to automatic temperature-based control\n", dev.Index())
		return true
	})
}

func requireFans(dev gpu.Device) (int, error) {
	fanCount, err := dev.FanCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%d:Error: Cannot get number of fans (%v)\n", dev.Index(), err)
		return 0, err
	}
	if fanCount == 0 {
		fmt.Fprintf(os.Stderr, "%d:Error: Device has no controllable fans\n", dev.Index())
		return 0, errors.New().New(gpu.ErrNoFans)
	}

	return fanCount, nil
}

func runTemp(ctrl gpu.Controller, ids []int, unit format.Unit) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		temp, err := dev.Temperature()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: %v\n", dev.Index(), err)
			return false
		}

		fmt.Println(format.TempLine(dev.Index(), temp, unit))
		return true
	})
}

func runStatus(ctrl gpu.Controller, ids []int, unit format.Unit) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		temp, err := dev.Temperature()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: %v\n", dev.Index(), err)
			return false
		}

		speed, _ := dev.FanSpeed()
		usage, _ := dev.PowerUsage()

		fmt.Println(format.StatusLine(dev.Index(), temp, speed, usage, unit))
		return true
	})
}

func runList(ctrl gpu.Controller, ids []int) int {
	return forEachDevice(ctrl, ids, func(dev gpu.Device) bool {
		uuid, err := dev.UUID()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%d:Error: %v\n", dev.Index(), err)
			return false
		}
		name, _ := dev.Name()

		fmt.Println(format.ListLine(dev.Index(), uuid, name))
		return true
	})
}

func runFanctl(ctrl gpu.Controller, ids []int, curve fancurve.Table, unit format.Unit, cfg *config.Config) int {
	if err := pid.Write(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer pid.Remove()

	// All-or-nothing: every requested device must resolve before the loop
	// may touch any fan.
	devices := make([]fanctl.Device, 0, len(ids))
	failures := 0
	for _, id := range ids {
		dev, err := ctrl.Device(id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failures++
			continue
		}
		devices = append(devices, dev)
	}
	if failures > 0 {
		return 1
	}

	collector := telemetry.Disabled()
	if cfg.Telemetry {
		c, err := telemetry.NewCollector(telemetry.Config{DBPath: cfg.Database})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		collector = c
	}
	defer collector.Close()

	loop, err := fanctl.New(fanctl.Config{
		Devices:   devices,
		Curve:     curve,
		Interval:  time.Duration(cfg.Interval) * time.Second,
		Unit:      unit,
		Collector: collector,
		Logger:    logger.Default(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register before spawning so a signal delivered right after startup is
	// queued rather than killing the process.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go handleSignals(sigs, cancel)

	runErr := loop.Run(ctx)

	// Restoration runs here on the loop's own goroutine; the signal handler
	// only cancels the context and never touches the hardware itself.
	loop.Restore()

	if runErr != nil {
		logger.Error().Err(runErr).Msg("error in control loop")
		return 1
	}
	return 0
}

func handleSignals(sigs <-chan os.Signal, cancel context.CancelFunc) {
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func printUsage() {
	fmt.Print(`Usage: nvmltool <command> [subcommand] [options] [args]

Commands:
  info [json]         Show comprehensive device information
  power [set VALUE]   Show/set power usage and limits
  fan [set VALUE]     Show/set fan speed (NVML v12+)
  fan restore         Restore automatic fan control
  fanctl SETPOINTS    Dynamic fan control with temperature setpoints
  temp                Show temperature
  status              Show compact status overview
  list                List all GPUs with index, UUID, and name

Device Selection:
  -d, --device LIST   Select devices (default: all)
                      Examples: -d 0  -d 0-2  -d 0,2,4
  -u, --uuid UUID     Select device by UUID

Output Options:
  --temp-unit UNIT    Temperature unit: C, F, K (default: C)
  -h, --help          Show this help

Examples:
  nvmltool info                    # Show info for all devices
  nvmltool info -d 0               # Show info for device 0
  nvmltool power -d 0-2            # Show power for devices 0,1,2
  nvmltool power set 250 -d 1      # Set 250W limit on device 1
  nvmltool fan                     # Show fan speeds for all devices
  nvmltool fan set 80 -d 1         # Set 80% fan speed on device 1
  nvmltool fan restore             # Restore automatic control
  nvmltool fanctl 50:30 70:60 80:90 -d 0  # Dynamic fan control (Ctrl-C to exit)
  nvmltool info json               # JSON info for all devices
`)
}
