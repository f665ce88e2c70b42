//go:build !rp2040

// saki-node runs a sensor node on a host with a USB XBee, optionally an
// I2C TinyRTC board for the clock and config EEPROM.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"
	"tinygo.org/x/drivers"

	"sakinode-go/bus"
	"sakinode-go/drivers/xbee"
	"sakinode-go/saki"
	"sakinode-go/services/config"
	"sakinode-go/services/node"
	"sakinode-go/services/platform"
	"sakinode-go/services/sensor"
	"sakinode-go/services/thermostat"
	"sakinode-go/storage"
)

const ApplicationVersionMajor = 0
const ApplicationVersionMinor = 1
const ApplicationVersionPatch = 0

var ApplicationBuildDate string

type Options struct {
	Config string `short:"c" long:"config" description:"YAML config file"`
	Board  string `short:"b" long:"board" description:"Embedded board config to start from"`
	Port   string `short:"p" long:"port" description:"Radio serial device, overrides the config"`

	DumpConfig bool `long:"dump-config" description:"Print the effective config and exit"`

	Debug       []bool `short:"D" long:"debug" description:"Debug mode, repeat for source locations"`
	ShowVersion func() `short:"V" long:"version" description:"Show application version"`
}

func logsetup(debuglevel int, lc config.LogConfig) *log.Logger {
	logformat := log.Ldate | log.Ltime | log.Lmicroseconds
	if debuglevel > 1 {
		logformat |= log.Lshortfile
	}
	var out io.Writer = os.Stdout
	if lc.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		})
	}
	return log.New(out, "", logformat)
}

func openStore(nc config.Node, i2c drivers.I2C) (saki.Block, func(), error) {
	switch nc.Storage.Kind {
	case "eeprom":
		if i2c == nil {
			return nil, nil, fmt.Errorf("eeprom storage needs an i2c bus")
		}
		return storage.NewEEPROM(i2c, uint16(nc.Storage.Address)), func() {}, nil
	case "file":
		f, err := storage.OpenFile(nc.Storage.Path, storage.EEPROMSize)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
	return nil, func() {}, nil
}

func mainfunction() int {
	var opts Options
	opts.ShowVersion = func() {
		if ApplicationBuildDate == "" {
			ApplicationBuildDate = "YYYY-mm-dd_HH:MM:SS"
		}
		fmt.Printf("saki-node %d.%d.%d (%s)\n", ApplicationVersionMajor, ApplicationVersionMinor, ApplicationVersionPatch, ApplicationBuildDate)
		os.Exit(0)
	}
	if _, err := flags.Parse(&opts); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return 0
		}
		fmt.Printf("Argument parser error: %s\n", err)
		return 1
	}

	nc, err := config.Load(opts.Config, opts.Board)
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}
	if opts.Port != "" {
		nc.Radio.Port = opts.Port
	}
	if len(opts.Debug) > 0 {
		nc.Debug = true
	}
	if opts.DumpConfig {
		out, err := config.Marshal(nc)
		if err != nil {
			fmt.Printf("ERROR: %s\n", err)
			return 1
		}
		os.Stdout.Write(out)
		return 0
	}

	logger := logsetup(len(opts.Debug), nc.Log)

	if nc.Radio.Port == "" {
		ports, _ := platform.Ports()
		logger.Printf("no radio port configured, available: %v", ports)
		return 1
	}
	port, err := platform.OpenSerial(nc.Radio)
	if err != nil {
		logger.Printf("radio: %v", err)
		return 1
	}
	defer port.Close()

	var i2c drivers.I2C
	if nc.Storage.Kind == "eeprom" || nc.RTC.Enabled {
		if i2c, err = platform.OpenI2C(nc.I2C); err != nil {
			logger.Printf("i2c: %v", err)
			return 1
		}
	}
	store, closeStore, err := openStore(nc, i2c)
	if err != nil {
		logger.Printf("storage: %v", err)
		return 1
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := bus.NewBus(4)
	config.NewConfigService(nc).Start(ctx, b.NewConnection("config"))

	if nc.Sensor.Enabled {
		ow, err := platform.OneWire(nc.Sensor.Pin)
		if err != nil {
			logger.Printf("sensor disabled: %v", err)
		} else {
			s, err := sensor.New(ow, nc.Sensor)
			if err != nil {
				logger.Printf("sensor: %v", err)
				return 1
			}
			_ = s.Start(ctx, b.NewConnection("sensor"))
		}
	}

	var th *thermostat.Thermostat
	if nc.Thermostat.Enabled {
		if th, err = thermostat.New(nc.Thermostat, platform.OutputPin); err != nil {
			logger.Printf("thermostat: %v", err)
			return 1
		}
	}

	nopts := node.Options{
		Config:     nc,
		Transport:  xbee.NewRadio(port, xbee.Mode(nc.Radio.APIMode)),
		Thermostat: th,
		Logger:     logger,
	}
	if store != nil {
		nopts.Store = store
	}
	if nc.RTC.Enabled {
		nopts.RTC = i2c
	}
	n, err := node.New(nopts, b.NewConnection("node"))
	if err != nil {
		logger.Printf("node: %v", err)
		return 1
	}
	if err := n.Run(ctx); err != nil {
		logger.Printf("node: %v", err)
		return 1
	}
	logger.Printf("stopped")
	return 0
}

func main() {
	os.Exit(mainfunction())
}
