//go:build rp2040

// pico-node is the sensor node firmware for a Pico wired to a TinyRTC,
// an XBee, a DS18B20 and two relays.
package main

import (
	"context"
	"fmt"
	"time"

	"sakinode-go/bus"
	"sakinode-go/drivers/xbee"
	"sakinode-go/services/config"
	"sakinode-go/services/node"
	"sakinode-go/services/platform"
	"sakinode-go/services/sensor"
	"sakinode-go/services/thermostat"
	"sakinode-go/storage"
)

// Set with -ldflags "-X main.board=... -X main.nodeID=...".
var (
	board  = "pico-tinyrtc"
	nodeID = ""
)

type printlnLogger struct{}

func (printlnLogger) Printf(format string, args ...any) { println(fmt.Sprintf(format, args...)) }

func halt(what string, err error) {
	for {
		println("[main]", what+":", err.Error())
		time.Sleep(5 * time.Second)
	}
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)
	println("[main] boot", board)

	nc, err := config.Load("", board)
	if err != nil {
		halt("config", err)
	}
	if nodeID != "" {
		nc.ID = nodeID
	}
	ctx := context.Background()
	log := printlnLogger{}

	port, err := platform.OpenSerial(nc.Radio)
	if err != nil {
		halt("radio", err)
	}
	i2c, err := platform.OpenI2C(nc.I2C)
	if err != nil {
		halt("i2c", err)
	}

	b := bus.NewBus(4)
	config.NewConfigService(nc).Start(ctx, b.NewConnection("config"))

	if nc.Sensor.Enabled {
		ow, err := platform.OneWire(nc.Sensor.Pin)
		if err != nil {
			halt("onewire", err)
		}
		s, err := sensor.New(ow, nc.Sensor)
		if err != nil {
			halt("sensor", err)
		}
		_ = s.Start(ctx, b.NewConnection("sensor"))
	}

	var th *thermostat.Thermostat
	if nc.Thermostat.Enabled {
		if th, err = thermostat.New(nc.Thermostat, platform.OutputPin); err != nil {
			halt("relays", err)
		}
	}

	opts := node.Options{
		Config:     nc,
		Transport:  xbee.NewRadio(port, xbee.Mode(nc.Radio.APIMode)),
		Thermostat: th,
		Logger:     log,
	}
	if nc.Storage.Kind == "eeprom" {
		opts.Store = storage.NewEEPROM(i2c, uint16(nc.Storage.Address))
	}
	if nc.RTC.Enabled {
		opts.RTC = i2c
	}
	n, err := node.New(opts, b.NewConnection("node"))
	if err != nil {
		halt("node", err)
	}
	if err := n.Run(ctx); err != nil {
		halt("node", err)
	}
}
