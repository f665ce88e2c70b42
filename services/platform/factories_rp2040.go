//go:build rp2040

package platform

import (
	"context"
	"machine"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/onewire"

	"sakinode-go/errcode"
	"sakinode-go/services/config"
)

// SerialPort adapts a uartx UART to xbee.Port.
type SerialPort struct{ u *uartx.UART }

// OpenSerial configures "uart0" or "uart1" on the given pins.
func OpenSerial(rc config.RadioConfig) (*SerialPort, error) {
	var hw *uartx.UART
	switch rc.Port {
	case "uart0", "":
		hw = uartx.UART0
	case "uart1":
		hw = uartx.UART1
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "platform.serial", Msg: "unknown uart " + rc.Port}
	}
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: uint32(rc.Baud),
		TX:       machine.Pin(rc.TX),
		RX:       machine.Pin(rc.RX),
	}); err != nil {
		return nil, errcode.Wrap(errcode.LinkDown, "platform.serial", err)
	}
	return &SerialPort{u: hw}, nil
}

func (p *SerialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *SerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}
func (p *SerialPort) Close() error { return nil }

// OpenI2C configures I2C0 or I2C1 on the given pins.
func OpenI2C(ic config.I2CConfig) (drivers.I2C, error) {
	var hw *machine.I2C
	switch ic.Bus {
	case 0:
		hw = machine.I2C0
	case 1:
		hw = machine.I2C1
	default:
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "platform.i2c", Msg: "unknown i2c bus"}
	}
	freq := uint32(ic.FrequencyHz)
	if freq == 0 {
		freq = 100 * machine.KHz
	}
	sda, scl := machine.Pin(ic.SDA), machine.Pin(ic.SCL)
	sda.Configure(machine.PinConfig{Mode: machine.PinI2C})
	scl.Configure(machine.PinConfig{Mode: machine.PinI2C})
	if err := hw.Configure(machine.I2CConfig{SDA: sda, SCL: scl, Frequency: freq}); err != nil {
		return nil, errcode.Wrap(errcode.Error, "platform.i2c", err)
	}
	return hw, nil
}

type rp2Pin struct{ p machine.Pin }

func (r rp2Pin) Set(high bool) { r.p.Set(high) }

// OutputPin maps n to GPn, driven low.
func OutputPin(n int) (Pin, error) {
	if n < 0 || n > 29 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "platform.pin", Msg: "pin out of range"}
	}
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return rp2Pin{p: p}, nil
}

// OneWire returns the 1-Wire bus on GPn.
func OneWire(n int) (ds18b20.OneWireDevice, error) {
	if n < 0 || n > 29 {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "platform.onewire", Msg: "pin out of range"}
	}
	return onewire.New(machine.Pin(n)), nil
}
