//go:build !rp2040

package platform

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
	"tinygo.org/x/drivers/ds18b20"

	"sakinode-go/errcode"
	"sakinode-go/services/config"
)

// readSlice bounds one blocking read so ctx is observed promptly.
const readSlice = 50 * time.Millisecond

// SerialPort adapts a go.bug.st/serial port to xbee.Port.
type SerialPort struct {
	p serial.Port
}

// OpenSerial opens the radio device at 8N1.
func OpenSerial(rc config.RadioConfig) (*SerialPort, error) {
	p, err := serial.Open(rc.Port, &serial.Mode{
		BaudRate: rc.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errcode.Wrap(errcode.LinkDown, "platform.serial", err)
	}
	if err := p.SetReadTimeout(readSlice); err != nil {
		_ = p.Close()
		return nil, errcode.Wrap(errcode.LinkDown, "platform.serial", err)
	}
	return &SerialPort{p: p}, nil
}

// Ports lists the serial devices present on the host.
func Ports() ([]string, error) { return serial.GetPortsList() }

func (s *SerialPort) Write(b []byte) (int, error) { return s.p.Write(b) }

// RecvSomeContext reads at least one byte, or returns ctx.Err() once ctx ends.
func (s *SerialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := s.p.Read(buf)
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (s *SerialPort) Close() error { return s.p.Close() }

// ----------------------------- GPIO (host) -----------------------------------

// FakePin records the level last written. Hosts have no relays.
type FakePin struct {
	mu     sync.RWMutex
	number int
	level  bool
}

func (p *FakePin) Set(high bool) {
	p.mu.Lock()
	p.level = high
	p.mu.Unlock()
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.level
}

func (p *FakePin) Number() int { return p.number }

// OutputPin returns a FakePin for n.
func OutputPin(n int) (Pin, error) {
	if n < 0 {
		return nil, errors.New("invalid pin number")
	}
	return &FakePin{number: n}, nil
}

// ----------------------------- 1-Wire (host) ---------------------------------

// OneWire is only wired on microcontrollers.
func OneWire(int) (ds18b20.OneWireDevice, error) {
	return nil, unsupported("platform.onewire", "1-Wire")
}
