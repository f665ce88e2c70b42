//go:build !rp2040

package platform

import (
	"fmt"
	"sync"

	"golang.org/x/exp/io/i2c"
	"golang.org/x/exp/io/i2c/driver"
	"tinygo.org/x/drivers"

	"sakinode-go/errcode"
	"sakinode-go/services/config"
)

// DevI2C implements drivers.I2C over the Linux /dev/i2c-N interface. A
// connection is opened per target address on first use.
type DevI2C struct {
	mu     sync.Mutex
	opener driver.Opener
	conns  map[uint16]driver.Conn
}

var _ drivers.I2C = (*DevI2C)(nil)

// OpenI2C returns the host bus /dev/i2c-<bus>. Frequency and pins are
// fixed by the kernel.
func OpenI2C(ic config.I2CConfig) (drivers.I2C, error) {
	return NewDevI2C(&i2c.Devfs{Dev: fmt.Sprintf("/dev/i2c-%d", ic.Bus)}), nil
}

// NewDevI2C builds a bus over any opener.
func NewDevI2C(o driver.Opener) *DevI2C {
	return &DevI2C{opener: o, conns: make(map[uint16]driver.Conn)}
}

func (b *DevI2C) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.conns[addr]
	if !ok {
		var err error
		c, err = b.opener.Open(int(addr), false)
		if err != nil {
			return errcode.Wrap(errcode.Unsupported, "platform.i2c", err)
		}
		b.conns[addr] = c
	}
	if err := c.Tx(w, r); err != nil {
		return errcode.Wrap(errcode.Error, "platform.i2c", err)
	}
	return nil
}

// Close releases every open connection.
func (b *DevI2C) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for a, c := range b.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.conns, a)
	}
	return first
}
