package storage

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/at24cx"

	"sakinode-go/errcode"
)

const (
	// AT24C32 geometry: 4 KiB in 32 byte pages.
	EEPROMSize     = 4096
	EEPROMPageSize = 32

	// TinyRTCAddress is where the AT24C32 on a TinyRTC board answers.
	TinyRTCAddress = 0x50
)

// EEPROM is an AT24Cxx serial EEPROM used as a Block.
type EEPROM struct {
	dev  at24cx.Device
	size int
}

// NewEEPROM binds an AT24C32-class part at addr on bus. addr 0 selects
// TinyRTCAddress.
func NewEEPROM(bus drivers.I2C, addr uint16) *EEPROM {
	if addr == 0 {
		addr = TinyRTCAddress
	}
	d := at24cx.New(bus)
	d.Address = addr
	d.Configure(at24cx.Config{PageSize: EEPROMPageSize, EndRAMAddress: EEPROMSize})
	return &EEPROM{dev: d, size: EEPROMSize}
}

func (e *EEPROM) ReadAt(p []byte, off int64) (int, error) {
	if err := checkRange("eeprom.read", off, len(p), e.size); err != nil {
		return 0, err
	}
	n, err := e.dev.ReadAt(p, off)
	if err != nil {
		return 0, errcode.Wrap(errcode.StorageIO, "eeprom.read", err)
	}
	return n, nil
}

func (e *EEPROM) WriteAt(p []byte, off int64) (int, error) {
	if err := checkRange("eeprom.write", off, len(p), e.size); err != nil {
		return 0, err
	}
	n, err := e.dev.WriteAt(p, off)
	if err != nil {
		return n, errcode.Wrap(errcode.StorageIO, "eeprom.write", err)
	}
	return n, nil
}
