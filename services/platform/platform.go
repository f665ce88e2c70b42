// Package platform resolves the board resources a node needs: the radio
// serial port, the I2C bus shared by the EEPROM and RTC, relay pins and
// the 1-Wire bus of the temperature probe.
package platform

import (
	"sakinode-go/errcode"
)

// Pin is a digital output driving a relay.
type Pin interface {
	Set(high bool)
}

func unsupported(op, what string) error {
	return &errcode.E{C: errcode.Unsupported, Op: op, Msg: what + " not available on this platform"}
}
