// Package xbee speaks the Digi XBee ZigBee API frame protocol.
//
// A frame on the wire is
//
//	0x7E | length (uint16 BE) | frame data | checksum
//
// where frame data starts with the API identifier and the checksum is
// 0xFF minus the low byte of the sum of the frame data. In API mode 2
// the bytes 0x7E, 0x7D, 0x11 and 0x13 after the start delimiter are sent
// as 0x7D followed by the byte XOR 0x20.
package xbee

import (
	"encoding/binary"

	"sakinode-go/errcode"
)

const (
	StartDelimiter = 0x7E
	escapeByte     = 0x7D
	xon            = 0x11
	xoff           = 0x13
	escapeXOR      = 0x20

	// MaxFrameData caps the accepted frame data length.
	MaxFrameData = 256
)

// API identifiers.
const (
	APIATCommand          = 0x08
	APITxRequest          = 0x10
	APIATResponse         = 0x88
	APIModemStatus        = 0x8A
	APITxStatus           = 0x8B
	APIRxPacket           = 0x90
	APINodeIdentification = 0x95
)

// Errors returned by the codec.
var (
	ErrChecksum = &errcode.E{C: errcode.Checksum, Msg: "xbee: checksum mismatch"}
	ErrTooLong  = &errcode.E{C: errcode.InvalidFrame, Msg: "xbee: frame too long"}
	ErrShort    = &errcode.E{C: errcode.InvalidFrame, Msg: "xbee: frame data too short"}
)

// Mode selects transparent framing (1) or escaped framing (2).
type Mode uint8

const (
	ModeAPI        Mode = 1
	ModeAPIEscaped Mode = 2
)

func needsEscape(b byte) bool {
	return b == StartDelimiter || b == escapeByte || b == xon || b == xoff
}

func checksum(data []byte) byte {
	var s byte
	for _, b := range data {
		s += b
	}
	return 0xFF - s
}

// AppendFrame appends the wire encoding of data to dst.
func AppendFrame(dst []byte, mode Mode, data []byte) []byte {
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(data)))
	dst = append(dst, StartDelimiter)
	put := func(b byte) {
		if mode == ModeAPIEscaped && needsEscape(b) {
			dst = append(dst, escapeByte, b^escapeXOR)
			return
		}
		dst = append(dst, b)
	}
	put(hdr[0])
	put(hdr[1])
	for _, b := range data {
		put(b)
	}
	put(checksum(data))
	return dst
}

// --- decoder ---

type decState uint8

const (
	stIdle decState = iota
	stLenHi
	stLenLo
	stData
	stSum
)

// Decoder reassembles frames from a byte stream. It resynchronises on the
// next start delimiter after any error.
type Decoder struct {
	mode    Mode
	state   decState
	escaped bool
	n       int
	buf     []byte
}

func NewDecoder(mode Mode) *Decoder {
	return &Decoder{mode: mode, buf: make([]byte, 0, MaxFrameData)}
}

func (d *Decoder) reset() {
	d.state = stIdle
	d.escaped = false
	d.buf = d.buf[:0]
}

// Feed consumes one byte. It returns the frame data when b completes a
// valid frame; the slice is only valid until the next call.
func (d *Decoder) Feed(b byte) ([]byte, error) {
	if b == StartDelimiter && (d.mode == ModeAPIEscaped || d.state == stIdle) {
		// an unescaped delimiter always starts a new frame in mode 2
		d.reset()
		d.state = stLenHi
		return nil, nil
	}
	if d.state == stIdle {
		return nil, nil
	}
	if d.mode == ModeAPIEscaped {
		if b == escapeByte && !d.escaped {
			d.escaped = true
			return nil, nil
		}
		if d.escaped {
			b ^= escapeXOR
			d.escaped = false
		}
	}

	switch d.state {
	case stLenHi:
		d.n = int(b) << 8
		d.state = stLenLo
	case stLenLo:
		d.n |= int(b)
		switch {
		case d.n == 0:
			d.reset()
			return nil, ErrShort
		case d.n > MaxFrameData:
			d.reset()
			return nil, ErrTooLong
		}
		d.state = stData
	case stData:
		d.buf = append(d.buf, b)
		if len(d.buf) == d.n {
			d.state = stSum
		}
	case stSum:
		data := d.buf
		d.state = stIdle
		if checksum(data) != b {
			return nil, ErrChecksum
		}
		return data, nil
	}
	return nil, nil
}
