package saki

import "context"

// Addr64 is a radio's 64-bit long address.
type Addr64 uint64

// Addr16 is a radio's 16-bit network address.
type Addr16 uint16

const (
	// Coordinator is the long address of the network coordinator.
	Coordinator Addr64 = 0
	// Broadcast reaches every node.
	Broadcast Addr64 = 0xFFFF
	// ShortUnknown asks the radio to resolve the network address itself.
	ShortUnknown Addr16 = 0xFFFE
)

// FrameKind discriminates inbound frames.
type FrameKind uint8

const (
	FrameOther FrameKind = iota
	FrameData
	FrameModemStatus
	FrameTxStatus
)

func (k FrameKind) String() string {
	switch k {
	case FrameData:
		return "data"
	case FrameModemStatus:
		return "modem_status"
	case FrameTxStatus:
		return "tx_status"
	}
	return "other"
}

// Modem status values carried by FrameModemStatus.
const (
	ModemHardwareReset uint8 = 0
	ModemWatchdogReset uint8 = 1
	ModemAssociated    uint8 = 2
	ModemDisassociated uint8 = 3
	ModemCoordinatorUp uint8 = 6
)

// Frame is one inbound transport frame.
type Frame struct {
	Kind    FrameKind
	APIID   byte // raw frame type, kept for logging FrameOther
	Src     Addr64
	Src16   Addr16
	Payload []byte

	// Status is the modem status for FrameModemStatus and the delivery
	// status for FrameTxStatus (0 = success).
	Status  uint8
	Retries uint8
}

// Transport moves addressed frames to and from the radio.
type Transport interface {
	// Receive returns the next frame, or (nil, nil) if none arrived before
	// ctx ended.
	Receive(ctx context.Context) (*Frame, error)
	// Send queues payload for dst. dst16 may be ShortUnknown.
	Send(dst Addr64, dst16 Addr16, payload []byte) error
}
