package xbee

import (
	"bytes"
	"encoding/binary"

	"sakinode-go/saki"
)

// BuildTxRequest returns frame data for a ZigBee Transmit Request.
func BuildTxRequest(frameID byte, dst saki.Addr64, dst16 saki.Addr16, payload []byte) []byte {
	b := make([]byte, 14, 14+len(payload))
	b[0] = APITxRequest
	b[1] = frameID
	binary.BigEndian.PutUint64(b[2:10], uint64(dst))
	binary.BigEndian.PutUint16(b[10:12], uint16(dst16))
	b[12] = 0 // broadcast radius: maximum hops
	b[13] = 0 // options
	return append(b, payload...)
}

// BuildATCommand returns frame data for a local AT command.
func BuildATCommand(frameID byte, cmd string, param []byte) []byte {
	b := make([]byte, 0, 4+len(param))
	b = append(b, APIATCommand, frameID, cmd[0], cmd[1])
	return append(b, param...)
}

// ParseFrame maps decoded frame data onto a saki.Frame.
func ParseFrame(data []byte) (*saki.Frame, error) {
	if len(data) < 1 {
		return nil, ErrShort
	}
	f := &saki.Frame{APIID: data[0]}
	switch data[0] {
	case APIRxPacket:
		if len(data) < 12 {
			return nil, ErrShort
		}
		f.Kind = saki.FrameData
		f.Src = saki.Addr64(binary.BigEndian.Uint64(data[1:9]))
		f.Src16 = saki.Addr16(binary.BigEndian.Uint16(data[9:11]))
		f.Payload = append([]byte(nil), data[12:]...)
	case APITxStatus:
		if len(data) < 7 {
			return nil, ErrShort
		}
		f.Kind = saki.FrameTxStatus
		f.Retries = data[4]
		f.Status = data[5]
	case APIModemStatus:
		if len(data) < 2 {
			return nil, ErrShort
		}
		f.Kind = saki.FrameModemStatus
		f.Status = data[1]
	default:
		f.Kind = saki.FrameOther
		f.Payload = append([]byte(nil), data[1:]...)
	}
	return f, nil
}

// ATResponse is a decoded AT Command Response.
type ATResponse struct {
	FrameID byte
	Command string
	Status  byte // 0 = OK
	Data    []byte
}

// ParseATResponse decodes an APIATResponse frame.
func ParseATResponse(data []byte) (ATResponse, error) {
	if len(data) < 5 || data[0] != APIATResponse {
		return ATResponse{}, ErrShort
	}
	return ATResponse{
		FrameID: data[1],
		Command: string(data[2:4]),
		Status:  data[4],
		Data:    append([]byte(nil), data[5:]...),
	}, nil
}

// NodeInfo is one node identification record, as carried by an "ND"
// response or a Node Identification Indicator.
type NodeInfo struct {
	Addr16 saki.Addr16
	Addr64 saki.Addr64
	Name   string // NI string
}

// ParseNodeInfo decodes the MY, SH/SL and NI fields of a discovery record.
func ParseNodeInfo(p []byte) (NodeInfo, error) {
	if len(p) < 11 {
		return NodeInfo{}, ErrShort
	}
	ni := NodeInfo{
		Addr16: saki.Addr16(binary.BigEndian.Uint16(p[0:2])),
		Addr64: saki.Addr64(binary.BigEndian.Uint64(p[2:10])),
	}
	name := p[10:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	ni.Name = string(name)
	return ni, nil
}

// ParseNodeIdentification decodes an APINodeIdentification frame. The
// remote node's own record follows the sender addresses and options.
func ParseNodeIdentification(data []byte) (NodeInfo, error) {
	if len(data) < 13 || data[0] != APINodeIdentification {
		return NodeInfo{}, ErrShort
	}
	return ParseNodeInfo(data[12:])
}
