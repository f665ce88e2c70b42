package xbee

import (
	"context"
	"errors"
	"sync"

	"sakinode-go/errcode"
	"sakinode-go/saki"
)

// Port is a byte stream to the radio module.
type Port interface {
	Write(p []byte) (int, error)
	// RecvSomeContext blocks until at least one byte is read or ctx ends.
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
}

// Packet is one decoded frame: the API identifier followed by its fields.
type Packet []byte

func (p Packet) APIID() byte {
	if len(p) == 0 {
		return 0
	}
	return p[0]
}

// Radio drives an XBee in API mode over a Port.
type Radio struct {
	port Port
	mode Mode
	dec  *Decoder

	rx      [64]byte
	pending []byte

	mu     sync.Mutex // serialises writes and frame ids
	nextID byte
	wbuf   []byte
}

var _ saki.Transport = (*Radio)(nil)

// NewRadio wraps port. mode 0 selects ModeAPIEscaped, the default of the
// ZigBee firmware used by the nodes.
func NewRadio(port Port, mode Mode) *Radio {
	if mode == 0 {
		mode = ModeAPIEscaped
	}
	return &Radio{port: port, mode: mode, dec: NewDecoder(mode), nextID: 1}
}

// ReadPacket returns the next complete frame, or (nil, nil) once ctx ends
// without one. A corrupt frame is reported as an error; bytes after it are
// kept for the next call.
func (r *Radio) ReadPacket(ctx context.Context) (Packet, error) {
	for {
		for len(r.pending) > 0 {
			b := r.pending[0]
			r.pending = r.pending[1:]
			data, err := r.dec.Feed(b)
			if err != nil {
				return nil, err
			}
			if data != nil {
				return append(Packet(nil), data...), nil
			}
		}
		n, err := r.port.RecvSomeContext(ctx, r.rx[:])
		if n > 0 {
			r.pending = r.rx[:n]
			continue
		}
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		if err != nil {
			return nil, errcode.Wrap(errcode.LinkDown, "xbee.read", err)
		}
	}
}

// Receive implements saki.Transport.
func (r *Radio) Receive(ctx context.Context) (*saki.Frame, error) {
	p, err := r.ReadPacket(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	return ParseFrame(p)
}

func (r *Radio) frameID() byte {
	id := r.nextID
	r.nextID++
	if r.nextID == 0 {
		r.nextID = 1
	}
	return id
}

func (r *Radio) write(data []byte) error {
	r.wbuf = AppendFrame(r.wbuf[:0], r.mode, data)
	if _, err := r.port.Write(r.wbuf); err != nil {
		return errcode.Wrap(errcode.LinkDown, "xbee.write", err)
	}
	return nil
}

// Send implements saki.Transport with a ZigBee Transmit Request.
func (r *Radio) Send(dst saki.Addr64, dst16 saki.Addr16, payload []byte) error {
	if len(payload) > MaxFrameData-14 {
		return ErrTooLong
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(BuildTxRequest(r.frameID(), dst, dst16, payload))
}

// SendAT issues a local AT command and returns its frame id.
func (r *Radio) SendAT(cmd string, param []byte) (byte, error) {
	if len(cmd) != 2 {
		return 0, &errcode.E{C: errcode.InvalidParams, Op: "xbee.at", Msg: "command must be two characters"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.frameID()
	return id, r.write(BuildATCommand(id, cmd, param))
}
