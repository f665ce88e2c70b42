package saki

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"sakinode-go/errcode"
	"sakinode-go/x/conv"
)

// DefaultPacketTimeout bounds the wait for one frame in Check.
const DefaultPacketTimeout = 200 * time.Millisecond

// Logger is satisfied by *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// Options describe the node a Manager speaks for.
type Options struct {
	ID      string
	Inputs  int
	Outputs int
	Remote  bool // node accepts remote control

	Controller    Addr64        // destination of Send; Coordinator by default
	PacketTimeout time.Duration // 0 means DefaultPacketTimeout
	Millis        func() uint32 // clock source for Tick
	Logger        Logger
	Debug         bool
}

// Manager decodes inbound frames into handler calls and sends replies.
// It is driven by a single poll loop calling Check and must not be used
// from more than one goroutine.
type Manager struct {
	opts     Options
	tr       Transport
	cfg      *Config
	clock    *Clock
	io       IOTable
	handlers Registry

	lastSrc        Addr64
	lastSrc16      Addr16
	lastDelivery   uint8
	lastRetries    uint8
	associated     bool
	configChanged  bool
	onLinkChange   func(associated bool)
	onConfigChange func()
}

// New builds a Manager over tr with the built-in handlers registered.
// cfg may be nil for a memory-only config.
func New(tr Transport, cfg *Config, opts Options) *Manager {
	if opts.PacketTimeout <= 0 {
		opts.PacketTimeout = DefaultPacketTimeout
	}
	if opts.Millis == nil {
		start := time.Now()
		opts.Millis = func() uint32 { return uint32(time.Since(start).Milliseconds()) }
	}
	if cfg == nil {
		cfg = NewConfig(nil, 0)
	}
	m := &Manager{
		opts:      opts,
		tr:        tr,
		cfg:       cfg,
		clock:     NewClock(opts.Millis),
		lastSrc16: ShortUnknown,
	}
	registerBuiltins(&m.handlers)
	return m
}

func (m *Manager) ID() string      { return m.opts.ID }
func (m *Manager) Config() *Config { return m.cfg }
func (m *Manager) Clock() *Clock   { return m.clock }
func (m *Manager) IO() *IOTable    { return &m.io }

// Debug toggles the per-message trace.
func (m *Manager) Debug(on bool) { m.opts.Debug = on }

// Register adds or replaces the handler for key.
func (m *Manager) Register(key string, h Handler) { m.handlers.Register(key, h) }

// RegisterFunc is Register for a plain function.
func (m *Manager) RegisterFunc(key string, f func(m *Manager, args []string)) {
	m.handlers.Register(key, HandlerFunc(f))
}

// RegisterDefault sets the handler for unmatched keys.
func (m *Manager) RegisterDefault(h Handler) { m.handlers.RegisterDefault(h) }

// OnLinkChange installs a hook run when a modem status frame flips association.
func (m *Manager) OnLinkChange(fn func(associated bool)) { m.onLinkChange = fn }

// OnConfigChange installs a hook run after a remote config update.
func (m *Manager) OnConfigChange(fn func()) { m.onConfigChange = fn }

// ConfigChanged reports whether a remote config update arrived; with
// clear the flag is reset.
func (m *Manager) ConfigChanged(clear bool) bool {
	c := m.configChanged
	if clear {
		m.configChanged = false
	}
	return c
}

// LastDelivery returns the delivery status and retry count of the last
// transmit status frame.
func (m *Manager) LastDelivery() (status, retries uint8) { return m.lastDelivery, m.lastRetries }

// Associated reports the last modem association state seen.
func (m *Manager) Associated() bool { return m.associated }

// LastSender returns the addresses Reply will use.
func (m *Manager) LastSender() (Addr64, Addr16) { return m.lastSrc, m.lastSrc16 }

// Send addresses payload to the controller.
func (m *Manager) Send(payload string) error {
	return m.tr.Send(m.opts.Controller, ShortUnknown, []byte(payload))
}

// Reply addresses payload to whoever sent the last data frame.
func (m *Manager) Reply(payload string) error {
	return m.tr.Send(m.lastSrc, m.lastSrc16, []byte(payload))
}

func (m *Manager) debugf(format string, args ...any) {
	if m.opts.Debug && m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}

func (m *Manager) logf(format string, args ...any) {
	if m.opts.Logger != nil {
		m.opts.Logger.Printf(format, args...)
	}
}

// Check advances the clock then waits up to the packet timeout for one
// frame and handles it. Only transport failures are returned; protocol
// problems are answered on the wire and logged, and corrupt frames are
// logged and dropped.
func (m *Manager) Check(ctx context.Context) error {
	m.clock.Tick()

	rctx, cancel := context.WithTimeout(ctx, m.opts.PacketTimeout)
	f, err := m.tr.Receive(rctx)
	cancel()
	if err != nil {
		if code := errcode.Of(err); code == errcode.Checksum || code == errcode.InvalidFrame {
			m.logf("[saki] dropped frame: %v", err)
			return nil
		}
		return fmt.Errorf("saki.check: %w", err)
	}
	if f == nil {
		return nil
	}

	switch f.Kind {
	case FrameData:
		m.handle(f)
	case FrameModemStatus:
		m.modemStatus(f.Status)
	case FrameTxStatus:
		m.lastDelivery, m.lastRetries = f.Status, f.Retries
		if f.Status != 0 {
			m.debugf("[saki] tx status: delivery=0x%02X retries=%d", f.Status, f.Retries)
		}
	default:
		m.logf("[saki] invalid frame: api id 0x%02X", f.APIID)
	}
	return nil
}

func (m *Manager) modemStatus(st uint8) {
	var assoc bool
	switch st {
	case ModemAssociated, ModemCoordinatorUp:
		assoc = true
	case ModemDisassociated, ModemHardwareReset, ModemWatchdogReset:
	default:
		m.debugf("[saki] modem status 0x%02X", st)
		return
	}
	if assoc == m.associated {
		return
	}
	m.associated = assoc
	m.debugf("[saki] link associated=%v", assoc)
	if m.onLinkChange != nil {
		m.onLinkChange(assoc)
	}
}

func (m *Manager) handle(f *Frame) {
	m.lastSrc, m.lastSrc16 = f.Src, f.Src16

	data := f.Payload
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	args, err := Tokenize(string(data))
	if m.opts.Debug && m.opts.Logger != nil {
		m.trace(f, args)
	}
	switch {
	case err != nil:
		m.logf("[saki] rejected message: %v", err)
		m.reply(errcode.Wire(errcode.Of(err)) + ":TK")
		return
	case len(args) == 0:
		m.logf("[saki] invalid message received: %v", ErrEmptyPayload)
		m.reply(errcode.Wire(errcode.NotAcknowledged))
		return
	}

	h, ok := m.handlers.Lookup(args[0])
	if !ok {
		m.reply(errcode.Wire(errcode.NotAcknowledged))
		m.logf("[saki] invalid message received: %q", args[0])
		return
	}
	h.Handle(m, args)
}

// reply is Reply for internal answers whose failure can only be logged.
func (m *Manager) reply(payload string) {
	if err := m.Reply(payload); err != nil {
		m.logf("[saki] reply %q: %v", payload, err)
	}
}

func (m *Manager) trace(f *Frame, args []string) {
	var hx [16]byte
	b := make([]byte, 0, 64)
	b = append(b, "message from "...)
	b = append(b, conv.U64Hex(hx[:], uint64(f.Src))...)
	b = append(b, ' ')
	b = append(b, conv.U16Hex(hx[:], uint16(f.Src16))...)
	b = append(b, ": "...)
	for _, a := range args {
		b = append(b, a...)
		b = append(b, Sep)
	}
	m.opts.Logger.Printf("[saki] %s", b)
}

// StatusPayload builds "ST:<ni>:<no>" followed by one field per input then
// per output: Y/N for digital lines, fixed point for analog lines with a
// precision, a plain integer otherwise.
func (m *Manager) StatusPayload() string {
	in, out := m.io.Inputs(), m.io.Outputs()
	b := make([]byte, 0, 8+8*(len(in)+len(out)))
	b = append(b, "ST"...)
	b = append(b, Sep)
	b = conv.AppendInt(b, int64(len(in)))
	b = append(b, Sep)
	b = conv.AppendInt(b, int64(len(out)))
	for _, l := range in {
		b = appendLine(b, l)
	}
	for _, l := range out {
		b = appendLine(b, l)
	}
	return string(b)
}

func appendLine(b []byte, l Line) []byte {
	b = append(b, Sep)
	switch {
	case l.Digital && l.Value != 0:
		return append(b, 'Y')
	case l.Digital:
		return append(b, 'N')
	}
	return conv.AppendFixed(b, int64(l.Value), int(l.Precision))
}

// Report sends the status payload to the controller, or replies to the
// last sender.
func (m *Manager) Report(toController bool) error {
	p := m.StatusPayload()
	if toController {
		return m.Send(p)
	}
	return m.Reply(p)
}
