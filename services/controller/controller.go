// Package controller is the coordinator side of the node protocol: it
// discovers nodes, sends them requests and dispatches their replies.
package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"sakinode-go/drivers/xbee"
	"sakinode-go/errcode"
	"sakinode-go/saki"
	"sakinode-go/x/strconvx"
	"sakinode-go/x/timex"
)

// Reply kinds sent by nodes.
const (
	KindID     = "ID"
	KindStatus = "ST"
	KindNAK    = "NK"
	KindError  = "ER"
	KindConfig = "CF"
)

// Unknown names a reply source that was never discovered.
const Unknown = "UNKNOWN"

// ErrShutdown is returned by Execute for the quit command.
var ErrShutdown = errors.New("controller: shutdown requested")

// Radio is the part of xbee.Radio the controller drives.
type Radio interface {
	ReadPacket(ctx context.Context) (xbee.Packet, error)
	Send(dst saki.Addr64, dst16 saki.Addr16, payload []byte) error
	SendAT(cmd string, param []byte) (byte, error)
}

// Event is one reply from a node, split on ':'.
type Event struct {
	Kind   string
	Source saki.Addr64
	Node   string
	Args   []string
}

// Options tune a Controller.
type Options struct {
	// RequestGap spaces the sends of a broadcast request.
	RequestGap time.Duration
	Logger     saki.Logger
}

type Controller struct {
	radio Radio
	opts  Options

	mu         sync.Mutex
	nodes      []xbee.NodeInfo
	handlers   map[string]func(Event)
	onTxStatus func(status, retries uint8)
}

func New(r Radio, opts Options) *Controller {
	return &Controller{radio: r, opts: opts, handlers: make(map[string]func(Event))}
}

func (c *Controller) logf(format string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Printf(format, args...)
	}
}

// Handle sets the callback for a reply kind. Kinds without one are logged.
func (c *Controller) Handle(kind string, fn func(Event)) {
	c.mu.Lock()
	c.handlers[kind] = fn
	c.mu.Unlock()
}

// OnTxStatus sets the callback for transmit reports that needed retries
// or failed.
func (c *Controller) OnTxStatus(fn func(status, retries uint8)) {
	c.mu.Lock()
	c.onTxStatus = fn
	c.mu.Unlock()
}

// Nodes returns the discovered nodes in discovery order.
func (c *Controller) Nodes() []xbee.NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]xbee.NodeInfo(nil), c.nodes...)
}

func (c *Controller) nameOf(a saki.Addr64) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		if n.Addr64 == a {
			return n.Name
		}
	}
	return Unknown
}

// Discover broadcasts a node discovery.
func (c *Controller) Discover() error {
	_, err := c.radio.SendAT("ND", nil)
	return err
}

// addNode records ni. A node seen for the first time is asked for its ID.
func (c *Controller) addNode(ni xbee.NodeInfo) {
	c.mu.Lock()
	for i, n := range c.nodes {
		if n.Addr64 == ni.Addr64 {
			c.nodes[i] = ni
			c.mu.Unlock()
			return
		}
	}
	c.nodes = append(c.nodes, ni)
	c.mu.Unlock()

	c.logf("[ctl] node %q at %016X/%04X", ni.Name, uint64(ni.Addr64), uint16(ni.Addr16))
	if err := c.radio.Send(ni.Addr64, ni.Addr16, []byte(saki.CmdIdentify)); err != nil {
		c.logf("[ctl] %s > %s: %v", saki.CmdIdentify, ni.Name, err)
	}
}

func (c *Controller) sendTo(targets []xbee.NodeInfo, cmd string, gap time.Duration) (int, error) {
	var first error
	sent := 0
	var wait *time.Timer
	defer func() {
		if wait != nil {
			wait.Stop()
		}
	}()
	for i, n := range targets {
		if i > 0 && gap > 0 {
			if wait == nil {
				wait = time.NewTimer(gap)
			} else {
				timex.ResetTimer(wait, gap)
			}
			<-wait.C
		}
		c.logf("[ctl] %s > %s", cmd, n.Name)
		if err := c.radio.Send(n.Addr64, n.Addr16, []byte(cmd)); err != nil {
			if first == nil {
				first = err
			}
			continue
		}
		sent++
	}
	return sent, first
}

// Request sends cmd to every discovered node and returns how many sends
// succeeded.
func (c *Controller) Request(cmd string) (int, error) {
	return c.sendTo(c.Nodes(), cmd, c.opts.RequestGap)
}

// RequestFrom sends cmd to every node whose name contains name.
func (c *Controller) RequestFrom(name, cmd string) (int, error) {
	var targets []xbee.NodeInfo
	for _, n := range c.Nodes() {
		if strings.Contains(n.Name, name) {
			targets = append(targets, n)
		}
	}
	return c.sendTo(targets, cmd, 0)
}

// Broadcast sends cmd once to every node on the network, discovered or not.
func (c *Controller) Broadcast(cmd string) error {
	c.logf("[ctl] %s > *", cmd)
	return c.radio.Send(saki.Broadcast, saki.ShortUnknown, []byte(cmd))
}

// SetConfig sends "CF:k:v..." built from kv to the nodes matching name.
func (c *Controller) SetConfig(name string, kv ...string) (int, error) {
	if len(kv) == 0 || len(kv)%2 != 0 {
		return 0, &errcode.E{C: errcode.InvalidParams, Op: "controller.set_config", Msg: "want key/value pairs"}
	}
	for i := 1; i < len(kv); i += 2 {
		if _, ok := strconvx.AtolOK(kv[i]); !ok {
			return 0, &errcode.E{C: errcode.InvalidParams, Op: "controller.set_config", Msg: "value for " + kv[i-1] + " is not a number"}
		}
	}
	return c.RequestFrom(name, saki.CmdSetConfig+string(saki.Sep)+strings.Join(kv, string(saki.Sep)))
}

// HandlePacket dispatches one decoded frame.
func (c *Controller) HandlePacket(p xbee.Packet) {
	switch p.APIID() {
	case xbee.APINodeIdentification:
		ni, err := xbee.ParseNodeIdentification(p)
		if err != nil {
			c.logf("[ctl] node identification: %v", err)
			return
		}
		c.addNode(ni)
	case xbee.APIATResponse:
		r, err := xbee.ParseATResponse(p)
		if err != nil {
			c.logf("[ctl] at response: %v", err)
			return
		}
		if r.Command != "ND" {
			c.logf("[ctl] unhandled AT response %s status %d", r.Command, r.Status)
			return
		}
		if len(r.Data) == 0 {
			return // end of discovery
		}
		ni, err := xbee.ParseNodeInfo(r.Data)
		if err != nil {
			c.logf("[ctl] discovery record: %v", err)
			return
		}
		c.addNode(ni)
	case xbee.APIRxPacket:
		f, err := xbee.ParseFrame(p)
		if err != nil {
			c.logf("[ctl] rx: %v", err)
			return
		}
		c.dispatch(f)
	case xbee.APITxStatus:
		f, err := xbee.ParseFrame(p)
		if err != nil {
			return
		}
		if f.Retries > 0 || f.Status != 0 {
			c.logf("[ctl] tx status: retries=%d delivery=0x%02X", f.Retries, f.Status)
			c.mu.Lock()
			fn := c.onTxStatus
			c.mu.Unlock()
			if fn != nil {
				fn(f.Status, f.Retries)
			}
		}
	case xbee.APIModemStatus:
	default:
		c.logf("[ctl] unknown frame 0x%02X", p.APIID())
	}
}

func (c *Controller) dispatch(f *saki.Frame) {
	args := strings.Split(string(f.Payload), string(saki.Sep))
	ev := Event{Kind: args[0], Source: f.Src, Node: c.nameOf(f.Src), Args: args}
	c.mu.Lock()
	fn, ok := c.handlers[ev.Kind]
	c.mu.Unlock()
	switch {
	case ok && fn != nil:
		fn(ev)
	case ev.Kind == KindID || ev.Kind == KindStatus || ev.Kind == KindNAK || ev.Kind == KindError || ev.Kind == KindConfig:
		c.logf("[ctl] %s: %s: %v", ev.Node, ev.Kind, args)
	default:
		c.logf("[ctl] unknown reply type %q from %016X", ev.Kind, uint64(f.Src))
	}
}

// Run reads frames until ctx ends or the radio fails.
func (c *Controller) Run(ctx context.Context) error {
	for {
		p, err := c.radio.ReadPacket(ctx)
		if err != nil {
			if code := errcode.Of(err); code == errcode.Checksum || code == errcode.InvalidFrame {
				c.logf("[ctl] %v", err)
				continue
			}
			return err
		}
		if p == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		c.HandlePacket(p)
	}
}

// Execute runs one interactive command:
//
//	s            request status from all nodes
//	i            request identification from all nodes
//	c            request config from all nodes
//	n            node discovery
//	b cmd        broadcast a raw command
//	k node k v.. set config on matching nodes
//	q            quit
func (c *Controller) Execute(line string) error {
	words := strings.Fields(line)
	if len(words) == 0 {
		return nil
	}
	var err error
	switch strings.ToLower(words[0]) {
	case "q":
		return ErrShutdown
	case "s":
		_, err = c.Request(saki.CmdStatus)
	case "i":
		_, err = c.Request(saki.CmdIdentify)
	case "c":
		_, err = c.Request(saki.CmdGetConfig)
	case "n":
		err = c.Discover()
	case "b":
		if len(words) != 2 {
			return &errcode.E{C: errcode.InvalidParams, Op: "controller.execute", Msg: "usage: b <command>"}
		}
		err = c.Broadcast(words[1])
	case "k":
		if len(words) < 3 {
			return &errcode.E{C: errcode.InvalidParams, Op: "controller.execute", Msg: "usage: k <node> <key> <value> ..."}
		}
		_, err = c.SetConfig(words[1], words[2:]...)
	default:
		return &errcode.E{C: errcode.Unsupported, Op: "controller.execute", Msg: "unknown command " + words[0]}
	}
	return err
}
