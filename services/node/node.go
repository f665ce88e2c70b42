// Package node runs the poll loop of a sensor node: it owns the protocol
// Manager, feeds it sensor readings from the bus, drives the thermostat
// and sends the periodic status report.
package node

import (
	"context"
	"maps"
	"slices"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds1307"

	"sakinode-go/bus"
	"sakinode-go/errcode"
	"sakinode-go/saki"
	"sakinode-go/services/config"
	"sakinode-go/services/sensor"
	"sakinode-go/services/thermostat"
	"sakinode-go/x/timex"
)

// KeyReportInterval overrides the report period, in seconds.
const KeyReportInterval = "ri"

// TopicLink carries the radio association state (bool, retained).
var TopicLink = bus.T("node", "link")

// Options wire a Node to its resources. Only Transport is required.
type Options struct {
	Config     config.Node
	Transport  saki.Transport
	Store      saki.Block  // nil keeps the key/value store in memory
	RTC        drivers.I2C // DS1307 bus; nil starts the clock from 1
	Thermostat *thermostat.Thermostat
	Millis     func() uint32
	Logger     saki.Logger
}

type Node struct {
	opts   Options
	mgr    *saki.Manager
	conn   *bus.Connection
	sub    *bus.Subscription
	thermo *thermostat.Thermostat

	temp     int32
	haveTemp bool
}

// New builds the Manager described by opts.Config. conn may be nil when
// no sensor service runs.
func New(opts Options, conn *bus.Connection) (*Node, error) {
	nc := opts.Config
	ctrl, err := nc.ControllerAddr()
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "node.new", Err: err}
	}
	if opts.Millis == nil {
		opts.Millis = timex.Millis
	}
	cfg := saki.NewConfig(opts.Store, int64(nc.Storage.Offset))
	mgr := saki.New(opts.Transport, cfg, saki.Options{
		ID:            nc.ID,
		Inputs:        nc.Inputs,
		Outputs:       nc.Outputs,
		Remote:        nc.Remote,
		Controller:    ctrl,
		PacketTimeout: timex.Ms(nc.PacketTimeoutMS, saki.DefaultPacketTimeout),
		Millis:        opts.Millis,
		Logger:        opts.Logger,
		Debug:         nc.Debug,
	})

	n := &Node{opts: opts, mgr: mgr, conn: conn, thermo: opts.Thermostat}
	for i := 0; i < nc.Inputs; i++ {
		prec := 0
		if nc.Sensor.Enabled && i == nc.Sensor.Line {
			prec = nc.Sensor.Precision
		}
		_ = mgr.IO().SetAnalogInput(i, 0, prec)
	}
	for i := 0; i < nc.Outputs; i++ {
		_ = mgr.IO().SetDigitalOutput(i, false)
	}
	if conn != nil {
		n.sub = conn.Subscribe(sensor.TopicTemperature)
	}
	mgr.OnLinkChange(n.linkChanged)
	mgr.OnConfigChange(n.armReport)
	return n, nil
}

// Manager exposes the protocol manager, for registering extra handlers.
func (n *Node) Manager() *saki.Manager { return n.mgr }

func (n *Node) logf(format string, args ...any) {
	if n.opts.Logger != nil {
		n.opts.Logger.Printf(format, args...)
	}
}

// Boot loads the persisted config, seeds missing keys from the configured
// defaults, starts the clock and arms the first report.
func (n *Node) Boot() error {
	cfg := n.mgr.Config()
	dups, err := cfg.Load()
	switch {
	case errcode.Of(err) == errcode.Unconfigured:
		n.logf("[node] config block unusable, starting empty: %v", err)
	case err != nil:
		return err
	case dups > 0:
		n.logf("[node] config block had %d duplicate keys", dups)
	}

	defs := n.opts.Config.Defaults
	for _, k := range slices.Sorted(maps.Keys(defs)) {
		if err := cfg.SetDefault(k, defs[k]); err != nil {
			n.logf("[node] default %s: %v", k, err)
		}
	}
	wrote, err := cfg.Save()
	if err != nil {
		return err
	}
	if wrote {
		n.logf("[node] config block written (%d keys)", cfg.Len())
	}

	if n.opts.RTC != nil {
		ok, err := SeedClock(n.mgr.Clock(), n.opts.RTC)
		if err != nil {
			n.logf("[node] rtc: %v", err)
		}
		if ok {
			n.logf("[node] clock seeded from rtc: %d", n.mgr.Clock().Now())
		}
	}
	if !n.mgr.Clock().Running() {
		n.mgr.Clock().Start()
	}
	n.armReport()
	return nil
}

// SeedClock sets c from a running DS1307 on bus. It reports false when the
// oscillator is halted.
func SeedClock(c *saki.Clock, i2c drivers.I2C) (bool, error) {
	rtc := ds1307.New(i2c)
	if !rtc.IsOscillatorRunning() {
		return false, nil
	}
	t, err := rtc.ReadTime()
	if err != nil {
		return false, errcode.Wrap(errcode.Error, "node.rtc", err)
	}
	if t.Unix() <= 0 {
		return false, nil
	}
	c.SetTime(uint32(t.Unix()), uint32(timex.SinceMidnight(t)))
	return true, nil
}

func (n *Node) reportInterval() uint32 {
	if ri := n.mgr.Config().Get(KeyReportInterval); ri > 0 {
		return uint32(ri)
	}
	if s := n.opts.Config.ReportIntervalS; s > 0 {
		return uint32(s)
	}
	return 0
}

func (n *Node) armReport() {
	if iv := n.reportInterval(); iv > 0 {
		n.mgr.Clock().SetAlarm(iv, true)
		return
	}
	n.mgr.Clock().ClearAlarm()
}

func (n *Node) linkChanged(up bool) {
	n.logf("[node] radio associated=%v", up)
	if n.conn != nil {
		n.conn.Publish(n.conn.NewMessage(TopicLink, up, true))
	}
	if up {
		// Announce ourselves once joined.
		if err := n.mgr.Report(true); err != nil {
			n.logf("[node] report: %v", err)
		}
	}
}

func (n *Node) drainReadings() {
	if n.sub == nil {
		return
	}
	for {
		select {
		case msg, ok := <-n.sub.Channel():
			if !ok {
				n.sub = nil
				return
			}
			r, ok := msg.Payload.(sensor.Reading)
			if !ok {
				continue
			}
			if r.Err != nil {
				n.logf("[node] sensor: %v", r.Err)
				continue
			}
			if err := n.mgr.IO().SetAnalogInput(r.Line, r.Value, r.Precision); err != nil {
				n.logf("[node] sensor line %d: %v", r.Line, err)
			}
			n.temp, n.haveTemp = r.Value, true
		default:
			return
		}
	}
}

// Step runs one iteration of the poll loop. It returns only transport
// failures.
func (n *Node) Step(ctx context.Context) error {
	n.drainReadings()
	err := n.mgr.Check(ctx)

	if n.thermo != nil {
		if n.thermo.Step(n.mgr, n.temp, n.haveTemp) {
			h, c, t := n.thermo.State()
			n.logf("[node] relays heat=%v cool=%v timed=%v", h, c, t)
		}
		n.haveTemp = false
	}

	if n.mgr.Clock().IsAlarmed(true) {
		if rerr := n.mgr.Report(true); rerr != nil {
			n.logf("[node] report: %v", rerr)
		}
		n.armReport()
	}
	return err
}

// Run boots the node and polls until ctx ends. Transport failures are
// logged and retried with backoff.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Boot(); err != nil {
		return err
	}
	n.logf("[node] %s up: %d inputs, %d outputs", n.mgr.ID(), n.opts.Config.Inputs, n.opts.Config.Outputs)

	backoff := timex.Backoff(250*time.Millisecond, 5*time.Second)
	for ctx.Err() == nil {
		if err := n.Step(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			d := backoff()
			n.logf("[node] link: %v (retry in %s)", err, d)
			if !timex.Sleep(ctx, d) {
				break
			}
			continue
		}
		backoff = timex.Backoff(250*time.Millisecond, 5*time.Second)
	}
	if n.sub != nil {
		n.sub.Unsubscribe()
	}
	return nil
}
