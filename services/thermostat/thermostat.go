// Package thermostat switches heat and cool relays from the latest
// temperature and the lo/hi/hy keys of the node config, plus an optional
// relay that is on during a daily time window (ls/hs, minutes since
// midnight).
package thermostat

import (
	"sakinode-go/saki"
	"sakinode-go/services/config"
	"sakinode-go/services/platform"
)

// Config keys read on every step.
const (
	KeyLow        = "lo"
	KeyHigh       = "hi"
	KeyHysteresis = "hy"
	KeyTimedOn    = "ls"
	KeyTimedOff   = "hs"
)

type relay struct {
	line int
	pin  platform.Pin
	on   bool
}

func (r *relay) set(io *saki.IOTable, on bool) bool {
	if r == nil || r.line < 0 {
		return false
	}
	changed := r.on != on
	r.on = on
	if r.pin != nil {
		r.pin.Set(on)
	}
	_ = io.SetDigitalOutput(r.line, on)
	return changed
}

// Thermostat holds relay state between steps. It is owned by the node
// poll loop.
type Thermostat struct {
	heat, cool, timed *relay
}

// New builds the relays of tc. pin resolves a pin number; it may be nil
// to only mirror states into the IO table.
func New(tc config.ThermostatConfig, pin func(n int) (platform.Pin, error)) (*Thermostat, error) {
	mk := func(line, n int) (*relay, error) {
		if line < 0 {
			return nil, nil
		}
		r := &relay{line: line}
		if pin != nil {
			p, err := pin(n)
			if err != nil {
				return nil, err
			}
			r.pin = p
		}
		return r, nil
	}
	var t Thermostat
	var err error
	if t.heat, err = mk(tc.HeatLine, tc.HeatPin); err != nil {
		return nil, err
	}
	if t.cool, err = mk(tc.CoolLine, tc.CoolPin); err != nil {
		return nil, err
	}
	if t.timed, err = mk(tc.TimedLine, tc.TimedPin); err != nil {
		return nil, err
	}
	return &t, nil
}

// State reports the relay levels.
func (t *Thermostat) State() (heat, cool, timed bool) {
	on := func(r *relay) bool { return r != nil && r.on }
	return on(t.heat), on(t.cool), on(t.timed)
}

// Step applies one temperature sample, in the same fixed-point units as
// the lo/hi/hy keys, and evaluates the time window. With no sample the
// heat and cool relays keep their state. It reports whether any relay
// changed.
func (t *Thermostat) Step(m *saki.Manager, temp int32, haveTemp bool) bool {
	cfg, io := m.Config(), m.IO()
	changed := false

	if haveTemp {
		hy := cfg.Get(KeyHysteresis)
		if hy < 0 {
			hy = 0
		}
		if cfg.Has(KeyLow) && t.heat != nil {
			lo := cfg.Get(KeyLow)
			on := t.heat.on
			switch {
			case temp < lo-hy:
				on = true
			case temp >= lo:
				on = false
			}
			changed = t.heat.set(io, on) || changed
		}
		if cfg.Has(KeyHigh) && t.cool != nil {
			hi := cfg.Get(KeyHigh)
			on := t.cool.on
			switch {
			case temp > hi+hy:
				on = true
			case temp <= hi:
				on = false
			}
			changed = t.cool.set(io, on) || changed
		}
	}

	if t.timed != nil {
		on := false
		if m.Clock().Running() && cfg.Has(KeyTimedOn) && cfg.Has(KeyTimedOff) {
			on = InWindow(m.Clock().SecondsSinceMidnight(), cfg.Get(KeyTimedOn), cfg.Get(KeyTimedOff))
		}
		changed = t.timed.set(io, on) || changed
	}
	return changed
}

// InWindow reports whether secs since midnight lies in [from, to) minutes.
// A window with from > to wraps past midnight; from == to is empty.
func InWindow(secs uint32, from, to int32) bool {
	min := int32(secs / 60)
	switch {
	case from == to:
		return false
	case from < to:
		return min >= from && min < to
	default:
		return min >= from || min < to
	}
}
