package saki

import (
	"sakinode-go/errcode"
	"sakinode-go/x/conv"
	"sakinode-go/x/strconvx"
)

// Built-in command keys.
const (
	CmdSetTime   = "TM"
	CmdIdentify  = "ID?"
	CmdSetConfig = "CF"
	CmdGetConfig = "CF?"
	CmdStatus    = "ST?"
)

func registerBuiltins(r *Registry) {
	r.Register(CmdSetTime, HandlerFunc(SetTime))
	r.Register(CmdIdentify, HandlerFunc(Identify))
	r.Register(CmdSetConfig, HandlerFunc(SetConfig))
	r.Register(CmdGetConfig, HandlerFunc(GetConfig))
	r.Register(CmdStatus, HandlerFunc(Status))
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func nonNeg(v int32) uint32 {
	if v < 0 {
		return 0
	}
	return uint32(v)
}

// SetTime handles "TM:<clock>:<secondsSinceMidnight>". Missing fields read
// as 0; a zero clock stops it.
func SetTime(m *Manager, args []string) {
	secs := nonNeg(strconvx.Atol(arg(args, 1)))
	mid := nonNeg(strconvx.Atol(arg(args, 2)))
	m.clock.SetTime(secs, mid)
	m.debugf("[saki] clock set to %d (%ds since midnight)", secs, mid)
}

// Identify replies "ID:<id>:<inputs>:<outputs>:<Y|N>".
func Identify(m *Manager, _ []string) {
	b := make([]byte, 0, 32)
	b = append(b, "ID:"...)
	b = append(b, m.opts.ID...)
	b = append(b, Sep)
	b = conv.AppendInt(b, int64(m.opts.Inputs))
	b = append(b, Sep)
	b = conv.AppendInt(b, int64(m.opts.Outputs))
	b = append(b, Sep)
	if m.opts.Remote {
		b = append(b, 'Y')
	} else {
		b = append(b, 'N')
	}
	m.reply(string(b))
}

// SetConfig handles "CF:<k>:<v>[:<k>:<v>...]". A trailing key with no
// value is ignored. The store is saved and the change flag raised even
// when a pair is rejected; a full store answers "ER:CF".
func SetConfig(m *Manager, args []string) {
	var failed error
	for i := 1; i+1 < len(args); i += 2 {
		if err := m.cfg.Set(args[i], strconvx.Atol(args[i+1])); err != nil && failed == nil {
			failed = err
		}
	}
	m.configChanged = true
	if _, err := m.cfg.Save(); err != nil {
		m.logf("[saki] config save: %v", err)
		if failed == nil {
			failed = err
		}
	}
	if failed != nil {
		m.logf("[saki] config update: %v", failed)
		m.reply(errcode.Wire(errcode.Of(failed)) + ":CF")
	}
	if m.onConfigChange != nil {
		m.onConfigChange()
	}
}

// GetConfig replies "CF" followed by ":<key>:<value>" for every item.
// Items whose key cannot be printed are left out.
func GetConfig(m *Manager, _ []string) {
	b := make([]byte, 0, 2+10*m.cfg.Len())
	b = append(b, "CF"...)
	for it := range m.cfg.All() {
		if !it.Key.Printable() {
			m.logf("[saki] skipping unprintable config key % X", it.Key[:])
			continue
		}
		b = append(b, Sep)
		b = it.AppendWire(b)
	}
	m.reply(string(b))
}

// Status replies with the status payload.
func Status(m *Manager, _ []string) {
	if err := m.Report(false); err != nil {
		m.logf("[saki] status reply: %v", err)
	}
}
