// Package sensor polls a DS18B20 probe and publishes readings on the bus.
package sensor

import (
	"context"
	"encoding/hex"
	"time"

	"tinygo.org/x/drivers/ds18b20"

	"sakinode-go/bus"
	"sakinode-go/errcode"
	"sakinode-go/saki"
	"sakinode-go/services/config"
	"sakinode-go/x/mathx"
	"sakinode-go/x/timex"
)

// TopicTemperature carries a Reading per poll.
var TopicTemperature = bus.T("sensor", "temperature")

// Conversion is the 12-bit conversion time of the DS18B20.
const Conversion = 750 * time.Millisecond

const defaultPoll = 2 * time.Second

// Probe is the part of ds18b20.Device the service uses.
type Probe interface {
	RequestTemperature(romid []uint8)
	ReadTemperature(romid []uint8) (int32, error)
}

// Reading is one sample, already scaled for an IOTable analog input.
type Reading struct {
	Line      int
	Value     int32 // degrees C * 10^Precision
	Precision int
	MilliC    int32
	Err       error
}

type Service struct {
	probe      Probe
	rom        []byte
	cfg        config.SensorConfig
	conversion time.Duration
}

// New drives a DS18B20 on owd.
func New(owd ds18b20.OneWireDevice, sc config.SensorConfig) (*Service, error) {
	return NewWithProbe(ds18b20.New(owd), sc)
}

// NewWithProbe is New over any Probe.
func NewWithProbe(p Probe, sc config.SensorConfig) (*Service, error) {
	var rom []byte
	if sc.ROM != "" {
		b, err := hex.DecodeString(sc.ROM)
		if err != nil || len(b) != 8 {
			return nil, &errcode.E{C: errcode.InvalidParams, Op: "sensor.new", Msg: "rom must be 16 hex digits"}
		}
		rom = b
	}
	sc.Precision = mathx.Clamp(sc.Precision, 0, saki.MaxPrecision)
	return &Service{probe: p, rom: rom, cfg: sc, conversion: Conversion}, nil
}

// Scale converts milli-degrees to fixed point with prec decimals,
// rounding half away from zero.
func Scale(milli int32, prec int) int32 {
	prec = mathx.Clamp(prec, 0, saki.MaxPrecision)
	if prec >= 3 {
		return mathx.SatInt32(int64(milli) * mathx.Pow10[int64](prec-3))
	}
	d := mathx.Pow10[int64](3 - prec)
	v := int64(milli)
	if v < 0 {
		return int32((v - d/2) / d)
	}
	return int32((v + d/2) / d)
}

// Measure triggers a conversion, waits for it and reads the result.
func (s *Service) Measure(ctx context.Context) Reading {
	r := Reading{Line: s.cfg.Line, Precision: s.cfg.Precision}
	s.probe.RequestTemperature(s.rom)
	if !timex.Sleep(ctx, s.conversion) {
		r.Err = ctx.Err()
		return r
	}
	mc, err := s.probe.ReadTemperature(s.rom)
	if err != nil {
		r.Err = errcode.Wrap(errcode.Error, "sensor.read", err)
		return r
	}
	r.MilliC = mc
	r.Value = Scale(mc, s.cfg.Precision)
	return r
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	poll := timex.Ms(s.cfg.PollIntervalMS, defaultPoll)
	tick := time.NewTicker(poll)
	defer tick.Stop()

	for {
		r := s.Measure(ctx)
		if ctx.Err() != nil {
			return
		}
		conn.Publish(conn.NewMessage(TopicTemperature, r, false))
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

// Start polls the probe until ctx ends.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
