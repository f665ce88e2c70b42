package config

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"sakinode-go/bus"
	"sakinode-go/saki"
)

// -----------------------------------------------------------------------------
// String constants
// -----------------------------------------------------------------------------

const (
	serviceName  = "config"
	configPrefix = "config"
)

// Sections published by the config service, each as a retained message
// on config/<section>.
const (
	SectionNode       = "node"
	SectionRadio      = "radio"
	SectionStorage    = "storage"
	SectionRTC        = "rtc"
	SectionSensor     = "sensor"
	SectionThermostat = "thermostat"
)

// Topic returns the retained topic of a section.
func Topic(section string) bus.Topic { return bus.T(configPrefix, section) }

// EmbeddedConfigLookup allows overriding how board configs are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// -----------------------------------------------------------------------------
// Node configuration
// -----------------------------------------------------------------------------

// Node is the complete configuration of one sensor node.
type Node struct {
	Board   string `yaml:"board" json:"board"`
	ID      string `yaml:"id" json:"id"`
	Inputs  int    `yaml:"inputs" json:"inputs"`
	Outputs int    `yaml:"outputs" json:"outputs"`
	Remote  bool   `yaml:"remote" json:"remote"`
	Debug   bool   `yaml:"debug" json:"debug"`

	// Controller is the 64-bit radio address reports go to, in hex.
	// Empty means the network coordinator.
	Controller      string `yaml:"controller" json:"controller"`
	PacketTimeoutMS int    `yaml:"packetTimeoutMs" json:"packetTimeoutMs"`
	ReportIntervalS int    `yaml:"reportIntervalS" json:"reportIntervalS"`

	Radio      RadioConfig      `yaml:"radio" json:"radio"`
	I2C        I2CConfig        `yaml:"i2c" json:"i2c"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	RTC        RTCConfig        `yaml:"rtc" json:"rtc"`
	Sensor     SensorConfig     `yaml:"sensor" json:"sensor"`
	Thermostat ThermostatConfig `yaml:"thermostat" json:"thermostat"`
	Log        LogConfig        `yaml:"log" json:"log"`

	// Defaults seed the persisted key/value store when keys are missing.
	Defaults map[string]int32 `yaml:"defaults" json:"defaults"`
}

// RadioConfig selects the serial link to the XBee.
type RadioConfig struct {
	Port    string `yaml:"port" json:"port"` // device path on hosts, "uart0"/"uart1" on MCUs
	Baud    int    `yaml:"baud" json:"baud"`
	APIMode int    `yaml:"apiMode" json:"apiMode"` // 1 or 2
	TX      int    `yaml:"tx" json:"tx"`           // MCU pins
	RX      int    `yaml:"rx" json:"rx"`
}

// I2CConfig describes the I2C bus shared by the EEPROM and RTC.
type I2CConfig struct {
	Bus         int `yaml:"bus" json:"bus"` // /dev/i2c-N on linux, I2C0/1 on MCUs
	SDA         int `yaml:"sda" json:"sda"`
	SCL         int `yaml:"scl" json:"scl"`
	FrequencyHz int `yaml:"frequencyHz" json:"frequencyHz"`
}

// StorageConfig selects where the key/value block lives.
type StorageConfig struct {
	Kind    string `yaml:"kind" json:"kind"` // eeprom | file | memory
	Address int    `yaml:"address" json:"address"`
	Offset  int    `yaml:"offset" json:"offset"`
	Path    string `yaml:"path" json:"path"`
}

// RTCConfig enables clock seeding from a DS1307.
type RTCConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SensorConfig drives the DS18B20 probe.
type SensorConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Pin            int    `yaml:"pin" json:"pin"` // 1-Wire data pin
	ROM            string `yaml:"rom" json:"rom"` // hex ROM id; empty = only device on the bus
	Line           int    `yaml:"line" json:"line"`
	Precision      int    `yaml:"precision" json:"precision"`
	PollIntervalMS int    `yaml:"pollIntervalMs" json:"pollIntervalMs"`
}

// ThermostatConfig maps relays onto output lines and pins.
type ThermostatConfig struct {
	Enabled   bool `yaml:"enabled" json:"enabled"`
	HeatLine  int  `yaml:"heatLine" json:"heatLine"`
	CoolLine  int  `yaml:"coolLine" json:"coolLine"`
	TimedLine int  `yaml:"timedLine" json:"timedLine"` // -1 disables the timed relay
	HeatPin   int  `yaml:"heatPin" json:"heatPin"`
	CoolPin   int  `yaml:"coolPin" json:"coolPin"`
	TimedPin  int  `yaml:"timedPin" json:"timedPin"`
}

// LogConfig controls the host log file.
type LogConfig struct {
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb" json:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups" json:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays" json:"maxAgeDays"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Node {
	return Node{
		ID:              "node",
		Inputs:          1,
		Outputs:         0,
		PacketTimeoutMS: int(saki.DefaultPacketTimeout.Milliseconds()),
		ReportIntervalS: 60,
		Radio:           RadioConfig{Baud: 9600, APIMode: 2},
		I2C:             I2CConfig{FrequencyHz: 100_000},
		Storage:         StorageConfig{Kind: "memory"},
		Sensor:          SensorConfig{Line: 0, Precision: 2, PollIntervalMS: 2000},
		Thermostat:      ThermostatConfig{HeatLine: 0, CoolLine: 1, TimedLine: -1},
		Log:             LogConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Defaults:        map[string]int32{},
	}
}

// ControllerAddr parses Controller.
func (n *Node) ControllerAddr() (saki.Addr64, error) {
	if n.Controller == "" {
		return saki.Coordinator, nil
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(n.Controller), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("controller address %q: %v", n.Controller, err)
	}
	return saki.Addr64(v), nil
}

// ApplyBoard overlays the embedded JSON config of board.
func (n *Node) ApplyBoard(board string) error {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return fmt.Errorf("no embedded config for board: %s", board)
	}
	if err := json.Unmarshal(raw, n); err != nil {
		return fmt.Errorf("embedded config for %s: %v", board, err)
	}
	n.Board = board
	return nil
}

// Validate checks ranges and cross-field constraints.
func (n *Node) Validate() error {
	if n.ID == "" || strings.ContainsRune(n.ID, saki.Sep) {
		return fmt.Errorf("id %q must be non-empty and contain no ':'", n.ID)
	}
	if n.Inputs < 0 || n.Inputs > saki.MaxLines || n.Outputs < 0 || n.Outputs > saki.MaxLines {
		return fmt.Errorf("inputs/outputs must be within 0..%d", saki.MaxLines)
	}
	if _, err := n.ControllerAddr(); err != nil {
		return err
	}
	if n.PacketTimeoutMS <= 0 {
		return fmt.Errorf("packetTimeoutMs must be positive, got %d", n.PacketTimeoutMS)
	}
	if n.ReportIntervalS < 0 {
		return fmt.Errorf("reportIntervalS must not be negative")
	}
	if n.Radio.APIMode != 1 && n.Radio.APIMode != 2 {
		return fmt.Errorf("radio.apiMode must be 1 or 2, got %d", n.Radio.APIMode)
	}
	if n.Radio.Baud <= 0 {
		return fmt.Errorf("radio.baud must be positive")
	}
	switch n.Storage.Kind {
	case "memory", "eeprom":
	case "file":
		if n.Storage.Path == "" {
			return fmt.Errorf("storage.path required for file storage")
		}
	default:
		return fmt.Errorf("unknown storage.kind %q", n.Storage.Kind)
	}
	if n.Storage.Offset < 0 || n.Storage.Offset+saki.BlockSize > 4096 {
		return fmt.Errorf("storage.offset %d leaves no room for the config block", n.Storage.Offset)
	}
	if n.Sensor.Enabled {
		if n.Sensor.Precision < 0 || n.Sensor.Precision > saki.MaxPrecision {
			return fmt.Errorf("sensor.precision must be within 0..%d", saki.MaxPrecision)
		}
		if n.Sensor.Line < 0 || n.Sensor.Line >= saki.MaxLines {
			return fmt.Errorf("sensor.line out of range")
		}
	}
	if t := n.Thermostat; t.Enabled && (t.HeatLine == t.CoolLine || t.HeatLine == t.TimedLine || t.CoolLine == t.TimedLine) {
		return fmt.Errorf("thermostat lines must be distinct")
	}
	for k := range n.Defaults {
		if len(k) == 0 || len(k) > 2 {
			return fmt.Errorf("default key %q must be one or two characters", k)
		}
	}
	if len(n.Defaults) > saki.MaxItems {
		return fmt.Errorf("at most %d default keys", saki.MaxItems)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

// ConfigService publishes the node configuration as retained bus messages
// so services pick up their section when they subscribe.
type ConfigService struct {
	Name string
	node Node
}

func NewConfigService(n Node) *ConfigService {
	return &ConfigService{Name: serviceName, node: n}
}

func (s *ConfigService) publishConfig(conn *bus.Connection) {
	n := s.node
	sections := []struct {
		name string
		v    any
	}{
		{SectionNode, n},
		{SectionRadio, n.Radio},
		{SectionStorage, n.Storage},
		{SectionRTC, n.RTC},
		{SectionSensor, n.Sensor},
		{SectionThermostat, n.Thermostat},
	}
	for _, sec := range sections {
		conn.Publish(conn.NewMessage(Topic(sec.name), sec.v, true))
	}
}

// Start publishes the sections. Retained messages outlive ctx.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	if ctx.Err() != nil {
		return
	}
	s.publishConfig(conn)
}
