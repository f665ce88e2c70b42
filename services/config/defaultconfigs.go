package config

// -----------------------------------------------------------------------------
// Embedded board configuration
//
// Key: board name (Node.Board or --board)
// Val: raw JSON overlay applied on top of Defaults()
// -----------------------------------------------------------------------------

// Pico wired to a TinyRTC (DS1307 + AT24C32), an XBee on UART0, a DS18B20
// on GP15 and two relays.
const cfgPicoTinyRTC = `{
  "inputs": 1,
  "outputs": 2,
  "remote": true,
  "radio": {"port": "uart0", "baud": 9600, "apiMode": 2, "tx": 0, "rx": 1},
  "i2c": {"bus": 0, "sda": 4, "scl": 5, "frequencyHz": 100000},
  "storage": {"kind": "eeprom", "address": 80, "offset": 0},
  "rtc": {"enabled": true},
  "sensor": {"enabled": true, "pin": 15, "line": 0, "precision": 2, "pollIntervalMs": 1995},
  "thermostat": {"enabled": true, "heatLine": 0, "coolLine": 1, "timedLine": -1, "heatPin": 12, "coolPin": 11},
  "defaults": {"lo": 1800, "hi": 2600, "hy": 50, "ri": 60}
}`

// Raspberry Pi with the TinyRTC on /dev/i2c-1 and a USB XBee.
const cfgPiTinyRTC = `{
  "inputs": 1,
  "outputs": 0,
  "radio": {"port": "/dev/ttyUSB0", "baud": 9600, "apiMode": 2},
  "i2c": {"bus": 1},
  "storage": {"kind": "eeprom", "address": 80, "offset": 0},
  "rtc": {"enabled": true}
}`

var embeddedConfigs = map[string][]byte{
	"pico-tinyrtc": []byte(cfgPicoTinyRTC),
	"pi-tinyrtc":   []byte(cfgPiTinyRTC),
}
