package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Load builds the effective node configuration: defaults, then the
// embedded board overlay, then the YAML file at path, then environment
// overrides. The result is validated. board and path may be empty.
func Load(path, board string) (Node, error) {
	n := Defaults()
	if board != "" {
		if err := n.ApplyBoard(board); err != nil {
			return Node{}, err
		}
	}
	if path != "" {
		if err := loadFromFile(&n, path); err != nil {
			return Node{}, fmt.Errorf("failed to load config from %s: %v", path, err)
		}
		// a board named in the file is applied underneath the file itself
		if board == "" && n.Board != "" {
			fileBoard := n.Board
			n = Defaults()
			if err := n.ApplyBoard(fileBoard); err != nil {
				return Node{}, err
			}
			if err := loadFromFile(&n, path); err != nil {
				return Node{}, err
			}
		}
	}
	applyEnvOverrides(&n, os.Getenv)

	if err := n.Validate(); err != nil {
		return Node{}, fmt.Errorf("configuration validation failed: %v", err)
	}
	return n, nil
}

// loadFromFile overlays a YAML file. Keys under defaults are merged over
// the ones already present instead of being decoded into the same map,
// which strict decoding would reject as duplicates.
func loadFromFile(n *Node, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	base := n.Defaults
	n.Defaults = nil
	err = yaml.UnmarshalStrict(data, n)
	file := n.Defaults
	n.Defaults = make(map[string]int32, len(base)+len(file))
	for k, v := range base {
		n.Defaults[k] = v
	}
	for k, v := range file {
		n.Defaults[k] = v
	}
	return err
}

// applyEnvOverrides applies SAKI_* environment variables.
func applyEnvOverrides(n *Node, getenv func(string) string) {
	if v := getenv("SAKI_NODE_ID"); v != "" {
		n.ID = v
	}
	if v := getenv("SAKI_RADIO_PORT"); v != "" {
		n.Radio.Port = v
	}
	if v := getenv("SAKI_CONTROLLER"); v != "" {
		n.Controller = v
	}
	if v := getenv("SAKI_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			n.Debug = b
		}
	}
	if v := getenv("SAKI_REPORT_INTERVAL"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			n.ReportIntervalS = s
		}
	}
}

// Marshal renders n as YAML, for dumping the effective configuration.
func Marshal(n Node) ([]byte, error) { return yaml.Marshal(n) }
