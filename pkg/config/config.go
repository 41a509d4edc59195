// Package config loads nfcreg configuration files. Files ending in .toml
// are read as TOML, everything else as YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/nfcreg/pkg/l0/device"
	"github.com/robotalks/nfcreg/pkg/l1/host"
)

// Config is the root of a configuration file.
type Config struct {
	Device DeviceConfig `yaml:"device" toml:"device"`
	Host   HostConfig   `yaml:"host" toml:"host"`
}

// DeviceConfig configures the register endpoint runtime.
type DeviceConfig struct {
	// Link dials the host side, e.g. serial:///dev/ttyUSB0.
	Link string `yaml:"link" toml:"link"`
	// Listen waits for the host to attach, e.g. tcp://:7070.
	Listen   string        `yaml:"listen" toml:"listen"`
	Endpoint device.Config `yaml:"endpoint" toml:"endpoint"`
}

// HostConfig configures the host controller.
type HostConfig struct {
	host.Config `yaml:",inline"`

	ID    string   `yaml:"id" toml:"id"`
	Link  string   `yaml:"link" toml:"link"`
	Allow []string `yaml:"allow" toml:"allow"`
	// MQTTURL enables the MQTT bridge, e.g. mqtt://broker:1883/nfcreg/.
	MQTTURL string `yaml:"mqtt_url" toml:"mqtt_url"`
}

// Load reads, normalizes and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = decodeTOML(data, cfg)
	} else {
		err = decodeYAML(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeTOML(data []byte, cfg *Config) error {
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys: %v", undecoded)
	}
	return nil
}
