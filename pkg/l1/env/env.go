// Package env provides the common command line and environment setup of
// the nfcreg programs.
package env

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/robotalks/nfcreg/pkg/config"
)

// Config holds settings given on the command line or in the environment.
// They override the configuration file.
type Config struct {
	ConfigFile string
	Link       string
	Listen     string
	HostID     string
	MQTTURL    string
	Allow      string
}

var defaultConfig Config

func init() {
	defaultConfig.ConfigFile = os.Getenv("NFCREG_CONFIG")
	defaultConfig.Link = os.Getenv("NFCREG_LINK")
	defaultConfig.MQTTURL = os.Getenv("NFCREG_MQTT_URL")
	defaultConfig.HostID = os.Getenv("NFCREG_HOST_ID")
}

// SetupFlags sets up command line flags common to the programs.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "Config file (.yaml or .toml)")
	flag.StringVar(&defaultConfig.Link, "link", defaultConfig.Link, "Link URL to dial, e.g. serial:///dev/ttyUSB0 or tcp://host:7070")
}

// SetupDeviceFlags sets up flags only meaningful to the device runtime.
func SetupDeviceFlags() {
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Link URL to listen on, e.g. tcp://:7070")
}

// SetupHostFlags sets up flags only meaningful to the host controller.
func SetupHostFlags() {
	flag.StringVar(&defaultConfig.HostID, "id", defaultConfig.HostID, "Host ID used in MQTT topics")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL, e.g. mqtt://host:1883/nfcreg/")
	flag.StringVar(&defaultConfig.Allow, "allow", defaultConfig.Allow, "Comma separated tag UIDs to grant")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load reads the config file if any and applies the overrides.
func (c *Config) Load() (*config.Config, error) {
	cfg := &config.Config{}
	if c.ConfigFile != "" {
		loaded, err := config.Load(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.Link != "" {
		cfg.Device.Link, cfg.Host.Link = c.Link, c.Link
		if c.Listen == "" {
			cfg.Device.Listen = ""
		}
	}
	if c.Listen != "" {
		cfg.Device.Listen = c.Listen
		if c.Link == "" {
			cfg.Device.Link = ""
		}
	}
	if c.MQTTURL != "" {
		cfg.Host.MQTTURL = c.MQTTURL
	}
	if c.HostID != "" {
		cfg.Host.ID = c.HostID
	}
	if cfg.Host.ID == "" {
		cfg.Host.ID = MachineID()
	}
	for _, uid := range strings.Split(c.Allow, ",") {
		cfg.Host.Allow = append(cfg.Host.Allow, uid)
	}
	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}
