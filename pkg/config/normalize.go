package config

import (
	"strings"

	"github.com/robotalks/nfcreg/pkg/l0/device"
)

// Normalize trims strings and applies defaults. It is idempotent.
func Normalize(cfg *Config) {
	cfg.Device.Link = strings.TrimSpace(cfg.Device.Link)
	cfg.Device.Listen = strings.TrimSpace(cfg.Device.Listen)
	cfg.Device.Endpoint.Liveness = cfg.Device.Endpoint.Liveness.Normalize()
	if cfg.Device.Endpoint.ConfirmTimeout <= 0 {
		cfg.Device.Endpoint.ConfirmTimeout = device.DefaultConfirmTimeout
	}

	cfg.Host.Config = cfg.Host.Config.Normalize()
	cfg.Host.ID = strings.TrimSpace(cfg.Host.ID)
	cfg.Host.Link = strings.TrimSpace(cfg.Host.Link)
	cfg.Host.MQTTURL = strings.TrimSpace(cfg.Host.MQTTURL)
	allow := cfg.Host.Allow[:0]
	for _, uid := range cfg.Host.Allow {
		if uid = strings.TrimSpace(uid); uid != "" {
			allow = append(allow, uid)
		}
	}
	cfg.Host.Allow = allow
}
