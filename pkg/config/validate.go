package config

import (
	"fmt"
	"net/url"

	"github.com/robotalks/nfcreg/pkg/l1/host"
	"github.com/robotalks/nfcreg/pkg/transport"
)

// Validate checks a normalized configuration. It does not modify cfg.
func Validate(cfg *Config) error {
	dev := &cfg.Device
	if dev.Link != "" && dev.Listen != "" {
		return fmt.Errorf("device: link and listen are exclusive")
	}
	if dev.Link != "" {
		if _, err := transport.ParseLink(dev.Link, false); err != nil {
			return fmt.Errorf("device.link: %w", err)
		}
	}
	if dev.Listen != "" {
		if _, err := transport.ParseLink(dev.Listen, true); err != nil {
			return fmt.Errorf("device.listen: %w", err)
		}
	}
	lv := dev.Endpoint.Liveness
	if lv.ActiveHeartbeat > lv.IdleHeartbeat {
		return fmt.Errorf("device.endpoint.liveness: active_heartbeat %s exceeds idle_heartbeat %s",
			lv.ActiveHeartbeat, lv.IdleHeartbeat)
	}

	h := &cfg.Host
	if h.Link != "" {
		if _, err := transport.ParseLink(h.Link, false); err != nil {
			return fmt.Errorf("host.link: %w", err)
		}
	}
	for i, uid := range h.Allow {
		if _, err := host.ParseUID(uid); err != nil {
			return fmt.Errorf("host.allow[%d]: %w", i, err)
		}
	}
	if h.MQTTURL != "" {
		u, err := url.Parse(h.MQTTURL)
		if err != nil {
			return fmt.Errorf("host.mqtt_url: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("host.mqtt_url %q: missing broker host", h.MQTTURL)
		}
	}
	// An idle device is only heard from every idle_heartbeat.
	if h.DeviceTimeout <= lv.IdleHeartbeat {
		return fmt.Errorf("host.device_timeout %s must exceed idle_heartbeat %s",
			h.DeviceTimeout, lv.IdleHeartbeat)
	}
	return nil
}
