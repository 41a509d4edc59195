package transport

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// PortOptions describes the serial line settings.
type PortOptions struct {
	BaudRate int    `yaml:"baud_rate" toml:"baud_rate"`
	DataBits int    `yaml:"data_bits" toml:"data_bits"`
	StopBits int    `yaml:"stop_bits" toml:"stop_bits"`
	Parity   string `yaml:"parity" toml:"parity"`
}

// DefaultBaudRate matches the firmware's serial setup.
const DefaultBaudRate = 115200

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = DefaultBaudRate
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}
	switch parity := strings.TrimSpace(strings.ToUpper(opts.Parity)); parity {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into a serial.Mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// PortOptionsFromQuery reads baud, data, stop and parity query values,
// e.g. serial:///dev/ttyUSB0?baud=9600&parity=E.
func PortOptionsFromQuery(q url.Values) (opts PortOptions, err error) {
	ints := []struct {
		key string
		dst *int
	}{
		{"baud", &opts.BaudRate},
		{"data", &opts.DataBits},
		{"stop", &opts.StopBits},
	}
	for _, item := range ints {
		if val := q.Get(item.key); val != "" {
			if *item.dst, err = strconv.Atoi(val); err != nil {
				return opts, fmt.Errorf("invalid %s %q: %w", item.key, val, err)
			}
		}
	}
	opts.Parity = q.Get("parity")
	return opts.Normalize()
}
