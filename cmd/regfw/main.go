package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/nfcreg/pkg/config"
	fx "github.com/robotalks/nfcreg/pkg/framework"
	"github.com/robotalks/nfcreg/pkg/l0/comm"
	"github.com/robotalks/nfcreg/pkg/l0/device"
	"github.com/robotalks/nfcreg/pkg/l0/hw/sim"
	"github.com/robotalks/nfcreg/pkg/l1/env"
	"github.com/robotalks/nfcreg/pkg/l1/host"
	"github.com/robotalks/nfcreg/pkg/transport"
)

var (
	pulse     = 100 * time.Millisecond
	autoClose = 5 * time.Second
)

func init() {
	env.SetupFlags()
	env.SetupDeviceFlags()
	flag.DurationVar(&pulse, "pulse", pulse, "Register open pulse length.")
	flag.DurationVar(&autoClose, "auto-close", autoClose, "Close the simulated register after it was opened, 0 disables.")
}

type simHardware struct {
	tags     *sim.Tags
	register *sim.Register
	buzzer   *sim.Buzzer
}

func (h *simHardware) Hardware() device.Hardware {
	return device.Hardware{Tags: h.tags, Register: h.register, Buzzer: h.buzzer}
}

// Run reads simulation commands from stdin:
//
//	tag <uid>   present a tag
//	open        open the register by hand
//	close       close the register
func (h *simHardware) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				<-ctx.Done()
				return ctx.Err()
			}
			if err := h.exec(strings.Fields(line)); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		}
	}
}

func (h *simHardware) exec(args []string) error {
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "tag":
		if len(args) != 2 {
			return fmt.Errorf("usage: tag <uid>")
		}
		uid, err := host.ParseUID(args[1])
		if err != nil {
			return err
		}
		h.tags.Present(uid)
	case "open":
		h.register.Set(true)
	case "close":
		h.register.Set(false)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}

type linkReader struct {
	io.Reader
	cancel func()
}

func (r *linkReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err != nil {
		r.cancel()
	}
	return n, err
}

// runEndpoint runs a fresh endpoint on link until the link fails.
func runEndpoint(ctx context.Context, conf device.Config, hw device.Hardware, link io.ReadWriter) error {
	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recv := comm.NewReceiver(&linkReader{Reader: link, cancel: cancel})
	ep := device.New(conf, hw, comm.NewSender(link)).Attach(recv)
	err := fx.NewLoop().Add(ep).Run(loopCtx)
	glog.Infof("endpoint stopped: %s", ep)
	if ctx.Err() == nil {
		return comm.ErrClosed
	}
	return err
}

func endpointRunner(cfg *config.Config, hw device.Hardware) (fx.Runnable, error) {
	if listen := cfg.Device.Listen; listen != "" {
		return transport.NewListener(listen, func(ctx context.Context, link io.ReadWriteCloser) error {
			return runEndpoint(ctx, cfg.Device.Endpoint, hw, link)
		})
	}
	if cfg.Device.Link == "" {
		return nil, fmt.Errorf("-link or -listen required")
	}
	link, err := transport.Open(cfg.Device.Link)
	if err != nil {
		return nil, err
	}
	return fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, link, func() error {
			return runEndpoint(ctx, cfg.Device.Endpoint, hw, link)
		})
	}), nil
}

func main() {
	flag.Parse()
	cfg, err := env.NewConfig().Load()
	if err != nil {
		glog.Fatalln(err)
	}
	hw := &simHardware{tags: &sim.Tags{}, register: sim.NewRegister(), buzzer: &sim.Buzzer{}}
	hw.register.Pulse = pulse
	hw.register.AutoClose = autoClose

	ep, err := endpointRunner(cfg, hw.Hardware())
	if err != nil {
		glog.Fatalln(err)
	}
	runner := fx.NewRunner().WithFailFast(true).HandleSignals()
	runner.Go(fx.NamedRun("endpoint", ep), fx.NamedRun("stdin", hw))
	if err := runner.Wait(); err != nil {
		glog.Fatalln(err)
	}
}
