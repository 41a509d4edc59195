package mqtt

import (
	"context"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/nfcreg/pkg/l1/host"
)

// Commander executes commands received from the broker.
type Commander interface {
	OpenRegister() error
	SetDebug(on bool) error
	FlushLog() error
}

// Status values published retained on <hostID>/status.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Bridge publishes host Events to <hostID>/event/<kind> and executes
// commands from <hostID>/cmd/{open,debug,flush-log}.
type Bridge struct {
	Queue     *Queue
	HostID    string
	Commander Commander

	subs []*Subscription
}

// NewBridge creates a Bridge connecting to brokerURL. The broker marks the
// host offline when the connection drops.
func NewBridge(brokerURL, hostID string, cmd Commander) (*Bridge, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+hostID+"/status", []byte(StatusOffline), 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("nfcreg:" + hostID)
	}
	b := &Bridge{Queue: NewQueue(opts, topicPrefix), HostID: hostID, Commander: cmd}
	b.Queue.OnConnect = func(*Queue) { b.publishStatus(StatusOnline) }
	return b, nil
}

// Topic returns the topic for suffix under the host.
func (b *Bridge) Topic(suffix ...string) string {
	return b.HostID + "/" + strings.Join(suffix, "/")
}

// HandleEvent implements host.EventSink.
func (b *Bridge) HandleEvent(e host.Event) {
	payload, err := EncodeEvent(e)
	if err != nil {
		glog.Errorf("encode %s: %v", e.Kind, err)
		return
	}
	b.Queue.Pub(b.Topic("event", string(e.Kind)), payload)
}

// Subscribe subscribes the command topics.
func (b *Bridge) Subscribe() {
	b.subs = append(b.subs,
		b.Queue.Sub(b.Topic("cmd", "open"), b.onCommand(func([]byte) error {
			return b.Commander.OpenRegister()
		})),
		b.Queue.Sub(b.Topic("cmd", "debug"), b.onCommand(func(payload []byte) error {
			return b.Commander.SetDebug(ParseSwitch(payload))
		})),
		b.Queue.Sub(b.Topic("cmd", "flush-log"), b.onCommand(func([]byte) error {
			return b.Commander.FlushLog()
		})),
	)
}

func (b *Bridge) onCommand(fn func([]byte) error) Handler {
	return func(topic string, payload []byte) {
		if err := fn(payload); err != nil {
			glog.Warningf("command %s: %v", topic, err)
			return
		}
		glog.V(1).Infof("command %s done", topic)
	}
}

// ParseSwitch reads an on/off payload. Anything but on, 1 or true is off.
func ParseSwitch(payload []byte) bool {
	switch strings.ToLower(strings.TrimSpace(string(payload))) {
	case "on", "1", "true":
		return true
	}
	return false
}

func (b *Bridge) publishStatus(status string) paho.Token {
	return b.Queue.PubWith(b.Topic("status"), []byte(status), 1, true)
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	b.Subscribe()
	if token := b.Queue.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	<-ctx.Done()
	for _, sub := range b.subs {
		sub.Close()
	}
	b.subs = nil
	b.publishStatus(StatusOffline).Wait()
	b.Queue.Close()
	return ctx.Err()
}
