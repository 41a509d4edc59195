package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sync"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/nfcreg/pkg/config"
	fx "github.com/robotalks/nfcreg/pkg/framework"
	"github.com/robotalks/nfcreg/pkg/l1/comm/mqtt"
	"github.com/robotalks/nfcreg/pkg/l1/env"
	"github.com/robotalks/nfcreg/pkg/l1/host"
	"github.com/robotalks/nfcreg/pkg/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *config.Config
	Allow  *host.AllowList

	lock    sync.Mutex
	session *Session
}

// Session is a running host controller on an open link.
type Session struct {
	Ctx    context.Context
	Cancel func()
	URL    string
	Host   *host.Host
	Bridge *mqtt.Bridge

	done chan struct{}
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&StatusCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *config.Config) (*Shell, error) {
	allow, err := host.NewAllowList(conf.Host.Allow...)
	if err != nil {
		return nil, err
	}
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
		Allow:  allow,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Session returns the current session or nil.
func (s *Shell) Session() *Session {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.session
}

// MustBeConnected wraps command func requires an open link.
func MustBeConnected(fn func(c *ishell.Context, h *host.Host)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		sess := ShellFrom(c).Session()
		if sess == nil {
			c.Err(fmt.Errorf("no link, use connect first"))
			return
		}
		fn(c, sess.Host)
	}
}

// Print prints v as JSON or with its String form.
func Print(c *ishell.Context, v fmt.Stringer) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(v.String())
}

// Done reports the result of a command.
func Done(c *ishell.Context, err error) {
	switch {
	case err != nil:
		c.Err(err)
	case ShellFrom(c).OutputJSON:
		c.Println(`{"ok":true}`)
	default:
		c.Println("OK")
	}
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// HandleEvent implements host.EventSink.
func (s *Shell) HandleEvent(e host.Event) {
	if s.Interactive {
		s.Shell.Println(e.String())
	}
}

// Connect opens the link and starts a host controller on it. A previous
// session is stopped first.
func (s *Shell) Connect(linkURL string) error {
	link, err := transport.Open(linkURL)
	if err != nil {
		return err
	}
	sess := &Session{URL: linkURL, done: make(chan struct{})}
	sess.Ctx, sess.Cancel = context.WithCancel(context.Background())
	sess.Host = host.NewWithLink(s.Config.Host.Config, link, s.Allow)
	sinks := host.EventSinks{s}
	runner := fx.NewRunnerWith(sess.Ctx).WithFailFast(true)
	if brokerURL := s.Config.Host.MQTTURL; brokerURL != "" {
		if sess.Bridge, err = mqtt.NewBridge(brokerURL, s.Config.Host.ID, sess.Host); err != nil {
			link.Close()
			sess.Cancel()
			return err
		}
		sinks = append(sinks, sess.Bridge)
		runner.Go(fx.NamedRun("mqtt", sess.Bridge))
	}
	sess.Host.Sink = sinks
	runner.Go(fx.NamedRun("host", fx.RunFunc(func(ctx context.Context) error {
		return fx.RunWithContextCloser(ctx, link, func() error {
			return sess.Host.Run(ctx)
		})
	})))

	s.Disconnect()
	s.lock.Lock()
	s.session = sess
	s.lock.Unlock()
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", linkURL))

	go func() {
		defer close(sess.done)
		if err := runner.Wait(); err != nil {
			glog.Warningf("session %s: %v", linkURL, err)
		}
		if s.detach(sess) && s.Interactive {
			s.Shell.Printf("link %s closed\n", linkURL)
		}
	}()
	return nil
}

// detach forgets sess if it is still the current session.
func (s *Shell) detach(sess *Session) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.session != sess {
		return false
	}
	s.session = nil
	s.Shell.SetPrompt(unconnectedPrompt)
	return true
}

// Disconnect stops the current session and waits for it to finish.
func (s *Shell) Disconnect() {
	sess := s.Session()
	if sess == nil {
		return
	}
	s.detach(sess)
	sess.Cancel()
	<-sess.done
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	defer s.Disconnect()
	if link := s.Config.Host.Link; s.AutoConnect && link != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", link)
		}
		if err := s.Connect(link); err != nil {
			glog.Fatalf("connect %q failed: %v", link, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Fatalln("command expected")
}

var (
	// StatusCmd shows the device status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context, h *host.Host) {
			Print(c, h.Status())
		}),
	}

	// ConnectCmd opens a link, or asks the device to connect again when
	// no URL is given and a link is open.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[LINK-URL]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				if sess := s.Session(); sess != nil {
					Done(c, sess.Host.Connect())
					return
				}
				if s.Config.Host.Link == "" {
					c.Err(fmt.Errorf("LINK-URL required"))
					return
				}
				Done(c, s.Connect(s.Config.Host.Link))
				return
			}
			Done(c, s.Connect(c.Args[0]))
		},
	}

	// DisconnectCmd closes the link.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := env.NewConfig().Load()
	if err != nil {
		glog.Fatalln(err)
	}
	s, err := New(conf)
	if err != nil {
		glog.Fatalln(err)
	}
	s.WithAutoConnect(true).Run(flag.Args()...)
}
