// Package register provides shell commands operating the register endpoint.
package register

import (
	"fmt"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/nfcreg/pkg/cli/sh"
	"github.com/robotalks/nfcreg/pkg/l1/host"
)

type uidList []string

func (l uidList) String() string {
	if len(l) == 0 {
		return "no tags granted"
	}
	return strings.Join(l, "\n")
}

var (
	// DebugCmd turns device log mirroring on or off.
	DebugCmd = ishell.Cmd{
		Name: "debug",
		Help: "on|off",
		Func: sh.MustBeConnected(func(c *ishell.Context, h *host.Host) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("on or off required"))
				return
			}
			switch c.Args[0] {
			case "on":
				sh.Done(c, h.SetDebug(true))
			case "off":
				sh.Done(c, h.SetDebug(false))
			default:
				c.Err(fmt.Errorf("Invalid switch %q: on or off expected", c.Args[0]))
			}
		}),
	}

	// OpenCmd opens the register without a tag.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context, h *host.Host) {
			sh.Done(c, h.OpenRegister())
		}),
	}

	// FlushCmd asks the device to send its buffered log.
	FlushCmd = ishell.Cmd{
		Name:    "flush",
		Aliases: []string{"f"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context, h *host.Host) {
			sh.Done(c, h.FlushLog())
		}),
	}

	// AllowCmd grants tags.
	AllowCmd = ishell.Cmd{
		Name: "allow",
		Help: "UID...",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("UID required"))
				return
			}
			allow := sh.ShellFrom(c).Allow
			for _, uid := range c.Args {
				if err := allow.Add(uid); err != nil {
					c.Err(err)
					return
				}
			}
			sh.Done(c, nil)
		},
	}

	// DenyCmd revokes tags.
	DenyCmd = ishell.Cmd{
		Name: "deny",
		Help: "UID...",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("UID required"))
				return
			}
			allow := sh.ShellFrom(c).Allow
			for _, uid := range c.Args {
				removed, err := allow.Remove(uid)
				if err != nil {
					c.Err(err)
					return
				}
				if !removed {
					c.Err(fmt.Errorf("%s was not granted", uid))
					return
				}
			}
			sh.Done(c, nil)
		},
	}

	// ListCmd lists granted tags.
	ListCmd = ishell.Cmd{
		Name:    "list",
		Aliases: []string{"l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			sh.Print(c, uidList(sh.ShellFrom(c).Allow.List()))
		},
	}
)

func init() {
	sh.AddCmds(
		&DebugCmd,
		&OpenCmd,
		&FlushCmd,
		&AllowCmd,
		&DenyCmd,
		&ListCmd,
	)
}
