package main

import (
	"github.com/robotalks/nfcreg/pkg/cli/sh"
	"github.com/robotalks/nfcreg/pkg/l1/env"

	_ "github.com/robotalks/nfcreg/pkg/cli/cmds/register"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
	env.SetupHostFlags()
}

func main() {
	sh.Main()
}
