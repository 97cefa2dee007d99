package main

import (
	"github.com/robotalks/tvc.go/pkg/cli/sh"
	env "github.com/robotalks/tvc.go/pkg/env/connector"

	_ "github.com/robotalks/tvc.go/pkg/cli/cmds/tvc"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
