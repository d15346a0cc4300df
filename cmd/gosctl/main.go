package main

import (
	"github.com/gos-rtos/gostool.go/pkg/cli/sh"
	"github.com/gos-rtos/gostool.go/pkg/env"
	"github.com/gos-rtos/gostool.go/pkg/sim"

	_ "github.com/gos-rtos/gostool.go/pkg/cli/cmds/all"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
	sim.Register()
}

func main() {
	sh.Main()
}
