// Package all registers all shell commands.
package all

import (
	_ "github.com/gos-rtos/gostool.go/pkg/cli/cmds/bld"
	_ "github.com/gos-rtos/gostool.go/pkg/cli/cmds/sysmon"
)
