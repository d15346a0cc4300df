// Package sh provides the interactive shell of gosctl. Command sets
// register themselves with AddCmds from their init funcs.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/gos-rtos/gostool.go/pkg/device"
	"github.com/gos-rtos/gostool.go/pkg/env"
	"github.com/gos-rtos/gostool.go/pkg/gcp/transport"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoOpen    bool

	Shell  *ishell.Shell
	Config *env.Config
	Device *device.Device
	Port   string
}

const (
	shellKey     = "$shell"
	closedPrompt = "[closed] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&OpenCmd,
		&CloseCmd,
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
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(closedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeOpen wraps command func requires an open device.
func MustBeOpen(fn func(c *ishell.Context, dev *device.Device)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		dev := ShellFrom(c).Device
		if dev == nil {
			c.Err(fmt.Errorf("no device open"))
			return
		}
		fn(c, dev)
	}
}

// Print prints v as JSON in JSON mode, otherwise the text.
func Print(c *ishell.Context, v interface{}, text string) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// PrintResult prints OK or the error of a device operation.
func PrintResult(c *ishell.Context, err error) {
	if err != nil {
		c.Err(err)
		return
	}
	Print(c, map[string]bool{"ok": true}, "OK")
}

// WithAutoOpen sets AutoOpen.
func (s *Shell) WithAutoOpen(en bool) *Shell {
	s.AutoOpen = en
	return s
}

// Open opens the device on port, closing the current one.
func (s *Shell) Open(port string) error {
	conf := *s.Config
	conf.Port = port
	dev, err := conf.OpenDevice()
	if err != nil {
		return err
	}
	s.Close()
	s.Device, s.Port = dev, port
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", port))
	return nil
}

// Close closes the current device.
func (s *Shell) Close() {
	if s.Device != nil {
		if err := s.Device.Close(); err != nil {
			glog.Warningf("close %s: %v", s.Port, err)
		}
		s.Device, s.Port = nil, ""
		s.Shell.SetPrompt(closedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoOpen && s.Config.Port != "" {
		if s.Interactive {
			s.Shell.Printf("Opening %s ...\n", s.Config.Port)
		}
		if err := s.Open(s.Config.Port); err != nil {
			log.Fatalf("open %q failed: %v", s.Config.Port, err)
		}
	}
	defer s.Close()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"lsp"},
		Help:    "list serial ports",
		Func: func(c *ishell.Context) {
			ports, err := transport.ListPorts()
			if err != nil {
				c.Err(err)
				return
			}
			if ports == nil {
				ports = []string{}
			}
			if ShellFrom(c).OutputJSON {
				Print(c, ports, "")
				return
			}
			if len(ports) == 0 {
				c.Println("No ports found")
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}

	// OpenCmd opens a device.
	OpenCmd = ishell.Cmd{
		Name:    "open",
		Aliases: []string{"o"},
		Help:    "PORT",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			port := s.Config.Port
			if len(c.Args) > 0 {
				port = c.Args[0]
			}
			if port == "" {
				c.Err(fmt.Errorf("PORT required"))
				return
			}
			if err := s.Open(port); err != nil {
				c.Err(err)
			}
		},
	}

	// CloseCmd closes the current device.
	CloseCmd = ishell.Cmd{
		Name:    "close",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Close()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	defer glog.Flush()
	New(env.NewConfig()).WithAutoOpen(true).Run(flag.Args()...)
}
