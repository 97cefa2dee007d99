// Package tvc provides shell commands for TVC nodes.
package tvc

import (
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tvc.go/pkg/cli/sh"
	"github.com/robotalks/tvc.go/pkg/console/msgs"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

const defaultWatch = 10 * time.Second

func simple(name string, aliases []string, help string, newMsg func() fx.Message) *ishell.Cmd {
	return &ishell.Cmd{
		Name:    name,
		Aliases: aliases,
		Help:    help,
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			sh.DoCommand(c, newMsg())
		}),
	}
}

var (
	// StatusCmd queries the supervisor status.
	StatusCmd = simple("status", []string{"st"}, "supervisor status", func() fx.Message {
		return &msgs.StatusQuery{}
	})
	// PayloadsCmd queries the latest payloads.
	PayloadsCmd = simple("payloads", []string{"p"}, "latest sensor, feedback and command sets", func() fx.Message {
		return &msgs.PayloadsQuery{}
	})
	// BootCmd schedules boot.
	BootCmd = simple("boot", nil, "power up the companion", func() fx.Message {
		return &msgs.Boot{}
	})
	// ShutdownCmd schedules shutdown.
	ShutdownCmd = simple("shutdown", nil, "shut the companion down", func() fx.Message {
		return &msgs.Shutdown{}
	})
	// AbortCmd schedules abort.
	AbortCmd = simple("abort", nil, "abort the flight", func() fx.Message {
		return &msgs.Abort{}
	})
	// RecoverCmd schedules recovery from Error.
	RecoverCmd = simple("recover", nil, "leave the error state", func() fx.Message {
		return &msgs.Recover{}
	})
	// RestartCmd restarts the flight log.
	RestartCmd = simple("restart", nil, "restart the flight log", func() fx.Message {
		return &msgs.RecorderRestart{}
	})

	// MoveCmd moves the actuators.
	MoveCmd = ishell.Cmd{
		Name:    "move",
		Aliases: []string{"mv"},
		Help:    "TARGET",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("TARGET required"))
				return
			}
			val, err := strconv.ParseInt(c.Args[0], 0, 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid TARGET: %v", err))
				return
			}
			sh.DoCommand(c, &msgs.Move{Target: int32(val)})
		}),
	}

	// DownloadCmd reads flight log samples.
	DownloadCmd = ishell.Cmd{
		Name:    "download",
		Aliases: []string{"dl"},
		Help:    "[LOCATION [COUNT]]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			var msg msgs.Download
			fields := []struct {
				name string
				dst  *uint32
			}{
				{"LOCATION", &msg.Location},
				{"COUNT", &msg.Count},
			}
			for n, arg := range c.Args {
				if n >= len(fields) {
					break
				}
				val, err := strconv.ParseUint(arg, 0, 32)
				if err != nil {
					c.Err(fmt.Errorf("invalid %s: %v", fields[n].name, err))
					return
				}
				*fields[n].dst = uint32(val)
			}
			sh.DoCommand(c, &msg)
		}),
	}

	// WatchCmd prints status events for a while.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[DURATION]",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			dur := defaultWatch
			if len(c.Args) > 0 {
				val, err := time.ParseDuration(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("invalid DURATION: %v", err))
					return
				}
				dur = val
			}
			s := sh.ShellFrom(c)
			sess := s.Conn
			sess.Watch(func(msg fx.Message) {
				s.Print(c, msg)
			})
			time.Sleep(dur)
			sess.Watch(nil)
		}),
	}
)

func init() {
	sh.AddCmds(
		StatusCmd,
		PayloadsCmd,
		BootCmd,
		ShutdownCmd,
		AbortCmd,
		RecoverCmd,
		RestartCmd,
		&MoveCmd,
		&DownloadCmd,
		&WatchCmd,
	)
}
