// Package sh is the ground station shell.
package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/msgs"
	env "github.com/robotalks/tvc.go/pkg/env/connector"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Conn   *Session
}

// Session is a running loop over a node connection.
type Session struct {
	Ref    console.NodeRef
	Loop   *fx.Loop
	Conn   console.NodeConn
	Cancel func()

	lock    sync.Mutex
	watcher func(fx.Message)
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly   bool
	outputJSON bool
	timeout    = 2 * time.Second

	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Command timeout.")
}

// AddCmds is used by command providers during init.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatInfo prints NodeInfo for display.
func FormatInfo(info console.NodeInfo) string {
	s := info.Ref.Name()
	if info.Meta.Description != "" {
		s += ": " + info.Meta.Description
	}
	return s
}

// Print prints a message as JSON or text.
func (s *Shell) Print(c *ishell.Context, msg fx.Message) error {
	ser, ok := msg.(msgs.SerializableMessage)
	if !ok {
		return msgs.ErrNotSerializable
	}
	if s.OutputJSON {
		out, err := json.Marshal(ser.Serializable())
		if err != nil {
			return err
		}
		c.Println(string(out))
		return nil
	}
	if _, ok := msg.(*msgs.CommandOK); ok {
		c.Println("OK")
		return nil
	}
	c.Printf("%s %s\n", msgs.TypeName(msg), ser.Serializable().String())
	return nil
}

// Request runs a command and waits for the reply.
func (s *Shell) Request(msg fx.Message) (fx.Message, error) {
	if s.Conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	f := s.Conn.Conn.DoCommand(msg)
	select {
	case res := <-f.ResultChan():
		return res.Msg, res.Err
	case <-time.After(s.Timeout):
		return nil, fmt.Errorf("command timeout")
	}
}

// DoCommand runs a command and prints the reply.
func DoCommand(c *ishell.Context, msg fx.Message) error {
	s := ShellFrom(c)
	reply, err := s.Request(msg)
	if err == nil {
		err = s.Print(c, reply)
	}
	if err != nil {
		c.Err(err)
	}
	return err
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Discover discovers nodes.
func (s *Shell) Discover(filter func(console.NodeInfo) bool) ([]console.NodeInfo, error) {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return nil, err
	}
	nodes, err := connector.Discover(context.TODO())
	if err != nil || filter == nil {
		return nodes, err
	}
	found := make([]console.NodeInfo, 0, len(nodes))
	for _, info := range nodes {
		if filter(info) {
			found = append(found, info)
		}
	}
	return found, nil
}

// Select discovers nodes and asks for a choice.
func (s *Shell) Select(filter func(console.NodeInfo) bool) (*console.NodeInfo, error) {
	nodes, err := s.Discover(filter)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	var index int
	if len(nodes) > 1 {
		if !s.Interactive {
			return nil, fmt.Errorf("%d nodes discovered in non-interactive mode", len(nodes))
		}
		items := make([]string, len(nodes))
		for n, info := range nodes {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}
	return &nodes[index], nil
}

// Connect connects the node with ref.
func (s *Shell) Connect(ref console.NodeRef) error {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	conn, err := connector.Connect(ctx, ref)
	if err != nil {
		cancel()
		return err
	}
	sess := &Session{Ref: ref, Conn: conn, Loop: fx.NewLoop()}
	sess.Cancel = func() {
		cancel()
		if closer, ok := conn.(io.Closer); ok {
			closer.Close()
		}
	}
	if adder, ok := conn.(fx.LoopAdder); ok {
		sess.Loop.Add(adder)
	}
	sess.Loop.AddController(fx.PrLvNormal, fx.ControlFunc(sess.dispatchEvents))
	s.Disconnect()
	s.Conn = sess
	go sess.Loop.Run(ctx)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", ref.Name()))
	return nil
}

// Disconnect disconnects current node.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Watch installs fn to receive events, nil stops watching.
func (sess *Session) Watch(fn func(fx.Message)) {
	sess.lock.Lock()
	sess.watcher = fn
	sess.lock.Unlock()
}

func (sess *Session) dispatchEvents(cc fx.ControlContext) error {
	sess.lock.Lock()
	fn := sess.watcher
	sess.lock.Unlock()
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		if _, ok := mctx.CurrentMessage().(*msgs.StatusEvent); ok {
			mctx.MessageTaken()
			if fn != nil {
				fn(mctx.CurrentMessage())
			}
		}
	}))
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Ref.IsValid() {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Ref.Name())
		}
		if err := s.Connect(s.Config.Ref); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Ref.Name(), err)
		}
	}

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
	// DiscoverCmd discovers nodes.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "list registered nodes",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			nodes, err := s.Discover(nil)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if nodes == nil {
					nodes = []console.NodeInfo{}
				}
				out, err := json.Marshal(nodes)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(nodes) == 0 {
				c.Println("No nodes found")
				return
			}
			for _, info := range nodes {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a node.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[TYPE [ID] | TYPE/ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var ref console.NodeRef
			switch {
			case len(c.Args) >= 2:
				ref.Type, ref.ID = c.Args[0], c.Args[1]
			case len(c.Args) == 1 && strings.Contains(c.Args[0], "/"):
				parsed, err := console.ParseNodeRef(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				ref = parsed
			default:
				var filter func(console.NodeInfo) bool
				if len(c.Args) == 1 {
					filter = func(info console.NodeInfo) bool {
						return info.Ref.Type == c.Args[0]
					}
				}
				info, err := s.Select(filter)
				if err != nil {
					c.Err(err)
					return
				}
				if info == nil {
					c.Err(fmt.Errorf("no node discovered"))
					return
				}
				ref = info.Ref
			}
			if err := s.Connect(ref); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current node.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "close the connection",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
