package comm

import (
	"context"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/msgs"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Registrar is the node side of a Pipe. Commands from the ground
// station are posted to the loop as console.CommandMsg, the controller
// taking one replies through Command.Done.
type Registrar struct {
	pipe Pipe
}

// Init prepares the Registrar over conn.
func (r *Registrar) Init(conn PacketConn) {
	r.pipe.Conn = conn
	r.pipe.Handler = msgs.HandleTypedMsgFunc(r.handleTypedMsg)
}

func (r *Registrar) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if !typed.IsCommand() || typed.IsReply() {
		glog.V(2).Infof("registrar: ignore %s from ground station", msgs.TypeName(msg))
		return nil
	}
	fx.LoopCtlFrom(ctx).PostMessage(&console.CommandMsg{
		Command: &command{seq: typed.Sequence, msg: msg, pipe: &r.pipe},
	})
	return nil
}

// SendEvent implements console.Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.pipe.SendEvent(msg)
}

// Stats returns the packet counters of the connection.
func (r *Registrar) Stats() PipeStats {
	return r.pipe.Stats()
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.pipe)
}

// Serve runs the pipe until the connection closes. ctx must carry the
// loop, see fx.WithLoop.
func (r *Registrar) Serve(ctx context.Context) error {
	return r.pipe.Run(ctx)
}

type command struct {
	seq  uint32
	msg  fx.Message
	pipe *Pipe
}

func (c *command) Msg() fx.Message {
	return c.msg
}

func (c *command) Done(reply fx.Message) error {
	return c.pipe.SendCommand(reply, c.seq)
}

// RegistrarMux fans events out to multiple Registrars.
type RegistrarMux struct {
	Registrars []console.Registrar
}

// Add appends registrars.
func (r *RegistrarMux) Add(regs ...console.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// SendEvent implements console.Registrar. Every registrar is tried.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// AddToLoop implements LoopAdder.
func (r *RegistrarMux) AddToLoop(l *fx.Loop) {
	for _, reg := range r.Registrars {
		if adder, ok := reg.(fx.LoopAdder); ok {
			l.Add(adder)
		}
	}
}

// UnsupportedCommands replies commands no controller took with
// ErrUnsupportedCommand. It runs at the idle level.
type UnsupportedCommands struct{}

// Control implements Controller.
func (UnsupportedCommands) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmd, ok := mctx.CurrentMessage().(*console.CommandMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		glog.V(1).Infof("unsupported command %s", msgs.TypeName(cmd.Command.Msg()))
		if err := cmd.Command.Done(msgs.NewCommandErr(msgs.ErrUnsupportedCommand)); err != nil {
			glog.Warningf("reply unsupported command: %v", err)
		}
	}))
	return nil
}

// AddToLoop implements LoopAdder.
func (c UnsupportedCommands) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvIdle, c)
}
