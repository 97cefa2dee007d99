package comm

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console/msgs"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Pipe exchanges Typed messages over a PacketConn.
type Pipe struct {
	Conn    PacketConn
	Handler msgs.TypedMsgHandler

	sendLock sync.Mutex
	stats    PipeStats
}

// NewPipe creates a Pipe over conn.
func NewPipe(conn PacketConn) *Pipe {
	return &Pipe{Conn: conn}
}

// SendCommand sends a command, or a reply with the sequence of the
// command it answers.
func (p *Pipe) SendCommand(msg fx.Message, seq uint32) error {
	return p.send(msg, seq, TypeKindCommand)
}

// SendEvent sends an event.
func (p *Pipe) SendEvent(msg fx.Message) error {
	return p.send(msg, 0, TypeKindEvent)
}

// TypeKind is the expected kind of a sent message.
type TypeKind uint32

// Kinds
const (
	TypeKindCommand = TypeKind(msgs.TypeIDKindCommand)
	TypeKindEvent   = TypeKind(msgs.TypeIDKindEvent)
)

func (k TypeKind) String() string {
	if k == TypeKindEvent {
		return "event"
	}
	return "command"
}

func (p *Pipe) send(msg fx.Message, seq uint32, kind TypeKind) error {
	typed, err := msgs.TypedFrom(msg, seq)
	if err != nil {
		return err
	}
	if TypeKind(typed.Kind()) != kind {
		return fmt.Errorf("%s %x is not %s", msgs.TypeName(msg), typed.TypeId, kind)
	}
	pkt, err := typed.Encode()
	if err != nil {
		return err
	}
	p.sendLock.Lock()
	err = p.Conn.WritePacket(pkt)
	p.sendLock.Unlock()
	if err == nil {
		atomic.AddUint64(&p.stats.Sent, 1)
	}
	return err
}

// Stats returns the packet counters.
func (p *Pipe) Stats() PipeStats {
	return PipeStats{
		Received:  atomic.LoadUint64(&p.stats.Received),
		Sent:      atomic.LoadUint64(&p.stats.Sent),
		Malformed: atomic.LoadUint64(&p.stats.Malformed),
		Unknown:   atomic.LoadUint64(&p.stats.Unknown),
	}
}

// Run implements Runnable. Conn is closed when ctx is done.
func (p *Pipe) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, p, func() error {
		for {
			pkt, err := p.Conn.ReadPacket()
			if err != nil {
				return err
			}
			if err = p.receive(ctx, pkt); err != nil {
				return err
			}
		}
	})
}

func (p *Pipe) receive(ctx context.Context, pkt []byte) error {
	atomic.AddUint64(&p.stats.Received, 1)
	typed, err := msgs.DecodeTyped(pkt)
	if err != nil {
		atomic.AddUint64(&p.stats.Malformed, 1)
		glog.V(2).Infof("pipe: drop malformed packet: %v", err)
		return nil
	}
	msg, err := typed.Decode()
	if err != nil {
		atomic.AddUint64(&p.stats.Unknown, 1)
		if typed.IsCommand() && !typed.IsReply() {
			// the sender waits for a reply.
			return p.SendCommand(msgs.NewCommandErr(err), typed.Sequence)
		}
		glog.V(2).Infof("pipe: drop %x: %v", typed.TypeId, err)
		return nil
	}
	if p.Handler == nil {
		return nil
	}
	return p.Handler.HandleTypedMsg(ctx, msg, typed)
}

// Close implements io.Closer.
func (p *Pipe) Close() error {
	if closer, ok := p.Conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AddToLoop implements LoopAdder.
func (p *Pipe) AddToLoop(loop *fx.Loop) {
	switch c := p.Conn.(type) {
	case fx.LoopAdder:
		loop.Add(c)
	case fx.Runnable:
		loop.AddRunnable(c)
	}
	loop.AddRunnable(p)
}
