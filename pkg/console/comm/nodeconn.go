package comm

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/msgs"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// DefaultCommandExpiration is how long a command waits for its reply.
const DefaultCommandExpiration = 1 * time.Second

// NodeConn is the ground station side of a Pipe. Commands are matched
// to replies by sequence, events are posted to the loop.
type NodeConn struct {
	Expiration time.Duration

	pipe    Pipe
	seq     uint32
	pending list.List // of *commandFuture, ordered by expiration
	bySeq   map[uint32]*commandFuture
	lock    sync.Mutex
}

// Init prepares the NodeConn over conn.
func (c *NodeConn) Init(conn PacketConn) {
	c.Expiration = DefaultCommandExpiration
	c.pipe.Conn = conn
	c.pipe.Handler = msgs.HandleTypedMsgFunc(c.handleTypedMsg)
	c.bySeq = make(map[uint32]*commandFuture)
}

// DoCommand implements console.NodeConn.
func (c *NodeConn) DoCommand(msg fx.Message) console.CommandFuture {
	c.lock.Lock()
	defer c.lock.Unlock()
	// sequence 0 is never used by commands.
	if c.seq++; c.seq == 0 {
		c.seq = 1
	}
	f := &commandFuture{
		seq:      c.seq,
		expireAt: time.Now().Add(c.Expiration),
		result:   make(chan console.Result, 1),
	}
	if err := c.pipe.SendCommand(msg, f.seq); err != nil {
		f.resolve(console.Result{Err: err})
		return f
	}
	f.elem = c.pending.PushBack(f)
	c.bySeq[f.seq] = f
	return f
}

// Pending is the number of commands waiting for replies.
func (c *NodeConn) Pending() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.pending.Len()
}

// Stats returns the packet counters of the connection.
func (c *NodeConn) Stats() PipeStats {
	return c.pipe.Stats()
}

// AddToLoop implements LoopAdder.
func (c *NodeConn) AddToLoop(l *fx.Loop) {
	l.Add(&c.pipe)
	l.AddController(fx.PrLvIdle, fx.ControlFunc(c.expire))
}

func (c *NodeConn) handleTypedMsg(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
	if typed.IsEvent() {
		ctl := fx.LoopCtlFrom(ctx)
		ctl.PostMessage(msg)
		ctl.TriggerNext()
		return nil
	}
	c.lock.Lock()
	f := c.take(typed.Sequence)
	c.lock.Unlock()
	if f == nil {
		glog.V(2).Infof("nodeconn: drop unsolicited %s #%d", msgs.TypeName(msg), typed.Sequence)
		return nil
	}
	result := console.Result{Msg: msg}
	if cerr, ok := msg.(*msgs.CommandErr); ok {
		result.Err = cerr
	}
	f.resolve(result)
	return nil
}

// take removes the pending command of seq, the lock must be held.
func (c *NodeConn) take(seq uint32) *commandFuture {
	f := c.bySeq[seq]
	if f != nil {
		c.pending.Remove(f.elem)
		delete(c.bySeq, seq)
	}
	return f
}

func (c *NodeConn) expire(cc fx.ControlContext) error {
	now := cc.Time()
	var expired []*commandFuture
	c.lock.Lock()
	for elem := c.pending.Front(); elem != nil; elem = c.pending.Front() {
		f := elem.Value.(*commandFuture)
		if f.expireAt.After(now) {
			break
		}
		expired = append(expired, c.take(f.seq))
	}
	c.lock.Unlock()
	for _, f := range expired {
		f.resolve(console.Result{Err: context.DeadlineExceeded})
	}
	return nil
}

type commandFuture struct {
	seq      uint32
	expireAt time.Time
	elem     *list.Element
	result   chan console.Result
}

func (f *commandFuture) resolve(r console.Result) {
	f.result <- r
	close(f.result)
}

func (f *commandFuture) ResultChan() <-chan console.Result {
	return f.result
}
