package mqtt

import (
	"context"
	"io"

	"github.com/robotalks/tvc.go/pkg/console"
)

// Topic suffixes under a node's name.
const (
	TopicMeta = "meta"
	TopicCmd  = "cmd"
	TopicMsg  = "msg"
)

// TopicConn implements comm.PacketConn over a pair of topics.
type TopicConn struct {
	Session  *Session
	SubTopic string
	PubTopic string

	packets chan []byte
	done    chan struct{}
}

// NewTopicConn reads sub and writes pub.
func NewTopicConn(s *Session, sub, pub string) *TopicConn {
	return &TopicConn{
		Session:  s,
		SubTopic: sub,
		PubTopic: pub,
		packets:  make(chan []byte, 16),
		done:     make(chan struct{}),
	}
}

// ForConnector creates a TopicConn on the ground station side:
// it reads node/msg and writes node/cmd.
func ForConnector(s *Session, ref console.NodeRef) *TopicConn {
	return NewTopicConn(s, ref.Name()+"/"+TopicMsg, ref.Name()+"/"+TopicCmd)
}

// ForNode creates a TopicConn on the node side:
// it reads node/cmd and writes node/msg.
func ForNode(s *Session, ref console.NodeRef) *TopicConn {
	return NewTopicConn(s, ref.Name()+"/"+TopicCmd, ref.Name()+"/"+TopicMsg)
}

// ReadPacket implements comm.PacketConn.
func (p *TopicConn) ReadPacket() ([]byte, error) {
	select {
	case pkt := <-p.packets:
		return pkt, nil
	case <-p.done:
		return nil, io.EOF
	}
}

// WritePacket implements comm.PacketConn.
func (p *TopicConn) WritePacket(pkt []byte) error {
	token := p.Session.Publish(p.PubTopic, pkt, 0, false)
	token.Wait()
	return token.Error()
}

// Run implements Runnable.
func (p *TopicConn) Run(ctx context.Context) error {
	sub := p.Session.Subscribe(p.SubTopic, p.received)
	defer sub.Close()
	defer close(p.done)
	<-ctx.Done()
	return ctx.Err()
}

func (p *TopicConn) received(_ string, payload []byte) {
	select {
	case p.packets <- payload:
	case <-p.done:
	}
}
