package stream

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/comm"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// MaxPacketSize limits the size of a packet.
const MaxPacketSize = 64 * 1024

// Conn implements comm.PacketConn over a byte stream.
// Each packet is prefixed by its length in 4 bytes, little-endian.
type Conn struct {
	io.ReadWriter

	writeLock sync.Mutex
}

// New wraps a byte stream, e.g. a net.Conn.
func New(s io.ReadWriter) *Conn {
	return &Conn{ReadWriter: s}
}

// ReadPacket implements comm.PacketConn.
func (p *Conn) ReadPacket() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(p, hdr[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(hdr[:])
	if size > MaxPacketSize {
		return nil, fmt.Errorf("packet too large: %d", size)
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p, pkt)
	return pkt, err
}

// WritePacket implements comm.PacketConn.
func (p *Conn) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return fmt.Errorf("packet too large: %d", len(pkt))
	}
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	p.writeLock.Lock()
	defer p.writeLock.Unlock()
	_, err := p.Write(buf)
	return err
}

// Close implements io.Closer.
func (p *Conn) Close() error {
	if closer, ok := p.ReadWriter.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Server serves the console to ground stations over TCP.
type Server struct {
	Addr string
	Hub  comm.Hub
}

// SendEvent implements console.Registrar.
func (s *Server) SendEvent(ctx context.Context, msg fx.Message) error {
	return s.Hub.SendEvent(ctx, msg)
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(l *fx.Loop) {
	l.AddRunnable(s)
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return fx.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go func() {
				err := s.Hub.Serve(ctx, New(conn))
				glog.V(1).Infof("stream: %s closed: %v", conn.RemoteAddr(), err)
			}()
		}
	})
}

// Connector connects to a node serving the console over TCP,
// addressed as stream://host:port.
type Connector struct {
	Addr string
	Ref  console.NodeRef
}

// Discover implements console.Connector. The only node is the one
// configured.
func (c *Connector) Discover(ctx context.Context) ([]console.NodeInfo, error) {
	if !c.Ref.IsValid() {
		return nil, nil
	}
	return []console.NodeInfo{{Ref: c.Ref}}, nil
}

// Connect implements console.Connector.
func (c *Connector) Connect(ctx context.Context, ref console.NodeRef) (console.NodeConn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, err
	}
	conn := &NodeConn{conn: New(nc)}
	conn.Init(conn.conn)
	return conn, nil
}

// NodeConn is a console.NodeConn over TCP.
type NodeConn struct {
	comm.NodeConn
	conn *Conn
}

// Close implements io.Closer.
func (c *NodeConn) Close() error {
	return c.conn.Close()
}
