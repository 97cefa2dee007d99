package websocket

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/comm"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Conn implements comm.PacketConn with one binary frame per
// packet.
type Conn websocket.Conn

// New wraps websocket.Conn.
func New(conn *websocket.Conn) *Conn {
	return (*Conn)(conn)
}

// ReadPacket implements comm.PacketConn.
func (p *Conn) ReadPacket() (pkt []byte, err error) {
	err = websocket.Message.Receive((*websocket.Conn)(p), &pkt)
	return
}

// WritePacket implements comm.PacketConn.
func (p *Conn) WritePacket(pkt []byte) error {
	return websocket.Message.Send((*websocket.Conn)(p), pkt)
}

// Close implements io.Closer.
func (p *Conn) Close() error {
	return (*websocket.Conn)(p).Close()
}

// DefaultPath is where the console is served.
const DefaultPath = "/console"

// Server serves the console to ground stations over websocket.
type Server struct {
	Addr string
	Path string
	Hub  comm.Hub
}

// NewServer creates a Server listening on addr.
func NewServer(addr string) *Server {
	return &Server{Addr: addr, Path: DefaultPath}
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
	mux := http.NewServeMux()
	mux.Handle(s.Path, websocket.Handler(func(conn *websocket.Conn) {
		glog.Infof("websocket: %s connected", conn.Request().RemoteAddr)
		err := s.Hub.Serve(ctx, New(conn))
		glog.Infof("websocket: %s disconnected: %v", conn.Request().RemoteAddr, err)
	}))
	server := &http.Server{Addr: s.Addr, Handler: mux}
	return fx.RunWithContextCancel(ctx, func() { server.Close() }, server.ListenAndServe)
}

// Connector connects to a node serving the console over websocket.
// The node is addressed by the URL, e.g. ws://host:8080/console.
type Connector struct {
	URL string
	Ref console.NodeRef
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
	origin := "http://" + strings.SplitN(strings.TrimPrefix(strings.TrimPrefix(c.URL, "ws://"), "wss://"), "/", 2)[0]
	ws, err := websocket.Dial(c.URL, "", origin)
	if err != nil {
		return nil, err
	}
	conn := &NodeConn{rw: New(ws)}
	conn.Init(conn.rw)
	return conn, nil
}

// NodeConn is a console.NodeConn over websocket.
type NodeConn struct {
	comm.NodeConn
	rw *Conn
}

// Close implements io.Closer.
func (c *NodeConn) Close() error {
	return c.rw.Close()
}
