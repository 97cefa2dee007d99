package comm

import (
	"context"
	"sync"

	"github.com/golang/glog"

	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Hub is a console.Registrar for servers accepting ground station
// connections. Each connection gets its own Registrar, events are sent
// to all of them.
type Hub struct {
	lock  sync.Mutex
	conns map[*Registrar]struct{}
}

// Serve serves one connection until it closes. The context must carry
// the loop.
func (h *Hub) Serve(ctx context.Context, conn PacketConn) error {
	reg := &Registrar{}
	reg.Init(conn)
	h.lock.Lock()
	if h.conns == nil {
		h.conns = make(map[*Registrar]struct{})
	}
	h.conns[reg] = struct{}{}
	h.lock.Unlock()
	defer func() {
		h.lock.Lock()
		delete(h.conns, reg)
		h.lock.Unlock()
	}()
	return reg.Serve(ctx)
}

// Connections returns the number of active connections.
func (h *Hub) Connections() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.conns)
}

// SendEvent implements console.Registrar. A failing connection does not
// prevent the others from receiving the event.
func (h *Hub) SendEvent(ctx context.Context, msg fx.Message) error {
	h.lock.Lock()
	regs := make([]*Registrar, 0, len(h.conns))
	for reg := range h.conns {
		regs = append(regs, reg)
	}
	h.lock.Unlock()
	for _, reg := range regs {
		if err := reg.SendEvent(ctx, msg); err != nil {
			glog.V(1).Infof("hub: send event: %v", err)
		}
	}
	return nil
}
