package mqtt

import (
	"context"
	"encoding/json"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/comm"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// ClientIDPrefix prefixes default client IDs of nodes.
const ClientIDPrefix = "tvc:"

// Registrar implements console.Registrar using MQTT. The node metadata
// is retained on node/meta while connected, and cleared by the will
// message when the connection drops.
type Registrar struct {
	Session *Session
	Info    console.NodeInfo

	meta      []byte
	registrar comm.Registrar
}

// NewRegistrar creates a Registrar.
func NewRegistrar(brokerURL string, info console.NodeInfo) (*Registrar, error) {
	meta, err := json.Marshal(&info.Meta)
	if err != nil {
		return nil, err
	}
	opts, prefix, err := ParseURL(brokerURL)
	if err != nil {
		return nil, err
	}
	metaTopic := info.Ref.Name() + "/" + TopicMeta
	opts.SetBinaryWill(prefix+metaTopic, nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID(ClientIDPrefix + info.Ref.Name())
	}
	r := &Registrar{Session: NewSession(opts, prefix), Info: info, meta: meta}
	r.Session.OnConnect = func(s *Session) {
		s.Publish(metaTopic, r.meta, 1, true)
	}
	r.registrar.Init(ForNode(r.Session, info.Ref))
	return r, nil
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.registrar.SendEvent(ctx, msg)
}

// AddToLoop implements LoopAdder.
func (r *Registrar) AddToLoop(loop *fx.Loop) {
	loop.Add(&r.registrar)
	loop.AddRunnable(r)
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	r.Session.Connect()
	<-ctx.Done()
	r.Session.Publish(r.Info.Ref.Name()+"/"+TopicMeta, nil, 1, true).Wait()
	return r.Session.Close()
}
