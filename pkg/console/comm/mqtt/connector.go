package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/comm"
)

// DefaultDiscoverTimeout defines the default timeout value of discovery.
const DefaultDiscoverTimeout = 500 * time.Millisecond

// Connector implements console.Connector using MQTT.
type Connector struct {
	DiscoverTimeout time.Duration

	url string
}

// NewConnector creates a Connector.
func NewConnector(brokerURL string) (*Connector, error) {
	if _, _, err := ParseURL(brokerURL); err != nil {
		return nil, err
	}
	return &Connector{DiscoverTimeout: DefaultDiscoverTimeout, url: brokerURL}, nil
}

func (c *Connector) session() *Session {
	opts, prefix, _ := ParseURL(c.url)
	return NewSession(opts, prefix)
}

// Discover implements Connector. Nodes are found from the retained
// metadata topics.
func (c *Connector) Discover(ctx context.Context) ([]console.NodeInfo, error) {
	s := c.session()
	found := make(chan console.NodeInfo, 16)
	s.Subscribe("+/+/"+TopicMeta, func(topic string, payload []byte) {
		if info, ok := parseMeta(topic, payload); ok {
			select {
			case found <- info:
			case <-time.After(time.Second):
			}
		}
	})
	token := s.Connect()
	defer s.Close()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	dur := c.DiscoverTimeout
	if dur == 0 {
		dur = DefaultDiscoverTimeout
	}
	timeout := time.After(dur)
	var nodes []console.NodeInfo
	for {
		select {
		case info := <-found:
			nodes = append(nodes, info)
		case <-timeout:
			return nodes, nil
		case <-ctx.Done():
			return nodes, ctx.Err()
		}
	}
}

func parseMeta(topic string, payload []byte) (info console.NodeInfo, ok bool) {
	// cleared metadata means the node is gone.
	if len(payload) == 0 || !strings.HasSuffix(topic, "/"+TopicMeta) {
		return info, false
	}
	ref, err := console.ParseNodeRef(strings.TrimSuffix(topic, "/"+TopicMeta))
	if err != nil {
		return info, false
	}
	info.Ref = ref
	if err := json.Unmarshal(payload, &info.Meta); err != nil {
		glog.V(2).Infof("mqtt: bad metadata of %s: %v", info.Ref.Name(), err)
	}
	return info, true
}

// Connect implements Connector.
func (c *Connector) Connect(ctx context.Context, ref console.NodeRef) (console.NodeConn, error) {
	conn := &NodeConn{Session: c.session()}
	conn.Init(ForConnector(conn.Session, ref))
	token := conn.Session.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}
	return conn, nil
}

// NodeConn implements console.NodeConn using MQTT.
type NodeConn struct {
	comm.NodeConn
	Session *Session
}

// Close implements io.Closer.
func (c *NodeConn) Close() error {
	return c.Session.Close()
}
