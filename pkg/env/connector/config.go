// Package connector configures how ground stations reach nodes.
package connector

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"

	"github.com/robotalks/tvc.go/pkg/console"
	"github.com/robotalks/tvc.go/pkg/console/comm/mqtt"
	"github.com/robotalks/tvc.go/pkg/console/comm/stream"
	"github.com/robotalks/tvc.go/pkg/console/comm/websocket"
	"github.com/robotalks/tvc.go/pkg/env"
)

// Config provides common options to setup Connectors.
type Config struct {
	Ref console.NodeRef

	// RegistryURL specifies where nodes are found: an MQTT broker
	// (mqtt://host:port/topic-prefix/), or a single node serving the
	// console over websocket (ws://host:port/console) or TCP
	// (stream://host:port).
	RegistryURL string
}

var defaultConfig = Config{
	Ref:         console.NodeRef{Type: "tvc"},
	RegistryURL: "mqtt://localhost:1883/tvc/",
}

func init() {
	if val := env.Getenv("NODE_TYPE"); val != "" {
		defaultConfig.Ref.Type = val
	}
	if val := env.Getenv("NODE_ID"); val != "" {
		defaultConfig.Ref.ID = val
	}
	if val := env.Getenv("REGISTRY_URL"); val != "" {
		defaultConfig.RegistryURL = val
	}
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Ref.Type, "node-type", defaultConfig.Ref.Type, "Node type to connect.")
	flag.StringVar(&defaultConfig.Ref.ID, "node-id", defaultConfig.Ref.ID, "Node ID to connect.")
	flag.StringVar(&defaultConfig.RegistryURL, "registry", defaultConfig.RegistryURL, "Node registry URL.")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewConnector creates a Connector using current config.
func (c *Config) NewConnector() (console.Connector, error) {
	parsedURL, err := url.Parse(c.RegistryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid registry URL: %v", err)
	}
	switch parsedURL.Scheme {
	case "mqtt", "tcp", "ssl":
		return mqtt.NewConnector(c.RegistryURL)
	case "ws", "wss":
		return &websocket.Connector{URL: c.RegistryURL, Ref: c.directRef(parsedURL)}, nil
	case "stream":
		return &stream.Connector{Addr: parsedURL.Host, Ref: c.directRef(parsedURL)}, nil
	default:
		return nil, fmt.Errorf("unknown registry URL scheme: %q", parsedURL.Scheme)
	}
}

// directRef names a directly addressed node after its host unless an
// ID is configured.
func (c *Config) directRef(u *url.URL) console.NodeRef {
	ref := c.Ref
	if ref.ID == "" {
		ref.ID = u.Host
	}
	return ref
}

// MustNewConnector creates a Connector and fails on error.
func (c *Config) MustNewConnector() console.Connector {
	conn, err := c.NewConnector()
	if err != nil {
		log.Fatalln(err)
	}
	return conn
}

// Connect directly connects to the configured node.
func (c *Config) Connect(ctx context.Context) (console.NodeConn, error) {
	connector, err := c.NewConnector()
	if err != nil {
		return nil, err
	}
	ref := c.Ref
	if !ref.IsValid() {
		nodes, err := connector.Discover(ctx)
		if err != nil {
			return nil, err
		}
		if len(nodes) != 1 {
			return nil, fmt.Errorf("node id must be specified, %d nodes found", len(nodes))
		}
		ref = nodes[0].Ref
	}
	return connector.Connect(ctx, ref)
}
