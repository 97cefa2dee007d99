package node

import (
	"fmt"
	"log"

	"github.com/robotalks/tvc.go/pkg/console/comm"
	"github.com/robotalks/tvc.go/pkg/console/comm/mqtt"
	"github.com/robotalks/tvc.go/pkg/console/comm/stream"
	"github.com/robotalks/tvc.go/pkg/console/comm/websocket"
	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Env is the console environment of a node.
type Env struct {
	Config       *Config
	RegistryURLs []string
	Registrar    *comm.RegistrarMux
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	env := &Env{
		Config:    c,
		Registrar: &comm.RegistrarMux{},
	}
	if c.MQTTBrokerURL != "" {
		reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, c.Info)
		if err != nil {
			return nil, fmt.Errorf("create MQTT registrar error: %v", err)
		}
		env.Registrar.Add(reg)
		env.RegistryURLs = append(env.RegistryURLs, c.MQTTBrokerURL)
	}
	if c.WebsocketAddr != "" {
		srv := websocket.NewServer(c.WebsocketAddr)
		env.Registrar.Add(srv)
		env.RegistryURLs = append(env.RegistryURLs, "ws://"+c.WebsocketAddr+srv.Path)
	}
	if c.TCPAddr != "" {
		env.Registrar.Add(&stream.Server{Addr: c.TCPAddr})
		env.RegistryURLs = append(env.RegistryURLs, "stream://"+c.TCPAddr)
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// AddToLoop adds registrars and the fallback for unknown commands.
func (e *Env) AddToLoop(loop *fx.Loop) {
	loop.Add(e.Registrar)
	loop.Add(&comm.UnsupportedCommands{})
}
