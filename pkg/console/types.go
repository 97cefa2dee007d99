// Package console is the telemetry console of the node: ground stations
// query status and payloads and request actions through it.
package console

import (
	"context"
	"fmt"
	"strings"

	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Registrar registers a node to a registry so ground stations can
// reach it, and carries events back to them.
type Registrar interface {
	// SendEvent sends an event to ground stations.
	SendEvent(context.Context, fx.Message) error
}

// Command represents a received command to be processed.
type Command interface {
	Msg() fx.Message
	Done(fx.Message) error
}

// CommandMsg wraps a Command as a Message.
type CommandMsg struct {
	Command Command
}

// NewMessage implements Message.
func (m *CommandMsg) NewMessage() fx.Message { return &CommandMsg{} }

// NodeRef identifies a node as TYPE/ID, e.g. tvc/3f2a9c01.
type NodeRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ParseNodeRef parses TYPE/ID.
func ParseNodeRef(name string) (NodeRef, error) {
	items := strings.Split(name, "/")
	if len(items) != 2 {
		return NodeRef{}, fmt.Errorf("invalid node name %q", name)
	}
	ref := NodeRef{Type: items[0], ID: items[1]}
	if !ref.IsValid() {
		return ref, fmt.Errorf("invalid node name %q", name)
	}
	return ref, nil
}

// Name is TYPE/ID.
func (r NodeRef) Name() string {
	return r.Type + "/" + r.ID
}

// IsValid tells both parts are set.
func (r NodeRef) IsValid() bool {
	return r.Type != "" && r.ID != ""
}

// NodeMeta is published by a node when it registers.
type NodeMeta struct {
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// NodeInfo is a discovered node.
type NodeInfo struct {
	Ref  NodeRef  `json:"ref"`
	Meta NodeMeta `json:"meta"`
}

// Connector is used by ground stations to connect to a node.
type Connector interface {
	// Discover enumerates registered nodes.
	Discover(context.Context) ([]NodeInfo, error)
	// Connect connects to the specified node.
	Connect(context.Context, NodeRef) (NodeConn, error)
}

// NodeConn is the connection to a node.
type NodeConn interface {
	// DoCommand executes a command.
	DoCommand(fx.Message) CommandFuture
}

// Result represents result of a command.
type Result struct {
	Msg fx.Message
	Err error
}

// CommandFuture is the future of sent command.
type CommandFuture interface {
	ResultChan() <-chan Result
}
