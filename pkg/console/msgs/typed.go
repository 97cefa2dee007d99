package msgs

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// Type ID layout: bit 31 is the kind, bits 16-30 the group, bit 15
// marks replies and bits 0-14 the message within the group.
const (
	TypeIDMaskKind  uint32 = 0x80000000
	TypeIDMaskGroup uint32 = 0x7fff0000
	TypeIDMaskID    uint32 = 0x0000ffff
	TypeIDMaskReply uint32 = 0x00008000
)

// Message kinds
const (
	TypeIDKindCommand uint32 = 0x00000000
	TypeIDKindEvent   uint32 = 0x80000000
)

// SerializableMessage is a message carried in a Typed envelope.
type SerializableMessage interface {
	fx.Message
	TypeID() uint32
	Serializable() proto.Message
}

// Typed is the envelope of every console packet.
type Typed struct {
	TypeId   uint32 `protobuf:"varint,1,opt,name=type_id,json=typeId,proto3" json:"type_id,omitempty"`
	Sequence uint32 `protobuf:"varint,2,opt,name=sequence,proto3" json:"sequence,omitempty"`
	Message  []byte `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

// ProtoMessage implements proto.Message.
func (p *Typed) ProtoMessage() {}

// Reset implements proto.Message.
func (p *Typed) Reset() { *p = Typed{} }

// String implements proto.Message.
func (p *Typed) String() string { return proto.CompactTextString(p) }

// ErrUnknownType is returned decoding an unregistered type ID.
type ErrUnknownType struct {
	TypeID uint32
}

// Error implements error.
func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type: %x", e.TypeID)
}

var (
	// ErrNotSerializable indicates the message is not serializable.
	ErrNotSerializable = errors.New("not serializable message")
	// ErrUnsupportedCommand is replied to commands nobody handled.
	ErrUnsupportedCommand = errors.New("unsupported command")
)

var (
	registry     = make(map[uint32]SerializableMessage)
	registryLock sync.RWMutex
)

// Register makes messages decodable by their type IDs.
func Register(msgs ...SerializableMessage) {
	registryLock.Lock()
	defer registryLock.Unlock()
	for _, msg := range msgs {
		registry[msg.TypeID()] = msg
	}
}

// Lookup finds the registered message of typeID.
func Lookup(typeID uint32) (SerializableMessage, bool) {
	registryLock.RLock()
	defer registryLock.RUnlock()
	msg, ok := registry[typeID]
	return msg, ok
}

// TypedFrom wraps a serializable message with seq.
func TypedFrom(msg fx.Message, seq uint32) (*Typed, error) {
	s, ok := msg.(SerializableMessage)
	if !ok {
		return nil, ErrNotSerializable
	}
	data, err := proto.Marshal(s.Serializable())
	if err != nil {
		return nil, err
	}
	return &Typed{TypeId: s.TypeID(), Sequence: seq, Message: data}, nil
}

// DecodeTyped decodes a packet into the envelope.
func DecodeTyped(data []byte) (*Typed, error) {
	var typed Typed
	if err := proto.Unmarshal(data, &typed); err != nil {
		return nil, err
	}
	return &typed, nil
}

// Decode decodes the message inside the envelope.
func (p *Typed) Decode() (fx.Message, error) {
	msgType, ok := Lookup(p.TypeId)
	if !ok {
		return nil, &ErrUnknownType{TypeID: p.TypeId}
	}
	msg := msgType.NewMessage()
	if err := proto.Unmarshal(p.Message, msg.(SerializableMessage).Serializable()); err != nil {
		return nil, err
	}
	return msg, nil
}

// Encode encodes the envelope.
func (p *Typed) Encode() ([]byte, error) {
	return proto.Marshal(p)
}

// Kind is the kind bit of the type ID.
func (p *Typed) Kind() uint32 {
	return p.TypeId & TypeIDMaskKind
}

// IsCommand tells commands and their replies.
func (p *Typed) IsCommand() bool {
	return p.Kind() == TypeIDKindCommand
}

// IsReply tells replies to commands.
func (p *Typed) IsReply() bool {
	return p.IsCommand() && p.TypeId&TypeIDMaskReply != 0
}

// IsEvent tells events.
func (p *Typed) IsEvent() bool {
	return p.Kind() == TypeIDKindEvent
}

// TypeName names the message of msg for display.
func TypeName(msg fx.Message) string {
	if msg == nil {
		return "nil"
	}
	return reflect.Indirect(reflect.ValueOf(msg)).Type().Name()
}

// TypedMsgHandler handles a decoded message with its envelope.
type TypedMsgHandler interface {
	HandleTypedMsg(context.Context, fx.Message, *Typed) error
}

// HandleTypedMsgFunc is func form of TypedMsgHandler.
type HandleTypedMsgFunc func(context.Context, fx.Message, *Typed) error

// HandleTypedMsg implements TypedMsgHandler.
func (f HandleTypedMsgFunc) HandleTypedMsg(ctx context.Context, msg fx.Message, typed *Typed) error {
	return f(ctx, msg, typed)
}
