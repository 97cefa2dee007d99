package link

import (
	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/payload"
)

// OpNack is the reply opcode of a rejected request.
const OpNack Opcode = 0x7f

// Reply codes
var (
	// PingMarker is carried by a ping and its reply.
	PingMarker = []byte{0xce, 0xec}
	// Ack acknowledges an accepted command.
	Ack = []byte{0xc5, 0x5c}
	// NackInvalid rejects a request with a malformed payload.
	NackInvalid = []byte{0xce, 0xec}
	// NackUnknown rejects a request with an unknown opcode.
	NackUnknown = []byte{0xbe, 0xeb}
)

// Reply echoes the request opcode with data.
func Reply(req *Frame, data []byte) *Frame {
	return &Frame{Opcode: req.Opcode, Data: data}
}

// Nack rejects a request. The opcode differs from the request so the
// peer reports a RemoteError.
func Nack(req *Frame, code []byte) *Frame {
	return &Frame{Opcode: req.Opcode&DirectionBit | OpNack, Data: code}
}

// CommandHandler receives command updates from the companion.
type CommandHandler interface {
	HandleCommand(payload.Command)
}

// HandleCommandFunc is the func form of CommandHandler.
type HandleCommandFunc func(payload.Command)

// HandleCommand implements CommandHandler.
func (f HandleCommandFunc) HandleCommand(cmd payload.Command) {
	f(cmd)
}

// Handlers answers the requests the companion initiates towards the node.
type Handlers struct {
	Commands CommandHandler
}

// Respond implements Responder.
func (h *Handlers) Respond(req *Frame) *Frame {
	switch req.Opcode.Code() {
	case OpPing:
		return Reply(req, PingMarker)
	case OpCommand:
		return h.command(req)
	default:
		glog.V(2).Infof("unknown request %s", req.Opcode)
		return Nack(req, NackUnknown)
	}
}

func (h *Handlers) command(req *Frame) *Frame {
	if len(req.Data) != payload.CommandSize {
		glog.Warningf("command update of %d bytes rejected", len(req.Data))
		return Nack(req, NackInvalid)
	}
	var cmd payload.Command
	if err := cmd.UnmarshalBinary(req.Data); err != nil {
		return Nack(req, NackInvalid)
	}
	if h.Commands != nil {
		h.Commands.HandleCommand(cmd)
	}
	return Reply(req, Ack)
}
