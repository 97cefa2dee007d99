// Package comm carries the console protocol over packet transports.
package comm

// PacketConn carries whole packets, each one encoded Typed envelope.
// Transports (MQTT topics, websocket frames, length-prefixed streams)
// implement it.
type PacketConn interface {
	ReadPacket() ([]byte, error)
	WritePacket([]byte) error
}

// PipeStats counts packets through a Pipe.
type PipeStats struct {
	Received  uint64
	Sent      uint64
	Malformed uint64
	Unknown   uint64
}
