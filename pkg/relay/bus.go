package relay

import (
	"io"
	"sync"

	"github.com/notnil/canbus"
)

// Bus sends and receives vehicle bus frames.
type Bus interface {
	ReadFrame() (canbus.Frame, error)
	WriteFrame(canbus.Frame) error
}

// frameSize is the SocketCAN can_frame size.
const frameSize = 16

// StreamBus carries frames over a byte stream in the SocketCAN
// can_frame layout, e.g. a CAN gateway on a serial port or TCP.
type StreamBus struct {
	rw    io.ReadWriter
	wlock sync.Mutex
	buf   [frameSize]byte
}

// NewStreamBus wraps a stream.
func NewStreamBus(rw io.ReadWriter) *StreamBus {
	return &StreamBus{rw: rw}
}

// ReadFrame implements Bus. It must not be called concurrently.
func (b *StreamBus) ReadFrame() (f canbus.Frame, err error) {
	if _, err = io.ReadFull(b.rw, b.buf[:]); err != nil {
		return
	}
	err = f.UnmarshalBinary(b.buf[:])
	return
}

// WriteFrame implements Bus.
func (b *StreamBus) WriteFrame(f canbus.Frame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	b.wlock.Lock()
	defer b.wlock.Unlock()
	_, err = b.rw.Write(data)
	return err
}
