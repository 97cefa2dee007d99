package link

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no reply arrived within the exchange timeout.
	ErrTimeout = errors.New("link timeout")
	// ErrBusy indicates another exchange is in flight.
	ErrBusy = errors.New("link busy")
	// ErrLocal indicates a local precondition failed before
	// anything was transmitted.
	ErrLocal = errors.New("link local error")
	// ErrChecksum indicates a received frame failed the checksum.
	ErrChecksum = errors.New("frame checksum mismatch")
)

// RemoteError is the negative acknowledgment of an exchange: the peer
// replied with an opcode other than the one requested.
type RemoteError struct {
	Want Opcode
	Got  Opcode
	Data []byte
}

// Error implements error.
func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error: %s replied to %s", e.Got, e.Want)
}

// IsRemote tells whether err is a RemoteError.
func IsRemote(err error) bool {
	_, ok := err.(*RemoteError)
	return ok
}
