package relay

import (
	"encoding/binary"
	"fmt"

	"github.com/notnil/canbus"
)

// DataID identifies the value carried in a vehicle bus frame.
type DataID uint8

// Data IDs used by the node.
const (
	IDAccelerationX DataID = 1
	IDAccelerationY DataID = 2
	IDAccelerationZ DataID = 3
	IDGyroX         DataID = 4
	IDGyroY         DataID = 5
	IDGyroZ         DataID = 6
	IDAltitude      DataID = 49
	IDChamberPress  DataID = 86
	IDVanePos1      DataID = 92
	IDVanePos2      DataID = 93
	IDVanePos3      DataID = 94
	IDVanePos4      DataID = 95
	IDTVCCommand    DataID = 100
	IDThrustCmd     DataID = 101
	IDVaneCmd1      DataID = 102
	IDVaneCmd2      DataID = 103
	IDVaneCmd3      DataID = 104
	IDVaneCmd4      DataID = 105
	IDTVCHeartbeat  DataID = 106
)

// Values of IDTVCCommand.
const (
	TVCBoot     int32 = 1
	TVCShutdown int32 = 2
	TVCAbort    int32 = 3
)

// Message is one telemetry value on the vehicle bus.
//
// Frame data layout:
//   0..3  value, int32 big-endian
//   4     data id
//   5..7  timestamp, low 24 bits big-endian
type Message struct {
	ID        DataID
	Value     int32
	Timestamp uint32
}

// MessageLen is the data length of a telemetry frame.
const MessageLen = 8

// String implements fmt.Stringer.
func (m Message) String() string {
	return fmt.Sprintf("id=%d value=%d ts=%d", m.ID, m.Value, m.Timestamp)
}

// Frame builds the CAN frame carrying the message.
func (m Message) Frame(canID uint32) canbus.Frame {
	f := canbus.Frame{ID: canID, Len: MessageLen}
	binary.BigEndian.PutUint32(f.Data[0:4], uint32(m.Value))
	f.Data[4] = byte(m.ID)
	f.Data[5] = byte(m.Timestamp >> 16)
	f.Data[6] = byte(m.Timestamp >> 8)
	f.Data[7] = byte(m.Timestamp)
	return f
}

// ParseFrame extracts a message. Frames of other lengths and remote
// frames are not telemetry.
func ParseFrame(f canbus.Frame) (Message, bool) {
	if f.Len != MessageLen || f.RTR {
		return Message{}, false
	}
	return Message{
		ID:        DataID(f.Data[4]),
		Value:     int32(binary.BigEndian.Uint32(f.Data[0:4])),
		Timestamp: uint32(f.Data[5])<<16 | uint32(f.Data[6])<<8 | uint32(f.Data[7]),
	}, true
}
