// Package payload defines the fixed-layout records exchanged with the
// companion module.
//
// All fields are little-endian and packed without padding.
package payload

import (
	"encoding/binary"
	"errors"
)

// Record sizes in bytes.
const (
	SensorSize   = 32
	FeedbackSize = 24
	CommandSize  = 50
)

// ActuatorCount is the number of thrust vanes.
const ActuatorCount = 4

// ErrSize indicates the encoded record has the wrong length.
var ErrSize = errors.New("payload size mismatch")

var le = binary.LittleEndian

// Vector3 is a three-axis integer measurement.
type Vector3 struct {
	X, Y, Z int32
}

// Sensor is the inertial and barometric snapshot streamed to the
// companion during computation.
type Sensor struct {
	Timestamp uint32
	Acc       Vector3
	Gyro      Vector3
	Baro      int32
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Sensor) MarshalBinary() ([]byte, error) {
	b := make([]byte, SensorSize)
	le.PutUint32(b[0:], s.Timestamp)
	putVector(b[4:], s.Acc)
	putVector(b[16:], s.Gyro)
	le.PutUint32(b[28:], uint32(s.Baro))
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Sensor) UnmarshalBinary(b []byte) error {
	if len(b) != SensorSize {
		return ErrSize
	}
	s.Timestamp = le.Uint32(b[0:])
	s.Acc = getVector(b[4:])
	s.Gyro = getVector(b[16:])
	s.Baro = int32(le.Uint32(b[28:]))
	return nil
}

// Feedback carries engine and actuator feedback to the companion.
type Feedback struct {
	Timestamp       uint32
	ChamberPressure int32
	Actuators       [ActuatorCount]int32
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (f Feedback) MarshalBinary() ([]byte, error) {
	b := make([]byte, FeedbackSize)
	le.PutUint32(b[0:], f.Timestamp)
	le.PutUint32(b[4:], uint32(f.ChamberPressure))
	for i, v := range f.Actuators {
		le.PutUint32(b[8+4*i:], uint32(v))
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Feedback) UnmarshalBinary(b []byte) error {
	if len(b) != FeedbackSize {
		return ErrSize
	}
	f.Timestamp = le.Uint32(b[0:])
	f.ChamberPressure = int32(le.Uint32(b[4:]))
	for i := range f.Actuators {
		f.Actuators[i] = int32(le.Uint32(b[8+4*i:]))
	}
	return nil
}

// Command is the guidance output computed by the companion.
type Command struct {
	Timestamp uint32
	Thrust    int32
	Actuators [ActuatorCount]int32
	Position  Vector3
	Velocity  Vector3
	Mode      uint16
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (c Command) MarshalBinary() ([]byte, error) {
	b := make([]byte, CommandSize)
	le.PutUint32(b[0:], c.Timestamp)
	le.PutUint32(b[4:], uint32(c.Thrust))
	for i, v := range c.Actuators {
		le.PutUint32(b[8+4*i:], uint32(v))
	}
	putVector(b[24:], c.Position)
	putVector(b[36:], c.Velocity)
	le.PutUint16(b[48:], c.Mode)
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (c *Command) UnmarshalBinary(b []byte) error {
	if len(b) != CommandSize {
		return ErrSize
	}
	c.Timestamp = le.Uint32(b[0:])
	c.Thrust = int32(le.Uint32(b[4:]))
	for i := range c.Actuators {
		c.Actuators[i] = int32(le.Uint32(b[8+4*i:]))
	}
	c.Position = getVector(b[24:])
	c.Velocity = getVector(b[36:])
	c.Mode = le.Uint16(b[48:])
	return nil
}

func putVector(b []byte, v Vector3) {
	le.PutUint32(b[0:], uint32(v.X))
	le.PutUint32(b[4:], uint32(v.Y))
	le.PutUint32(b[8:], uint32(v.Z))
}

func getVector(b []byte) Vector3 {
	return Vector3{
		X: int32(le.Uint32(b[0:])),
		Y: int32(le.Uint32(b[4:])),
		Z: int32(le.Uint32(b[8:])),
	}
}
