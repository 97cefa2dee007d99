package payload

import (
	"encoding"
	"testing"

	"github.com/stretchr/testify/require"
)

var commandFixture = []byte{
	0x10, 0x27, 0x00, 0x00, // timestamp 10000
	0x18, 0xfc, 0xff, 0xff, // thrust -1000
	0x01, 0x00, 0x00, 0x00, // actuator 1
	0xfe, 0xff, 0xff, 0xff, // actuator -2
	0x00, 0x08, 0x00, 0x00, // actuator 2048
	0x00, 0x00, 0x00, 0x80, // actuator min int32
	0x64, 0x00, 0x00, 0x00, // position.x 100
	0x9c, 0xff, 0xff, 0xff, // position.y -100
	0x00, 0x00, 0x00, 0x00, // position.z 0
	0x05, 0x00, 0x00, 0x00, // velocity.x 5
	0x06, 0x00, 0x00, 0x00, // velocity.y 6
	0xf9, 0xff, 0xff, 0xff, // velocity.z -7
	0x34, 0x12, // mode
}

func TestCommandFixture(t *testing.T) {
	require.Len(t, commandFixture, CommandSize)
	var cmd Command
	require.NoError(t, cmd.UnmarshalBinary(commandFixture))
	require.Equal(t, Command{
		Timestamp: 10000,
		Thrust:    -1000,
		Actuators: [ActuatorCount]int32{1, -2, 2048, -2147483648},
		Position:  Vector3{X: 100, Y: -100},
		Velocity:  Vector3{X: 5, Y: 6, Z: -7},
		Mode:      0x1234,
	}, cmd)

	encoded, err := cmd.MarshalBinary()
	require.NoError(t, err)
	require.Equal(t, commandFixture, encoded)
}

func TestSensorLayout(t *testing.T) {
	s := Sensor{
		Timestamp: 1,
		Acc:       Vector3{X: -1, Y: 2, Z: 3},
		Gyro:      Vector3{X: 4, Y: -5, Z: 6},
		Baro:      -7,
	}
	b, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, SensorSize)
	require.Equal(t, []byte{1, 0, 0, 0}, b[0:4])
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, b[4:8])
	require.Equal(t, []byte{0xf9, 0xff, 0xff, 0xff}, b[28:32])
}

func TestFeedbackLayout(t *testing.T) {
	f := Feedback{Timestamp: 0x01020304, ChamberPressure: 250, Actuators: [ActuatorCount]int32{0, -1, 2, 3}}
	b, err := f.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, b, FeedbackSize)
	require.Equal(t, []byte{4, 3, 2, 1, 250, 0, 0, 0}, b[0:8])
	require.Equal(t, []byte{3, 0, 0, 0}, b[20:24])
}

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		in   encoding.BinaryMarshaler
		out  encoding.BinaryUnmarshaler
	}{
		{"sensor zero", Sensor{}, &Sensor{}},
		{"sensor negative", Sensor{Timestamp: 99, Acc: Vector3{-1, -2, -3}, Gyro: Vector3{7, 0, -9}, Baro: -101325}, &Sensor{}},
		{"feedback", Feedback{Timestamp: 5, ChamberPressure: -3, Actuators: [ActuatorCount]int32{10, -20, 30, -40}}, &Feedback{}},
		{"command", Command{Timestamp: 42, Thrust: 800, Actuators: [ActuatorCount]int32{-1, 0, 1, 2}, Mode: 3}, &Command{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := tc.in.MarshalBinary()
			require.NoError(t, err)
			require.NoError(t, tc.out.UnmarshalBinary(b))
			switch out := tc.out.(type) {
			case *Sensor:
				require.Equal(t, tc.in, *out)
			case *Feedback:
				require.Equal(t, tc.in, *out)
			case *Command:
				require.Equal(t, tc.in, *out)
			}
		})
	}
}

func TestSizeMismatch(t *testing.T) {
	require.Equal(t, ErrSize, (&Command{}).UnmarshalBinary(commandFixture[:CommandSize-1]))
	require.Equal(t, ErrSize, (&Sensor{}).UnmarshalBinary(make([]byte, SensorSize+1)))
	require.Equal(t, ErrSize, (&Feedback{}).UnmarshalBinary(nil))
}
