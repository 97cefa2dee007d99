package relay

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/notnil/canbus"
	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/payload"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

func TestMessageFrame(t *testing.T) {
	m := Message{ID: IDTVCCommand, Value: 1, Timestamp: 0x123456}
	f := m.Frame(0x10)
	require.Equal(t, uint32(0x10), f.ID)
	require.Equal(t, uint8(8), f.Len)
	require.Equal(t, [8]byte{0, 0, 0, 1, 100, 0x12, 0x34, 0x56}, f.Data)

	parsed, ok := ParseFrame(f)
	require.True(t, ok)
	require.Equal(t, m, parsed)

	neg, ok := ParseFrame(Message{ID: IDGyroX, Value: -2}.Frame(0))
	require.True(t, ok)
	require.Equal(t, int32(-2), neg.Value)

	_, ok = ParseFrame(canbus.Frame{Len: 4})
	require.False(t, ok)
}

type memBus struct {
	written []canbus.Frame
	err     error
}

func (b *memBus) ReadFrame() (canbus.Frame, error) { return canbus.Frame{}, io.EOF }

func (b *memBus) WriteFrame(f canbus.Frame) error {
	if b.err != nil {
		return b.err
	}
	b.written = append(b.written, f)
	return nil
}

func (b *memBus) messages(t *testing.T) []Message {
	var msgs []Message
	for _, f := range b.written {
		m, ok := ParseFrame(f)
		require.True(t, ok)
		msgs = append(msgs, m)
	}
	return msgs
}

func frame(id DataID, value int32, ts uint32) canbus.Frame {
	return Message{ID: id, Value: value, Timestamp: ts}.Frame(0)
}

func TestSensorAggregation(t *testing.T) {
	r := New(&memBus{})
	frames := []canbus.Frame{
		frame(IDAccelerationX, 1, 10),
		frame(IDAccelerationY, 2, 11),
		frame(IDAccelerationZ, 3, 12),
		frame(IDGyroX, -4, 13),
		frame(IDGyroY, -5, 14),
		frame(IDAccelerationX, 7, 15),
		frame(IDGyroZ, -6, 16),
	}
	for _, f := range frames {
		require.Empty(t, r.Receive(f))
	}
	msgs := r.Receive(frame(IDAltitude, 1200, 17))
	require.Equal(t, []fx.Message{&supervisor.SensorsMsg{Sensor: payload.Sensor{
		Timestamp: 17,
		Acc:       payload.Vector3{X: 7, Y: 2, Z: 3},
		Gyro:      payload.Vector3{X: -4, Y: -5, Z: -6},
		Baro:      1200,
	}}}, msgs)

	require.Empty(t, r.Receive(frame(IDAltitude, 1300, 18)), "flags cleared")
}

func TestFeedbackAggregation(t *testing.T) {
	r := New(&memBus{})
	require.Empty(t, r.Receive(frame(IDVanePos4, 40, 1)))
	require.Empty(t, r.Receive(frame(IDVanePos2, 20, 2)))
	require.Empty(t, r.Receive(frame(IDChamberPress, 900, 3)))
	require.Empty(t, r.Receive(frame(IDVanePos1, 10, 4)))
	msgs := r.Receive(frame(IDVanePos3, 30, 5))
	require.Equal(t, []fx.Message{&supervisor.FeedbackMsg{Feedback: payload.Feedback{
		Timestamp:       5,
		ChamberPressure: 900,
		Actuators:       [payload.ActuatorCount]int32{10, 20, 30, 40},
	}}}, msgs)
}

func TestRemoteCommands(t *testing.T) {
	r := New(&memBus{})
	testCases := []struct {
		value  int32
		action supervisor.Action
	}{
		{TVCBoot, supervisor.ActionBoot},
		{TVCShutdown, supervisor.ActionShutdown},
		{TVCAbort, supervisor.ActionAbort},
	}
	for _, tc := range testCases {
		msgs := r.Receive(frame(IDTVCCommand, tc.value, 0))
		require.Equal(t, []fx.Message{&supervisor.ScheduleMsg{Action: tc.action}}, msgs)
	}
	require.Empty(t, r.Receive(frame(IDTVCCommand, 42, 0)))
	require.Empty(t, r.Receive(frame(DataID(7), 1, 0)))
}

func TestOutbound(t *testing.T) {
	bus := &memBus{}
	r := New(bus)
	r.CANID = 0x20

	require.NoError(t, r.SendCommand(payload.Command{
		Timestamp: 99,
		Thrust:    500,
		Actuators: [payload.ActuatorCount]int32{1, 2, 3, 4},
	}))
	require.Equal(t, []Message{
		{IDThrustCmd, 500, 99},
		{IDVaneCmd1, 1, 99},
		{IDVaneCmd2, 2, 99},
		{IDVaneCmd3, 3, 99},
		{IDVaneCmd4, 4, 99},
	}, bus.messages(t))
	require.Equal(t, uint32(0x20), bus.written[0].ID)

	bus.written = nil
	r.Receive(frame(IDGyroX, 0, 77))
	require.NoError(t, r.Move(supervisor.NeutralPosition))
	require.NoError(t, r.Heartbeat(supervisor.StateCompute.Code(), 300))
	require.Equal(t, []Message{
		{IDVaneCmd1, 2048, 77},
		{IDVaneCmd2, 2048, 77},
		{IDVaneCmd3, 2048, 77},
		{IDVaneCmd4, 2048, 77},
		{IDTVCHeartbeat, 2, 300},
	}, bus.messages(t))

	bus.err = errors.New("bus off")
	require.Error(t, r.Heartbeat(0, 0))
}

func TestStreamBus(t *testing.T) {
	var buf bytes.Buffer
	bus := NewStreamBus(&buf)
	f := frame(IDAltitude, 321, 5)
	require.NoError(t, bus.WriteFrame(f))
	require.Equal(t, frameSize, buf.Len())

	got, err := bus.ReadFrame()
	require.NoError(t, err)
	require.Equal(t, f, got)

	_, err = bus.ReadFrame()
	require.Equal(t, io.EOF, err)
}

type chanBus struct {
	ch chan canbus.Frame
}

func (b *chanBus) ReadFrame() (canbus.Frame, error) {
	f, ok := <-b.ch
	if !ok {
		return f, io.EOF
	}
	return f, nil
}

func (b *chanBus) WriteFrame(canbus.Frame) error { return nil }

func TestRunPostsToLoop(t *testing.T) {
	bus := &chanBus{ch: make(chan canbus.Frame, 4)}
	r := New(bus)
	loop := fx.NewLoop()
	ctx, cancel := context.WithCancel(fx.WithLoop(context.Background(), loop))
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	bus.ch <- frame(IDTVCCommand, TVCAbort, 0)
	var got []fx.Message
	loop.AddController(fx.PrLvControl, fx.ControlFunc(func(cc fx.ControlContext) error {
		cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
			mctx.MessageTaken()
			got = append(got, mctx.CurrentMessage())
		}))
		return nil
	}))
	deadline := time.Now().Add(time.Second)
	for len(got) == 0 && time.Now().Before(deadline) {
		loop.Tick(context.Background(), time.Now())
		time.Sleep(5 * time.Millisecond)
	}
	require.NotEmpty(t, got)
	require.Equal(t, &supervisor.ScheduleMsg{Action: supervisor.ActionAbort}, got[0])

	close(bus.ch)
	require.Equal(t, io.EOF, <-errCh)
}

type recordBus struct {
	ch      chan canbus.Frame
	lock    sync.Mutex
	written []canbus.Frame
}

func (b *recordBus) ReadFrame() (canbus.Frame, error) {
	f, ok := <-b.ch
	if !ok {
		return f, io.EOF
	}
	return f, nil
}

func (b *recordBus) WriteFrame(f canbus.Frame) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.written = append(b.written, f)
	return nil
}

func (b *recordBus) frames() []canbus.Frame {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]canbus.Frame(nil), b.written...)
}

func TestForwardCommandKeepsLatest(t *testing.T) {
	bus := &recordBus{ch: make(chan canbus.Frame)}
	r := New(bus)

	// nothing drains the queue yet, forwarding must still return.
	require.NoError(t, r.ForwardCommand(payload.Command{Timestamp: 1, Thrust: 100}))
	require.NoError(t, r.ForwardCommand(payload.Command{Timestamp: 2, Thrust: 200}))
	require.Empty(t, bus.frames())

	ctx, cancel := context.WithCancel(fx.WithLoop(context.Background(), fx.NewLoop()))
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for len(bus.frames()) < 5 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	frames := bus.frames()
	require.Len(t, frames, 5)
	m, ok := ParseFrame(frames[0])
	require.True(t, ok)
	require.Equal(t, Message{IDThrustCmd, 200, 2}, m)

	close(bus.ch)
	require.Equal(t, io.EOF, <-errCh)
}
