package relay

import (
	"context"
	"sync"

	"github.com/golang/glog"
	"github.com/notnil/canbus"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/payload"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

const (
	sensorAccX uint8 = 1 << iota
	sensorAccY
	sensorAccZ
	sensorGyroX
	sensorGyroY
	sensorGyroZ
	sensorAlti

	sensorAll = sensorAccX | sensorAccY | sensorAccZ |
		sensorGyroX | sensorGyroY | sensorGyroZ | sensorAlti
)

const (
	feedbackPress uint8 = 1 << iota
	feedbackVane1
	feedbackVane2
	feedbackVane3
	feedbackVane4

	feedbackAll = feedbackPress | feedbackVane1 | feedbackVane2 | feedbackVane3 | feedbackVane4
)

// Relay connects the supervisor to the vehicle bus. Inbound telemetry
// is aggregated into sensor and feedback sets and posted to the loop
// together with remote TVC commands; outbound it forwards guidance
// commands, heartbeats and actuator moves.
type Relay struct {
	Bus Bus
	// CANID is the identifier of frames sent by the node.
	CANID uint32

	cmdCh         chan payload.Command
	lock          sync.Mutex
	sensor        payload.Sensor
	sensorFlags   uint8
	feedback      payload.Feedback
	feedbackFlags uint8
	lastTimestamp uint32
}

// New creates a Relay.
func New(bus Bus) *Relay {
	return &Relay{Bus: bus, cmdCh: make(chan payload.Command, 1)}
}

// AddToLoop implements LoopAdder.
func (r *Relay) AddToLoop(l *fx.Loop) {
	l.AddRunnable(r)
}

// Run implements Runnable. It must be started by the loop.
func (r *Relay) Run(ctx context.Context) error {
	ctl := fx.LoopCtlFrom(ctx)
	frameCh := make(chan canbus.Frame, 16)
	errCh := make(chan error, 1)
	go r.readLoop(ctx, frameCh, errCh)
	for {
		select {
		case f := <-frameCh:
			for _, msg := range r.Receive(f) {
				ctl.PostMessage(msg)
			}
		case cmd := <-r.cmdCh:
			if err := r.SendCommand(cmd); err != nil {
				glog.Warningf("relay: forward command: %v", err)
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Relay) readLoop(ctx context.Context, frameCh chan canbus.Frame, errCh chan error) {
	for {
		f, err := r.Bus.ReadFrame()
		if err != nil {
			errCh <- err
			return
		}
		select {
		case frameCh <- f:
		case <-ctx.Done():
			return
		}
	}
}

// Receive handles one inbound frame and returns the loop messages it
// completes.
func (r *Relay) Receive(f canbus.Frame) []fx.Message {
	m, ok := ParseFrame(f)
	if !ok {
		glog.V(4).Infof("relay: ignore frame id=%x len=%d", f.ID, f.Len)
		return nil
	}
	glog.V(5).Infof("relay: %s", m)
	if m.ID == IDTVCCommand {
		if msg := commandMessage(m.Value); msg != nil {
			return []fx.Message{msg}
		}
		glog.Warningf("relay: unknown tvc command %d", m.Value)
		return nil
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	r.lastTimestamp = m.Timestamp
	switch m.ID {
	case IDAccelerationX:
		r.sensor.Acc.X, r.sensorFlags = m.Value, r.sensorFlags|sensorAccX
	case IDAccelerationY:
		r.sensor.Acc.Y, r.sensorFlags = m.Value, r.sensorFlags|sensorAccY
	case IDAccelerationZ:
		r.sensor.Acc.Z, r.sensorFlags = m.Value, r.sensorFlags|sensorAccZ
	case IDGyroX:
		r.sensor.Gyro.X, r.sensorFlags = m.Value, r.sensorFlags|sensorGyroX
	case IDGyroY:
		r.sensor.Gyro.Y, r.sensorFlags = m.Value, r.sensorFlags|sensorGyroY
	case IDGyroZ:
		r.sensor.Gyro.Z, r.sensorFlags = m.Value, r.sensorFlags|sensorGyroZ
	case IDAltitude:
		r.sensor.Baro, r.sensorFlags = m.Value, r.sensorFlags|sensorAlti
	case IDChamberPress:
		r.feedback.ChamberPressure, r.feedbackFlags = m.Value, r.feedbackFlags|feedbackPress
	case IDVanePos1, IDVanePos2, IDVanePos3, IDVanePos4:
		n := m.ID - IDVanePos1
		r.feedback.Actuators[n], r.feedbackFlags = m.Value, r.feedbackFlags|feedbackVane1<<n
	default:
		return nil
	}

	var msgs []fx.Message
	if r.sensorFlags == sensorAll {
		r.sensor.Timestamp = m.Timestamp
		msgs = append(msgs, &supervisor.SensorsMsg{Sensor: r.sensor})
		r.sensorFlags = 0
	}
	if r.feedbackFlags == feedbackAll {
		r.feedback.Timestamp = m.Timestamp
		msgs = append(msgs, &supervisor.FeedbackMsg{Feedback: r.feedback})
		r.feedbackFlags = 0
	}
	return msgs
}

func commandMessage(value int32) fx.Message {
	switch value {
	case TVCBoot:
		return &supervisor.ScheduleMsg{Action: supervisor.ActionBoot}
	case TVCShutdown:
		return &supervisor.ScheduleMsg{Action: supervisor.ActionShutdown}
	case TVCAbort:
		return &supervisor.ScheduleMsg{Action: supervisor.ActionAbort}
	}
	return nil
}

func (r *Relay) send(msgs ...Message) error {
	for _, m := range msgs {
		if err := r.Bus.WriteFrame(m.Frame(r.CANID)); err != nil {
			return err
		}
	}
	return nil
}

// ForwardCommand queues a command for Run to send. Only the latest
// command is kept while the bus is busy.
func (r *Relay) ForwardCommand(cmd payload.Command) error {
	for {
		select {
		case r.cmdCh <- cmd:
			return nil
		default:
		}
		select {
		case stale := <-r.cmdCh:
			glog.V(3).Infof("relay: drop command ts=%d", stale.Timestamp)
		default:
		}
	}
}

// SendCommand sends thrust and vane commands to the vehicle.
func (r *Relay) SendCommand(cmd payload.Command) error {
	ts := cmd.Timestamp
	return r.send(
		Message{ID: IDThrustCmd, Value: cmd.Thrust, Timestamp: ts},
		Message{ID: IDVaneCmd1, Value: cmd.Actuators[0], Timestamp: ts},
		Message{ID: IDVaneCmd2, Value: cmd.Actuators[1], Timestamp: ts},
		Message{ID: IDVaneCmd3, Value: cmd.Actuators[2], Timestamp: ts},
		Message{ID: IDVaneCmd4, Value: cmd.Actuators[3], Timestamp: ts},
	)
}

// Heartbeat sends the supervisor state.
func (r *Relay) Heartbeat(state uint8, timestamp uint32) error {
	return r.send(Message{ID: IDTVCHeartbeat, Value: int32(state), Timestamp: timestamp})
}

// Move drives all vanes to the target.
func (r *Relay) Move(target int32) error {
	r.lock.Lock()
	ts := r.lastTimestamp
	r.lock.Unlock()
	var msgs []Message
	for id := IDVaneCmd1; id <= IDVaneCmd4; id++ {
		msgs = append(msgs, Message{ID: id, Value: target, Timestamp: ts})
	}
	return r.send(msgs...)
}
