package console

import (
	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/console/msgs"
	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/link"
	"github.com/robotalks/tvc.go/pkg/payload"
	"github.com/robotalks/tvc.go/pkg/storage"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

// Download limits.
const (
	DefaultDownloadCount = 5
	MaxDownloadCount     = 100
)

// Node is the part of the supervisor exposed to the console.
type Node interface {
	Snapshot() supervisor.Snapshot
	Schedule(supervisor.Action) bool
	Move(target int32) bool
}

// FlightLog is the recorder exposed to the console.
type FlightLog interface {
	Active() bool
	Used() uint32
	Samples(id uint32, n int) ([]storage.Sample, error)
	Restart()
}

// LinkMonitor provides the companion link counters.
type LinkMonitor interface {
	Stats() link.Stats
}

// Service answers console commands and publishes state changes as
// events. Action requests are always acknowledged, whether or not the
// state machine accepts them; ground stations watch the status for the
// outcome.
type Service struct {
	Node      Node
	Log       FlightLog
	Link      LinkMonitor
	Registrar Registrar

	lastState supervisor.State
	started   bool
}

// NewService creates a Service.
func NewService(node Node, log FlightLog, lnk LinkMonitor, reg Registrar) *Service {
	return &Service{Node: node, Log: log, Link: lnk, Registrar: reg}
}

// AddToLoop implements LoopAdder. The Registrar is added by its owner.
func (s *Service) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvConsole, s)
}

// Control implements Controller.
func (s *Service) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		cmdMsg, ok := mctx.CurrentMessage().(*CommandMsg)
		if !ok {
			return
		}
		reply := s.Handle(cmdMsg.Command.Msg())
		if reply == nil {
			return
		}
		mctx.MessageTaken()
		if err := cmdMsg.Command.Done(reply); err != nil {
			glog.V(1).Infof("console: reply: %v", err)
		}
	}))
	s.publish(cc)
	return nil
}

func (s *Service) publish(cc fx.ControlContext) {
	state := s.Node.Snapshot().State
	if s.started && state == s.lastState {
		return
	}
	s.started, s.lastState = true, state
	if s.Registrar == nil {
		return
	}
	if err := s.Registrar.SendEvent(cc.Context(), &msgs.StatusEvent{Status: s.status()}); err != nil {
		glog.V(1).Infof("console: status event: %v", err)
	}
}

// Handle returns the reply to a command, nil if the command is not
// for the node.
func (s *Service) Handle(msg fx.Message) fx.Message {
	switch m := msg.(type) {
	case *msgs.StatusQuery:
		return s.status()
	case *msgs.PayloadsQuery:
		return s.payloads()
	case *msgs.Boot:
		return s.request(supervisor.ActionBoot)
	case *msgs.Shutdown:
		return s.request(supervisor.ActionShutdown)
	case *msgs.Abort:
		return s.request(supervisor.ActionAbort)
	case *msgs.Recover:
		return s.request(supervisor.ActionRecover)
	case *msgs.Move:
		if !s.Node.Move(m.Target) {
			glog.V(1).Infof("console: move to %d not accepted", m.Target)
		}
		return msgs.NewCommandOK()
	case *msgs.Download:
		return s.download(m)
	case *msgs.RecorderRestart:
		if s.Log == nil {
			return msgs.CommandErrorf("recorder not available")
		}
		s.Log.Restart()
		return msgs.NewCommandOK()
	}
	return nil
}

func (s *Service) request(a supervisor.Action) fx.Message {
	if !s.Node.Schedule(a) {
		glog.V(1).Infof("console: %s not accepted", a)
	}
	return msgs.NewCommandOK()
}

func (s *Service) status() *msgs.Status {
	snap := s.Node.Snapshot()
	st := &msgs.Status{
		State:       snap.State.String(),
		Shadow:      snap.Shadow.String(),
		Scheduled:   snap.Scheduled.String(),
		Iteration:   snap.Iteration,
		Time:        snap.Time,
		CountdownMs: snap.Countdown.Milliseconds(),
	}
	if s.Log != nil {
		st.Recording = s.Log.Active()
		st.LogUsed = s.Log.Used()
	}
	if s.Link != nil {
		stats := s.Link.Stats()
		st.Link = &msgs.LinkStats{
			Exchanges:      stats.Exchanges,
			Timeouts:       stats.Timeouts,
			RemoteErrors:   stats.RemoteErrors,
			Busy:           stats.Busy,
			ChecksumErrors: stats.ChecksumErrors,
			LateReplies:    stats.LateReplies,
			Flushes:        stats.Flushes,
		}
	}
	return st
}

func (s *Service) payloads() *msgs.Payloads {
	snap := s.Node.Snapshot()
	return &msgs.Payloads{
		Sensor:   SensorRecord(snap.Sensor),
		Feedback: FeedbackRecord(snap.Feedback),
		Command:  CommandRecord(snap.Command),
	}
}

func (s *Service) download(m *msgs.Download) fx.Message {
	if s.Log == nil {
		return msgs.CommandErrorf("recorder not available")
	}
	count := int(m.Count)
	if count == 0 {
		count = DefaultDownloadCount
	} else if count > MaxDownloadCount {
		count = MaxDownloadCount
	}
	reply := &msgs.Samples{Used: s.Log.Used()}
	samples, err := s.Log.Samples(m.Location, count)
	if err != nil && err != storage.ErrNoSample {
		return msgs.NewCommandErr(err)
	}
	for _, sample := range samples {
		reply.Samples = append(reply.Samples, SampleRecord(sample))
	}
	return reply
}

// SensorRecord converts a sensor set.
func SensorRecord(s payload.Sensor) *msgs.SensorRecord {
	return &msgs.SensorRecord{
		Timestamp: s.Timestamp,
		Acc:       vector(s.Acc),
		Gyro:      vector(s.Gyro),
		Baro:      s.Baro,
	}
}

// FeedbackRecord converts a feedback set.
func FeedbackRecord(f payload.Feedback) *msgs.FeedbackRecord {
	return &msgs.FeedbackRecord{
		Timestamp:       f.Timestamp,
		ChamberPressure: f.ChamberPressure,
		Actuators:       append([]int32(nil), f.Actuators[:]...),
	}
}

// CommandRecord converts a guidance command.
func CommandRecord(c payload.Command) *msgs.CommandRecord {
	return &msgs.CommandRecord{
		Timestamp: c.Timestamp,
		Thrust:    c.Thrust,
		Actuators: append([]int32(nil), c.Actuators[:]...),
		Position:  vector(c.Position),
		Velocity:  vector(c.Velocity),
		Mode:      uint32(c.Mode),
	}
}

// SampleRecord converts a recorded sample.
func SampleRecord(s storage.Sample) *msgs.SampleRecord {
	return &msgs.SampleRecord{
		Id:              uint32(s.ID),
		State:           uint32(s.State),
		CompanionState:  uint32(s.CompanionState),
		ChamberPressure: s.ChamberPressure,
		Altitude:        s.Altitude,
		Thrust:          s.Thrust,
		PositionZ:       s.PositionZ,
		VelocityZ:       s.VelocityZ,
		Time:            s.Time,
	}
}

func vector(v payload.Vector3) []int32 {
	return []int32{v.X, v.Y, v.Z}
}
