// Package companion simulates the companion computer on the far side of
// the link: it answers the node's requests, follows the power lines and
// streams guidance commands back.
package companion

import (
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/link"
	"github.com/robotalks/tvc.go/pkg/payload"
)

// Power is the companion side of the power lines.
type Power interface {
	Enabled() bool
	SetRunGood(bool)
}

// AlwaysOn is Power for a companion without power lines.
type AlwaysOn struct{}

// Enabled implements Power.
func (AlwaysOn) Enabled() bool { return true }

// SetRunGood implements Power.
func (AlwaysOn) SetRunGood(bool) {}

// Guidance computes a command from the latest sets.
type Guidance func(payload.Sensor, payload.Feedback) payload.Command

// HoldNeutral is the default guidance: actuators centred, thrust
// following the chamber pressure.
func HoldNeutral(s payload.Sensor, fb payload.Feedback) payload.Command {
	cmd := payload.Command{Timestamp: s.Timestamp, Thrust: fb.ChamberPressure}
	for i := range cmd.Actuators {
		cmd.Actuators[i] = 2048
	}
	return cmd
}

// Defaults
const (
	DefaultBootDelay     = 500 * time.Millisecond
	DefaultShutdownDelay = 300 * time.Millisecond
)

// Counters of a Sim.
type Counters struct {
	Pings     uint64
	Sensors   uint64
	Feedback  uint64
	Shutdowns uint64
	Commands  uint64
	Rejected  uint64
}

// Sim is the simulated companion.
type Sim struct {
	Link  *link.Link
	Power Power

	BootDelay     time.Duration
	ShutdownDelay time.Duration
	// CommandPeriod is the interval of command updates, 0 disables them.
	CommandPeriod time.Duration
	Guidance      Guidance

	lock       sync.Mutex
	running    bool
	halting    bool
	enabled    bool
	bootAt     time.Time
	shutdownAt time.Time
	lastCmd    time.Time
	sensor     payload.Sensor
	feedback   payload.Feedback
	fresh      bool
	counters   Counters
}

// New creates a Sim on port.
func New(port io.ReadWriter, power Power) *Sim {
	s := &Sim{
		Power:         power,
		BootDelay:     DefaultBootDelay,
		ShutdownDelay: DefaultShutdownDelay,
		Guidance:      HoldNeutral,
	}
	s.Link = link.New("companion", port, nil)
	s.Link.Role = link.RoleCompanion
	s.Link.Responder = s
	return s
}

// AddToLoop implements LoopAdder.
func (s *Sim) AddToLoop(l *fx.Loop) {
	l.AddRunnable(s.Link)
	l.AddController(fx.PrLvControl, s)
}

// Running tells whether the companion asserts run-good.
func (s *Sim) Running() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.running
}

// Counters returns the request counters.
func (s *Sim) Counters() Counters {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.counters
}

// Respond implements link.Responder.
func (s *Sim) Respond(req *link.Frame) *link.Frame {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch req.Opcode.Code() {
	case link.OpPing:
		s.counters.Pings++
		return link.Reply(req, link.PingMarker)
	case link.OpShutdown:
		s.counters.Shutdowns++
		if s.running {
			s.halting = true
		}
		return link.Reply(req, link.Ack)
	case link.OpSensors:
		if err := s.sensor.UnmarshalBinary(req.Data); err != nil {
			s.counters.Rejected++
			return link.Nack(req, link.NackInvalid)
		}
		s.counters.Sensors++
		s.fresh = true
		return link.Reply(req, link.Ack)
	case link.OpFeedback:
		if err := s.feedback.UnmarshalBinary(req.Data); err != nil {
			s.counters.Rejected++
			return link.Nack(req, link.NackInvalid)
		}
		s.counters.Feedback++
		s.fresh = true
		return link.Reply(req, link.Ack)
	}
	s.counters.Rejected++
	return link.Nack(req, link.NackUnknown)
}

// Control implements Controller. It follows the enable line and sends
// command updates.
func (s *Sim) Control(cc fx.ControlContext) error {
	now := cc.Time()
	enabled := s.Power.Enabled()

	s.lock.Lock()
	switch {
	case enabled && !s.enabled:
		s.bootAt = now.Add(s.BootDelay)
		glog.Info("companion: powered")
	case !enabled && s.enabled:
		s.setRunning(false)
		glog.Info("companion: unpowered")
	}
	s.enabled = enabled
	if enabled && !s.running && !s.bootAt.IsZero() && !now.Before(s.bootAt) {
		s.bootAt = time.Time{}
		s.setRunning(true)
		glog.Info("companion: running")
	}
	if s.running && s.halting && s.shutdownAt.IsZero() {
		s.shutdownAt = now.Add(s.ShutdownDelay)
		glog.Info("companion: shutting down")
	}
	if s.running && !s.shutdownAt.IsZero() && !now.Before(s.shutdownAt) {
		s.setRunning(false)
		glog.Info("companion: halted")
	}
	var cmd *payload.Command
	if s.running && s.fresh && s.CommandPeriod > 0 && now.Sub(s.lastCmd) >= s.CommandPeriod {
		c := s.Guidance(s.sensor, s.feedback)
		cmd, s.fresh, s.lastCmd = &c, false, now
	}
	s.lock.Unlock()

	if cmd != nil {
		data, _ := cmd.MarshalBinary()
		if _, err := s.Link.Exchange(link.Request{Opcode: link.OpCommand, Data: data}); err != nil {
			glog.V(1).Infof("companion: command update: %v", err)
		} else {
			s.lock.Lock()
			s.counters.Commands++
			s.lock.Unlock()
		}
	}
	return nil
}

func (s *Sim) setRunning(v bool) {
	s.running = v
	if !v {
		s.halting, s.shutdownAt = false, time.Time{}
		s.fresh = false
	}
	s.Power.SetRunGood(v)
}
