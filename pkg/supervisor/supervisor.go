package supervisor

import (
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/payload"
)

// Defaults
const (
	DefaultPeriod         = 50 * time.Millisecond
	DefaultHeartbeatEvery = 10
	DefaultShutdownGrace  = 5 * time.Second
)

// Supervisor is the control state machine. It runs as a controller on
// the framework loop and owns the schedule slot.
type Supervisor struct {
	Companion Companion
	Bus       VehicleBus
	Recorder  Recorder
	Actuator  Actuator

	// HeartbeatEvery is the number of ticks between heartbeats, 0 disables.
	HeartbeatEvery uint64
	// ShutdownGrace is how long the companion may take to power down
	// before it is forced.
	ShutdownGrace time.Duration

	lock       sync.Mutex
	state      State
	shadow     State
	slot       Action
	moveTarget int32
	counter    time.Duration
	counting   bool
	forced     bool
	iteration  uint64
	start      time.Time
	lastTick   time.Time
	tick       time.Time

	dataLock      sync.Mutex
	sensor        payload.Sensor
	sensorFresh   bool
	feedback      payload.Feedback
	feedbackFresh bool
	command       payload.Command
}

// Status is a snapshot of the state machine.
type Status struct {
	State     State
	Shadow    State
	Scheduled Action
	Iteration uint64
	// Time is milliseconds since the first tick.
	Time uint32
	// Period is the time between the last two ticks.
	Period    time.Duration
	Countdown time.Duration
}

// Snapshot is a copy of the status and the cached records.
type Snapshot struct {
	Status
	Sensor   payload.Sensor
	Feedback payload.Feedback
	Command  payload.Command
}

// New creates a Supervisor in Idle.
func New(companion Companion) *Supervisor {
	return &Supervisor{
		Companion:      companion,
		HeartbeatEvery: DefaultHeartbeatEvery,
		ShutdownGrace:  DefaultShutdownGrace,
	}
}

// AddToLoop implements LoopAdder.
func (s *Supervisor) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, s)
}

// Schedule requests an action. It reports whether the request took the
// slot; rejected requests are dropped.
func (s *Supervisor) Schedule(a Action) bool {
	return s.schedule(a, 0)
}

// Boot schedules the companion boot.
func (s *Supervisor) Boot() bool { return s.Schedule(ActionBoot) }

// Shutdown schedules the companion shutdown.
func (s *Supervisor) Shutdown() bool { return s.Schedule(ActionShutdown) }

// Abort schedules an abort.
func (s *Supervisor) Abort() bool { return s.Schedule(ActionAbort) }

// Recover schedules leaving Abort or Error.
func (s *Supervisor) Recover() bool { return s.Schedule(ActionRecover) }

// Move schedules a manual actuator move.
func (s *Supervisor) Move(target int32) bool { return s.schedule(ActionMove, target) }

func (s *Supervisor) schedule(a Action, target int32) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if a == ActionNothing || !Authorized(s.state, a) {
		glog.V(2).Infof("supervisor: %s dropped in %s", a, s.state)
		return false
	}
	if a != ActionAbort && s.slot != ActionNothing {
		glog.V(2).Infof("supervisor: %s dropped, %s pending", a, s.slot)
		return false
	}
	s.slot = a
	if a == ActionMove {
		s.moveTarget = target
	}
	glog.V(1).Infof("supervisor: %s scheduled in %s", a, s.state)
	return true
}

// HandleCommand stores a command received from the companion, forwards
// it to the vehicle bus and triggers a log sample.
func (s *Supervisor) HandleCommand(cmd payload.Command) {
	s.dataLock.Lock()
	s.command = cmd
	s.dataLock.Unlock()
	if s.Bus != nil {
		if err := s.Bus.ForwardCommand(cmd); err != nil {
			glog.Warningf("supervisor: forward command: %v", err)
		}
	}
	if s.Recorder != nil {
		s.Recorder.Notify()
	}
}

// UpdateSensors caches a sensor set; it is streamed in Compute.
func (s *Supervisor) UpdateSensors(sensor payload.Sensor) {
	s.dataLock.Lock()
	s.sensor, s.sensorFresh = sensor, true
	s.dataLock.Unlock()
}

// UpdateFeedback caches a feedback set; it is streamed in Compute.
func (s *Supervisor) UpdateFeedback(fb payload.Feedback) {
	s.dataLock.Lock()
	s.feedback, s.feedbackFresh = fb, true
	s.dataLock.Unlock()
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Status returns a status snapshot.
func (s *Supervisor) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.statusLocked()
}

func (s *Supervisor) statusLocked() Status {
	st := Status{
		State:     s.state,
		Shadow:    s.shadow,
		Scheduled: s.slot,
		Iteration: s.iteration,
		Time:      s.millis(),
	}
	if !s.lastTick.IsZero() {
		st.Period = s.tick.Sub(s.lastTick)
	}
	if s.counting {
		st.Countdown = s.counter
	}
	return st
}

func (s *Supervisor) millis() uint32 {
	if s.start.IsZero() {
		return 0
	}
	return uint32(s.tick.Sub(s.start) / time.Millisecond)
}

// Sensors returns a copy of the cached sensor set.
func (s *Supervisor) Sensors() payload.Sensor {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	return s.sensor
}

// Feedback returns a copy of the cached feedback set.
func (s *Supervisor) Feedback() payload.Feedback {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	return s.feedback
}

// Command returns a copy of the last command.
func (s *Supervisor) Command() payload.Command {
	s.dataLock.Lock()
	defer s.dataLock.Unlock()
	return s.command
}

// Snapshot returns a copy of everything.
func (s *Supervisor) Snapshot() Snapshot {
	snap := Snapshot{Status: s.Status()}
	s.dataLock.Lock()
	snap.Sensor, snap.Feedback, snap.Command = s.sensor, s.feedback, s.command
	s.dataLock.Unlock()
	return snap
}

// Control implements Controller.
func (s *Supervisor) Control(cc fx.ControlContext) error {
	if s.update(cc) {
		s.enterIdle()
	}
	s.drain(cc)
	s.heartbeat()
	if s.scheduled() == ActionAbort {
		s.enterAbort()
		s.done(ActionAbort)
	}
	switch s.State() {
	case StateIdle:
		s.idle()
	case StateBoot:
		s.boot()
	case StateCompute:
		s.compute()
	case StateShutdown:
		s.shutdown()
	case StateAbort, StateError:
		s.waitRecover()
	}
	return nil
}

// update advances the clock and reports whether this is the first tick.
func (s *Supervisor) update(cc fx.ControlContext) (first bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.lastTick, s.tick = s.tick, cc.Time()
	if s.start.IsZero() {
		s.start, first = s.tick, true
	}
	s.iteration++
	if s.counting {
		s.counter -= cc.Elapsed()
		if s.counter < 0 {
			s.counter = 0
		}
	}
	return
}

func (s *Supervisor) drain(cc fx.ControlContext) {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		switch m := mctx.CurrentMessage().(type) {
		case *ScheduleMsg:
			mctx.MessageTaken()
			s.schedule(m.Action, m.Target)
		case *SensorsMsg:
			mctx.MessageTaken()
			s.UpdateSensors(m.Sensor)
		case *FeedbackMsg:
			mctx.MessageTaken()
			s.UpdateFeedback(m.Feedback)
		}
	}))
}

func (s *Supervisor) heartbeat() {
	if s.Bus == nil || s.HeartbeatEvery == 0 {
		return
	}
	s.lock.Lock()
	iter, state, ts := s.iteration, s.state, s.millis()
	s.lock.Unlock()
	if iter%s.HeartbeatEvery != 0 {
		return
	}
	if err := s.Bus.Heartbeat(state.Code(), ts); err != nil {
		glog.V(2).Infof("supervisor: heartbeat: %v", err)
	}
}

func (s *Supervisor) scheduled() Action {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.slot
}

// done clears the slot which must still hold a. Anything else is an
// accounting violation and forces Error.
func (s *Supervisor) done(a Action) {
	s.lock.Lock()
	if s.slot == a {
		s.slot = ActionNothing
		s.lock.Unlock()
		return
	}
	found := s.slot
	s.lock.Unlock()
	glog.Errorf("supervisor: schedule accounting violated, expect %s, found %s", a, found)
	s.enterError()
}

func (s *Supervisor) setState(st State) State {
	s.lock.Lock()
	defer s.lock.Unlock()
	prev := s.state
	s.state = st
	if prev != st {
		glog.Infof("supervisor: %s -> %s", prev, st)
	}
	return prev
}

func (s *Supervisor) startCountdown(d time.Duration) {
	s.lock.Lock()
	s.counter, s.counting, s.forced = d, true, false
	s.lock.Unlock()
}

func (s *Supervisor) stopCountdown() {
	s.lock.Lock()
	s.counter, s.counting = 0, false
	s.lock.Unlock()
}

func (s *Supervisor) forceShutdown() {
	if s.Companion != nil {
		s.Companion.ForceShutdown()
	}
}

func (s *Supervisor) recorderOff() {
	if s.Recorder != nil {
		s.Recorder.Disable()
	}
}

func (s *Supervisor) enterIdle() {
	s.setState(StateIdle)
	s.stopCountdown()
	s.forceShutdown()
	s.recorderOff()
}

func (s *Supervisor) idle() {
	switch s.scheduled() {
	case ActionBoot:
		s.setState(StateBoot)
		if s.Companion != nil {
			if err := s.Companion.Boot(); err != nil {
				glog.Errorf("supervisor: boot companion: %v", err)
			}
		}
		s.done(ActionBoot)
	case ActionMove:
		s.lock.Lock()
		target := s.moveTarget
		s.lock.Unlock()
		if s.Actuator != nil {
			if err := s.Actuator.Move(target); err != nil {
				glog.Warningf("supervisor: move %d: %v", target, err)
			}
		}
		s.done(ActionMove)
	}
}

func (s *Supervisor) boot() {
	if s.Companion != nil && s.Companion.IsReady() {
		s.setState(StateCompute)
		if s.Recorder != nil {
			s.Recorder.Enable()
		}
	}
}

func (s *Supervisor) compute() {
	if s.scheduled() == ActionShutdown {
		s.setState(StateShutdown)
		if s.Companion != nil {
			s.Companion.Shutdown()
		}
		s.startCountdown(s.ShutdownGrace)
		s.done(ActionShutdown)
		return
	}
	if s.Companion == nil {
		return
	}
	s.dataLock.Lock()
	sensor, sendSensor := s.sensor, s.sensorFresh
	fb, sendFeedback := s.feedback, s.feedbackFresh
	s.sensorFresh, s.feedbackFresh = false, false
	s.dataLock.Unlock()
	if sendSensor {
		if err := s.Companion.SendSensors(sensor); err != nil {
			glog.V(2).Infof("supervisor: send sensors: %v", err)
		}
	}
	if sendFeedback {
		if err := s.Companion.SendFeedback(fb); err != nil {
			glog.V(2).Infof("supervisor: send feedback: %v", err)
		}
	}
}

func (s *Supervisor) shutdown() {
	if s.Companion == nil || s.Companion.IsShutdown() {
		s.enterIdle()
		return
	}
	s.lock.Lock()
	expired := s.counting && s.counter == 0 && !s.forced
	if expired {
		s.forced = true
	}
	s.lock.Unlock()
	if expired {
		glog.Warningf("supervisor: companion still running after %v, forcing power down", s.ShutdownGrace)
		s.forceShutdown()
	}
}

func (s *Supervisor) enterAbort() {
	s.lock.Lock()
	prev := s.state
	s.shadow = prev
	s.state = StateAbort
	s.counter, s.counting = 0, false
	s.lock.Unlock()
	glog.Warningf("supervisor: abort in %s", prev)
	s.forceShutdown()
	if s.Actuator != nil {
		if err := s.Actuator.Move(NeutralPosition); err != nil {
			glog.Warningf("supervisor: centre actuator: %v", err)
		}
	}
	s.recorderOff()
}

func (s *Supervisor) enterError() {
	s.lock.Lock()
	s.state = StateError
	s.slot = ActionNothing
	s.counter, s.counting = 0, false
	s.lock.Unlock()
	s.forceShutdown()
	s.recorderOff()
}

func (s *Supervisor) waitRecover() {
	if s.scheduled() == ActionRecover {
		s.enterIdle()
		s.done(ActionRecover)
	}
}
