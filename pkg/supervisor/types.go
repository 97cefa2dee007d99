package supervisor

import (
	"fmt"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/payload"
)

// State is the state of the supervisor.
type State int

// States
const (
	StateIdle State = iota
	StateBoot
	StateCompute
	StateShutdown
	StateAbort
	StateError
	stateCount
)

var stateNames = [stateCount]string{"idle", "boot", "compute", "shutdown", "abort", "error"}

// String implements fmt.Stringer.
func (s State) String() string {
	if s >= 0 && s < stateCount {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Code is the wire code of the state on the vehicle bus.
func (s State) Code() uint8 {
	return uint8(s)
}

// ParseState maps a name back to a State.
func ParseState(name string) (State, bool) {
	for n, str := range stateNames {
		if str == name {
			return State(n), true
		}
	}
	return StateIdle, false
}

// Action is a request occupying the schedule slot.
type Action int

// Actions
const (
	ActionNothing Action = iota
	ActionAbort
	ActionBoot
	ActionShutdown
	ActionRecover
	ActionMove
)

// String implements fmt.Stringer.
func (a Action) String() string {
	switch a {
	case ActionNothing:
		return "nothing"
	case ActionAbort:
		return "abort"
	case ActionBoot:
		return "boot"
	case ActionShutdown:
		return "shutdown"
	case ActionRecover:
		return "recover"
	case ActionMove:
		return "move"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// authorization lists the actions which may be scheduled in each state.
// Abort is handled separately.
var authorization = [stateCount][]Action{
	StateIdle:     {ActionBoot, ActionMove},
	StateBoot:     nil,
	StateCompute:  {ActionShutdown},
	StateShutdown: nil,
	StateAbort:    {ActionRecover},
	StateError:    {ActionRecover},
}

// Authorized tells whether the action may be scheduled in the state.
func Authorized(s State, a Action) bool {
	if a == ActionAbort {
		return s != StateAbort && s != StateError
	}
	if s < 0 || s >= stateCount {
		return false
	}
	for _, allowed := range authorization[s] {
		if allowed == a {
			return true
		}
	}
	return false
}

// Companion is the power-sequenced coprocessor behind the link.
type Companion interface {
	Boot() error
	IsReady() bool
	Shutdown()
	IsShutdown() bool
	ForceShutdown()
	SendSensors(payload.Sensor) error
	SendFeedback(payload.Feedback) error
}

// VehicleBus forwards guidance output and status to the vehicle.
type VehicleBus interface {
	// ForwardCommand is called from the link reception path and must not
	// block.
	ForwardCommand(payload.Command) error
	Heartbeat(state uint8, timestamp uint32) error
}

// Recorder is the flight-data log.
type Recorder interface {
	Enable()
	Disable()
	// Notify triggers recording a sample.
	Notify()
}

// Actuator drives the thrust vanes directly.
type Actuator interface {
	Move(target int32) error
}

// NeutralPosition centres the vanes.
const NeutralPosition int32 = 2048

// ScheduleMsg requests an action from a background context.
type ScheduleMsg struct {
	Action Action
	Target int32
}

// NewMessage implements Message.
func (m *ScheduleMsg) NewMessage() fx.Message { return &ScheduleMsg{} }

// SensorsMsg delivers a completed sensor set.
type SensorsMsg struct {
	Sensor payload.Sensor
}

// NewMessage implements Message.
func (m *SensorsMsg) NewMessage() fx.Message { return &SensorsMsg{} }

// FeedbackMsg delivers a completed feedback set.
type FeedbackMsg struct {
	Feedback payload.Feedback
}

// NewMessage implements Message.
func (m *FeedbackMsg) NewMessage() fx.Message { return &FeedbackMsg{} }
