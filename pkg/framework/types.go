// Package framework runs the control loop of a node: controllers
// executed in priority order each period, background runners feeding
// messages into the loop, and helpers to run and stop them together.
package framework

import (
	"context"
	"time"
)

// Named is implemented by components reporting a name in logs.
type Named interface {
	Name() string
}

// Runnable is a background component, e.g. a serial link or a
// console transport. Run blocks until ctx is done or it fails.
type Runnable interface {
	Run(context.Context) error
}

// Message is delivered to controllers through the loop.
type Message interface {
	// NewMessage creates an empty message of the same type.
	NewMessage() Message
}

// Controller runs once per loop iteration.
type Controller interface {
	Control(ControlContext) error
}

// ControlFunc is the func form of Controller.
type ControlFunc func(ControlContext) error

// Control implements Controller.
func (f ControlFunc) Control(cc ControlContext) error {
	return f(cc)
}

// ControlContext is the view of a controller into the current
// iteration. All controllers of an iteration see the same Time.
type ControlContext interface {
	// Context is canceled when the loop stops.
	Context() context.Context
	// Time is when the iteration started.
	Time() time.Time
	// Iteration counts from 1.
	Iteration() uint64
	// Elapsed is the time since the previous iteration, zero in the
	// first one.
	Elapsed() time.Duration
	// PriorityLevel is the level of the running controller.
	PriorityLevel() int
	// Messages are the messages collected when the iteration started.
	Messages() MessageStore
	// PostRun adds one-shot hooks run after the controllers of the
	// current level. Hooks added from a hook run in the next iteration.
	PostRun(hooks ...Controller)

	LoopControl
}

// PriorityLevels is the number of priority levels, 0 runs first.
const PriorityLevels int = 16

// Priority levels
const (
	PrLvTop    int = 0
	PrLvHigh   int = 4
	PrLvNormal int = 8
	PrLvLow    int = 12
	PrLvIdle   int = PriorityLevels - 1

	// PrLvSense runs bus relays so controllers see fresh frames.
	PrLvSense = PrLvHigh
	// PrLvControl runs the supervisor.
	PrLvControl = PrLvNormal
	// PrLvConsole runs console commands, after the supervisor settled
	// the state of the iteration.
	PrLvConsole = PrLvLow
	// PrLvPostProc runs post-processing.
	PrLvPostProc = PrLvIdle - 1
)

// LoopControl is available to controllers and runners through
// LoopCtlFrom.
type LoopControl interface {
	// PreRunAt adds one-shot hooks run before the controllers at
	// priorityLevel.
	PreRunAt(priorityLevel int, controllers ...Controller)
	// PostRunAt adds one-shot hooks run after the controllers at
	// priorityLevel.
	PostRunAt(priorityLevel int, controllers ...Controller)
	// PostMessage queues msg for the next iteration.
	PostMessage(Message)
	// TriggerNext starts the next iteration without waiting for the
	// period.
	TriggerNext()
}

// MessageStore holds the messages of an iteration.
type MessageStore interface {
	// ProcessMessages visits messages in order. Taken messages are
	// removed, the rest stay for later levels.
	ProcessMessages(MessageProcessor)

	MessageAppender
}

// MessageAppender adds messages to the current iteration, visible to
// controllers at later levels.
type MessageAppender interface {
	AddMessages(msgs ...Message)
}

// MessageProcessor visits messages of a MessageStore.
type MessageProcessor interface {
	ProcessMessage(MessageProcessingContext)
}

// ProcessMessageFunc is the func form of MessageProcessor.
type ProcessMessageFunc func(MessageProcessingContext)

// ProcessMessage implements MessageProcessor.
func (f ProcessMessageFunc) ProcessMessage(mc MessageProcessingContext) {
	f(mc)
}

// MessageProcessingContext is passed to a MessageProcessor per message.
type MessageProcessingContext interface {
	CurrentMessage() Message
	// MessageTaken removes the message from the store.
	MessageTaken()
	// StopProcessing skips the remaining messages.
	StopProcessing()

	MessageAppender
}
