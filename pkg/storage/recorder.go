package storage

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

// Defaults
const (
	DefaultStopDelay = 3 * time.Second
	pollInterval     = 100 * time.Millisecond
)

// Source provides the data of a sample.
type Source interface {
	Snapshot() supervisor.Snapshot
}

// Recorder writes a sample of the Source into the Log every time it is
// notified while enabled.
type Recorder struct {
	Log    *Log
	Source Source
	// StopDelay keeps recording for a while after Disable.
	StopDelay time.Duration

	notifyCh chan struct{}

	lock      sync.Mutex
	active    bool
	stopping  bool
	remaining time.Duration
	restart   bool
	lastStep  time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(log *Log, source Source) *Recorder {
	return &Recorder{
		Log:       log,
		Source:    source,
		StopDelay: DefaultStopDelay,
		notifyCh:  make(chan struct{}, 1),
	}
}

// AddToLoop implements LoopAdder.
func (r *Recorder) AddToLoop(l *fx.Loop) {
	l.AddRunnable(r)
}

// Enable starts recording.
func (r *Recorder) Enable() {
	r.lock.Lock()
	if !r.active {
		glog.Info("recorder: enabled")
	}
	r.active, r.stopping = true, false
	r.lock.Unlock()
}

// Disable stops recording after StopDelay.
func (r *Recorder) Disable() {
	r.lock.Lock()
	if r.active {
		r.stopping, r.remaining = true, r.StopDelay
	}
	r.lock.Unlock()
}

// Notify requests a sample. It never blocks.
func (r *Recorder) Notify() {
	select {
	case r.notifyCh <- struct{}{}:
	default:
	}
}

// Restart discards the log at the next step.
func (r *Recorder) Restart() {
	r.lock.Lock()
	r.restart = true
	r.lock.Unlock()
}

// Active tells whether samples are being recorded.
func (r *Recorder) Active() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.active
}

// Used returns the number of recorded samples.
func (r *Recorder) Used() uint32 {
	return r.Log.Used()
}

// Samples reads recorded samples.
func (r *Recorder) Samples(id uint32, n int) ([]Sample, error) {
	return r.Log.Samples(id, n)
}

// Run implements Runnable.
func (r *Recorder) Run(ctx context.Context) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.step(now, false)
		case <-r.notifyCh:
			r.step(time.Now(), true)
		}
	}
}

func (r *Recorder) step(now time.Time, notified bool) {
	r.lock.Lock()
	elapsed := time.Duration(0)
	if !r.lastStep.IsZero() {
		elapsed = now.Sub(r.lastStep)
	}
	r.lastStep = now
	restart := r.restart
	r.restart = false
	if r.stopping {
		if r.remaining -= elapsed; r.remaining <= 0 {
			r.active, r.stopping, r.remaining = false, false, 0
			glog.Info("recorder: disabled")
		}
	}
	active := r.active
	r.lock.Unlock()

	if restart {
		if err := r.Log.Reset(); err != nil {
			glog.Errorf("recorder: restart: %v", err)
		}
	}
	if notified && active {
		if err := r.Log.Append(r.sample()); err != nil {
			glog.Errorf("recorder: %v", err)
		}
	}
}

func (r *Recorder) sample() Sample {
	snap := r.Source.Snapshot()
	return Sample{
		State:           uint8(snap.State),
		CompanionState:  uint8(snap.Command.Mode),
		ChamberPressure: snap.Feedback.ChamberPressure,
		Altitude:        snap.Sensor.Baro,
		Thrust:          snap.Command.Thrust,
		PositionZ:       snap.Command.Position.Z,
		VelocityZ:       snap.Command.Velocity.Z,
		Time:            snap.Time,
	}
}
