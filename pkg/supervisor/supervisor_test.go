package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/robotalks/tvc.go/pkg/framework"
	"github.com/robotalks/tvc.go/pkg/payload"
)

type fakeCompanion struct {
	enable    bool
	runGood   bool
	pingOK    bool
	boots     int
	shutdowns int
	forced    int
	sensors   []payload.Sensor
	feedback  []payload.Feedback
	onBoot    func()
}

func (c *fakeCompanion) Boot() error {
	c.boots++
	c.enable = true
	if c.onBoot != nil {
		c.onBoot()
	}
	return nil
}

func (c *fakeCompanion) IsReady() bool { return c.runGood && c.pingOK }
func (c *fakeCompanion) Shutdown()     { c.shutdowns++ }

func (c *fakeCompanion) IsShutdown() bool {
	if c.runGood {
		return false
	}
	c.enable = false
	return true
}

func (c *fakeCompanion) ForceShutdown() {
	c.forced++
	c.enable = false
}

func (c *fakeCompanion) SendSensors(s payload.Sensor) error {
	c.sensors = append(c.sensors, s)
	return nil
}

func (c *fakeCompanion) SendFeedback(fb payload.Feedback) error {
	c.feedback = append(c.feedback, fb)
	return nil
}

type heartbeat struct {
	state     uint8
	timestamp uint32
}

type fakeBus struct {
	commands   []payload.Command
	heartbeats []heartbeat
	err        error
}

func (b *fakeBus) ForwardCommand(cmd payload.Command) error {
	b.commands = append(b.commands, cmd)
	return b.err
}

func (b *fakeBus) Heartbeat(state uint8, ts uint32) error {
	b.heartbeats = append(b.heartbeats, heartbeat{state, ts})
	return b.err
}

type fakeRecorder struct {
	enabled  bool
	notified int
}

func (r *fakeRecorder) Enable()  { r.enabled = true }
func (r *fakeRecorder) Disable() { r.enabled = false }
func (r *fakeRecorder) Notify()  { r.notified++ }

type fakeActuator struct {
	moves []int32
}

func (a *fakeActuator) Move(target int32) error {
	a.moves = append(a.moves, target)
	return nil
}

type harness struct {
	loop *fx.Loop
	sup  *Supervisor
	comp *fakeCompanion
	bus  *fakeBus
	rec  *fakeRecorder
	act  *fakeActuator
	now  time.Time
}

func newHarness() *harness {
	h := &harness{
		loop: fx.NewLoop(),
		comp: &fakeCompanion{pingOK: true},
		bus:  &fakeBus{},
		rec:  &fakeRecorder{},
		act:  &fakeActuator{},
		now:  time.Unix(5000, 0),
	}
	h.sup = New(h.comp)
	h.sup.Bus, h.sup.Recorder, h.sup.Actuator = h.bus, h.rec, h.act
	h.sup.HeartbeatEvery = 0
	h.loop.Add(h.sup)
	return h
}

func (h *harness) tick(n int) {
	for i := 0; i < n; i++ {
		h.loop.Tick(context.Background(), h.now)
		h.now = h.now.Add(DefaultPeriod)
	}
}

// force puts the supervisor in a state as if it got there by transitions.
func (h *harness) force(st State) {
	h.tick(1)
	h.sup.lock.Lock()
	h.sup.state = st
	h.sup.lock.Unlock()
}

var allActions = []Action{ActionAbort, ActionBoot, ActionShutdown, ActionRecover, ActionMove}

func TestAuthorization(t *testing.T) {
	for st := StateIdle; st < stateCount; st++ {
		for _, a := range allActions {
			h := newHarness()
			h.force(st)
			accepted := h.sup.Schedule(a)
			expected := a == ActionAbort && st != StateAbort && st != StateError
			for _, allowed := range authorization[st] {
				if allowed == a {
					expected = true
				}
			}
			require.Equal(t, expected, accepted, "%s in %s", a, st)
			if accepted {
				require.Equal(t, a, h.sup.Status().Scheduled)
			} else {
				require.Equal(t, ActionNothing, h.sup.Status().Scheduled, "%s in %s", a, st)
			}
		}
	}
}

func TestPendingSlotRejectsOthers(t *testing.T) {
	h := newHarness()
	h.tick(1)
	require.True(t, h.sup.Move(100))
	require.False(t, h.sup.Boot())
	require.False(t, h.sup.Move(200))
	require.Equal(t, ActionMove, h.sup.Status().Scheduled)
	h.tick(1)
	require.Equal(t, []int32{100}, h.act.moves)
	require.Equal(t, ActionNothing, h.sup.Status().Scheduled)
}

func TestAbortPreempts(t *testing.T) {
	testCases := []struct {
		state   State
		pending Action
	}{
		{StateIdle, ActionNothing},
		{StateIdle, ActionBoot},
		{StateIdle, ActionMove},
		{StateBoot, ActionNothing},
		{StateCompute, ActionShutdown},
		{StateShutdown, ActionNothing},
	}
	for _, tc := range testCases {
		t.Run(tc.state.String()+"/"+tc.pending.String(), func(t *testing.T) {
			h := newHarness()
			h.force(tc.state)
			h.comp.enable = true
			h.rec.enabled = true
			if tc.pending != ActionNothing {
				require.True(t, h.sup.Schedule(tc.pending))
			}
			require.True(t, h.sup.Abort())
			require.Equal(t, ActionAbort, h.sup.Status().Scheduled)

			h.tick(1)
			st := h.sup.Status()
			require.Equal(t, StateAbort, st.State)
			require.Equal(t, tc.state, st.Shadow)
			require.Equal(t, ActionNothing, st.Scheduled)
			require.False(t, h.comp.enable)
			require.False(t, h.rec.enabled)
			require.Equal(t, []int32{NeutralPosition}, h.act.moves)
			require.Zero(t, h.comp.boots)
		})
	}
}

func TestAbortClearsCountdown(t *testing.T) {
	h := newHarness()
	h.force(StateCompute)
	h.comp.runGood = true
	require.True(t, h.sup.Shutdown())
	h.tick(1)
	require.Equal(t, StateShutdown, h.sup.State())
	require.NotZero(t, h.sup.Status().Countdown)

	require.True(t, h.sup.Abort())
	h.tick(1)
	require.Equal(t, StateAbort, h.sup.State())
	require.Zero(t, h.sup.Status().Countdown)
}

func TestRecover(t *testing.T) {
	for _, st := range []State{StateAbort, StateError} {
		t.Run(st.String(), func(t *testing.T) {
			h := newHarness()
			h.force(st)
			h.comp.enable = true
			for _, a := range allActions {
				if a != ActionRecover {
					require.False(t, h.sup.Schedule(a))
				}
			}
			require.True(t, h.sup.Recover())
			h.tick(1)
			require.Equal(t, StateIdle, h.sup.State())
			require.False(t, h.comp.enable)
			require.Equal(t, ActionNothing, h.sup.Status().Scheduled)
		})
	}
}

func TestIdleEntryPowersDown(t *testing.T) {
	h := newHarness()
	h.comp.enable = true
	h.tick(1)
	require.Equal(t, StateIdle, h.sup.State())
	require.False(t, h.comp.enable)
	require.Equal(t, 1, h.comp.forced)
}

func TestBootWaitsForPing(t *testing.T) {
	h := newHarness()
	h.comp.pingOK = false
	h.tick(1)
	require.True(t, h.sup.Boot())
	h.tick(1)
	require.Equal(t, StateBoot, h.sup.State())
	require.True(t, h.comp.enable)
	require.Equal(t, 1, h.comp.boots)

	h.tick(5)
	require.Equal(t, StateBoot, h.sup.State(), "ready line low")

	h.comp.runGood = true
	h.tick(5)
	require.Equal(t, StateBoot, h.sup.State(), "ping failing")

	h.comp.pingOK = true
	h.tick(1)
	require.Equal(t, StateCompute, h.sup.State())
	require.True(t, h.rec.enabled)
}

func TestBootShutdownCycle(t *testing.T) {
	h := newHarness()
	h.tick(1)
	require.False(t, h.comp.enable)

	require.True(t, h.sup.Boot())
	h.tick(1)
	require.Equal(t, StateBoot, h.sup.State())
	h.comp.runGood = true
	h.tick(1)
	require.Equal(t, StateCompute, h.sup.State())

	require.True(t, h.sup.Shutdown())
	h.tick(1)
	require.Equal(t, StateShutdown, h.sup.State())
	require.Equal(t, 1, h.comp.shutdowns)

	h.tick(3)
	require.Equal(t, StateShutdown, h.sup.State())
	h.comp.runGood = false
	h.tick(1)
	require.Equal(t, StateIdle, h.sup.State())
	require.False(t, h.comp.enable)
	require.False(t, h.rec.enabled)
}

func TestShutdownGraceForcesPowerDown(t *testing.T) {
	h := newHarness()
	h.sup.ShutdownGrace = 4 * DefaultPeriod
	h.force(StateCompute)
	h.comp.enable, h.comp.runGood = true, true
	forcedBefore := h.comp.forced

	require.True(t, h.sup.Shutdown())
	h.tick(4)
	require.Equal(t, forcedBefore, h.comp.forced)
	h.tick(1)
	require.Equal(t, forcedBefore+1, h.comp.forced)
	require.False(t, h.comp.enable)
	require.Equal(t, StateShutdown, h.sup.State())

	h.tick(2)
	require.Equal(t, forcedBefore+1, h.comp.forced)

	h.comp.runGood = false
	h.tick(1)
	require.Equal(t, StateIdle, h.sup.State())
}

func TestComputeStreamsFreshData(t *testing.T) {
	h := newHarness()
	h.force(StateCompute)
	h.loop.PostMessage(&SensorsMsg{Sensor: payload.Sensor{Timestamp: 1, Baro: -3}})
	h.loop.PostMessage(&FeedbackMsg{Feedback: payload.Feedback{Timestamp: 2}})
	h.tick(1)
	require.Equal(t, []payload.Sensor{{Timestamp: 1, Baro: -3}}, h.comp.sensors)
	require.Equal(t, []payload.Feedback{{Timestamp: 2}}, h.comp.feedback)

	h.tick(2)
	require.Len(t, h.comp.sensors, 1)
	require.Len(t, h.comp.feedback, 1)
	require.Equal(t, int32(-3), h.sup.Sensors().Baro)
}

func TestDataNotStreamedOutsideCompute(t *testing.T) {
	h := newHarness()
	h.tick(1)
	h.sup.UpdateSensors(payload.Sensor{Timestamp: 9})
	h.tick(1)
	require.Empty(t, h.comp.sensors)
	require.Equal(t, uint32(9), h.sup.Snapshot().Sensor.Timestamp)
}

func TestScheduleMessages(t *testing.T) {
	h := newHarness()
	h.tick(1)
	h.loop.PostMessage(&ScheduleMsg{Action: ActionBoot})
	h.tick(1)
	require.Equal(t, StateBoot, h.sup.State())

	h.loop.PostMessage(&ScheduleMsg{Action: ActionAbort})
	h.tick(1)
	require.Equal(t, StateAbort, h.sup.State())
	require.Equal(t, StateBoot, h.sup.Status().Shadow)
}

func TestAccountingViolation(t *testing.T) {
	h := newHarness()
	h.tick(1)
	h.comp.onBoot = func() {
		h.sup.Abort()
	}
	require.True(t, h.sup.Boot())
	h.tick(1)
	require.Equal(t, StateError, h.sup.State())
	require.False(t, h.comp.enable)
	require.Equal(t, ActionNothing, h.sup.Status().Scheduled)

	require.False(t, h.sup.Abort())
	require.True(t, h.sup.Recover())
	h.tick(1)
	require.Equal(t, StateIdle, h.sup.State())
}

func TestHeartbeat(t *testing.T) {
	h := newHarness()
	h.sup.HeartbeatEvery = 2
	h.bus.err = errors.New("bus off")
	h.tick(4)
	require.Equal(t, []heartbeat{
		{StateIdle.Code(), 50},
		{StateIdle.Code(), 150},
	}, h.bus.heartbeats)
}

func TestHandleCommand(t *testing.T) {
	h := newHarness()
	cmd := payload.Command{Timestamp: 4, Thrust: 100, Mode: 1}
	h.sup.HandleCommand(cmd)
	require.Equal(t, cmd, h.sup.Command())
	require.Equal(t, []payload.Command{cmd}, h.bus.commands)
	require.Equal(t, 1, h.rec.notified)

	snap := h.sup.Snapshot()
	snap.Command.Thrust = 0
	require.Equal(t, int32(100), h.sup.Command().Thrust)
}

type stallBus struct {
	entered chan struct{}
	release chan struct{}
}

func (b *stallBus) ForwardCommand(payload.Command) error {
	close(b.entered)
	<-b.release
	return nil
}

func (b *stallBus) Heartbeat(uint8, uint32) error { return nil }

func TestHandleCommandReleasesCache(t *testing.T) {
	h := newHarness()
	bus := &stallBus{entered: make(chan struct{}), release: make(chan struct{})}
	h.sup.Bus = bus
	defer close(bus.release)

	cmd := payload.Command{Timestamp: 8, Thrust: 300}
	go h.sup.HandleCommand(cmd)
	<-bus.entered

	done := make(chan Snapshot, 1)
	go func() {
		h.sup.Sensors()
		done <- h.sup.Snapshot()
	}()
	select {
	case snap := <-done:
		require.Equal(t, cmd, snap.Command)
	case <-time.After(time.Second):
		t.Fatal("cache readers blocked by the vehicle bus")
	}
}

func TestStatusClock(t *testing.T) {
	h := newHarness()
	h.tick(3)
	st := h.sup.Status()
	require.Equal(t, uint64(3), st.Iteration)
	require.Equal(t, uint32(100), st.Time)
	require.Equal(t, DefaultPeriod, st.Period)
}

func TestStateNames(t *testing.T) {
	for st := StateIdle; st < stateCount; st++ {
		parsed, ok := ParseState(st.String())
		require.True(t, ok)
		require.Equal(t, st, parsed)
	}
	_, ok := ParseState("flying")
	require.False(t, ok)
	require.Equal(t, "state(9)", State(9).String())
}
