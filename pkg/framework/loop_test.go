package framework

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testMsg struct {
	n int
}

func (m *testMsg) NewMessage() Message { return &testMsg{} }

type otherMsg struct{}

func (m *otherMsg) NewMessage() Message { return &otherMsg{} }

func TestTickOrderAndClock(t *testing.T) {
	var order []int
	var iterations []uint64
	var elapsed []time.Duration
	l := NewLoop()
	l.AddController(PrLvLow, ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		return nil
	}))
	l.AddController(PrLvHigh, ControlFunc(func(cc ControlContext) error {
		order = append(order, cc.PriorityLevel())
		iterations = append(iterations, cc.Iteration())
		elapsed = append(elapsed, cc.Elapsed())
		return nil
	}))

	start := time.Unix(1000, 0)
	l.Tick(context.Background(), start)
	l.Tick(context.Background(), start.Add(50*time.Millisecond))
	l.Tick(context.Background(), start.Add(120*time.Millisecond))

	require.Equal(t, []int{PrLvHigh, PrLvLow, PrLvHigh, PrLvLow, PrLvHigh, PrLvLow}, order)
	require.Equal(t, []uint64{1, 2, 3}, iterations)
	require.Equal(t, []time.Duration{0, 50 * time.Millisecond, 70 * time.Millisecond}, elapsed)
}

func TestProcessMessages(t *testing.T) {
	l := NewLoop()
	var first, second []Message
	l.AddController(PrLvHigh, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
			first = append(first, mctx.CurrentMessage())
			if m, ok := mctx.CurrentMessage().(*testMsg); ok {
				mctx.MessageTaken()
				if m.n == 2 {
					mctx.StopProcessing()
				}
			}
		}))
		return nil
	}))
	l.AddController(PrLvLow, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
			second = append(second, mctx.CurrentMessage())
			mctx.MessageTaken()
		}))
		return nil
	}))

	m1, m2, m3, o := &testMsg{n: 1}, &testMsg{n: 2}, &testMsg{n: 3}, &otherMsg{}
	l.PostMessage(m1)
	l.PostMessage(o)
	l.PostMessage(m2)
	l.PostMessage(m3)
	l.Tick(context.Background(), time.Now())

	require.Equal(t, []Message{m1, o, m2}, first)
	require.Equal(t, []Message{o, m3}, second)

	first, second = nil, nil
	l.Tick(context.Background(), time.Now())
	require.Empty(t, first)
	require.Empty(t, second)
}

func TestHooks(t *testing.T) {
	l := NewLoop()
	var calls []string
	l.AddController(PrLvNormal, ControlFunc(func(cc ControlContext) error {
		calls = append(calls, "ctl")
		if cc.Iteration() == 1 {
			cc.PostRun(ControlFunc(func(ControlContext) error {
				calls = append(calls, "post")
				return nil
			}))
		}
		return errors.New("logged only")
	}))
	l.PreRunAt(PrLvNormal, ControlFunc(func(ControlContext) error {
		calls = append(calls, "pre")
		return nil
	}))
	l.Tick(context.Background(), time.Now())
	l.Tick(context.Background(), time.Now())
	require.Equal(t, []string{"pre", "ctl", "post", "ctl"}, calls)
}

type postingRunner struct {
	msg Message
}

func (r *postingRunner) Run(ctx context.Context) error {
	ctl := LoopCtlFrom(ctx)
	ctl.PostMessage(r.msg)
	ctl.TriggerNext()
	<-ctx.Done()
	return ctx.Err()
}

func TestRunDeliversRunnerMessages(t *testing.T) {
	l := NewLoop()
	l.Interval = time.Hour
	gotCh := make(chan Message, 1)
	l.AddController(PrLvNormal, ControlFunc(func(cc ControlContext) error {
		cc.Messages().ProcessMessages(ProcessMessageFunc(func(mctx MessageProcessingContext) {
			mctx.MessageTaken()
			select {
			case gotCh <- mctx.CurrentMessage():
			default:
			}
		}))
		return nil
	}))
	msg := &testMsg{n: 9}
	l.AddRunnable(&postingRunner{msg: msg})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	select {
	case got := <-gotCh:
		require.Equal(t, msg, got)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}

type funcRunner func(context.Context) error

func (f funcRunner) Run(ctx context.Context) error { return f(ctx) }

func TestRunnerAggregatesErrors(t *testing.T) {
	r := NewRunner()
	r.Go(
		NamedRun("fail", funcRunner(func(ctx context.Context) error {
			return errors.New("boom")
		})),
		NamedRun("wait", funcRunner(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})),
	)
	err := r.Wait()
	require.Error(t, err)
	cerr, ok := err.(*ComponentError)
	require.True(t, ok)
	require.Equal(t, "fail", cerr.Component)
	require.Equal(t, "fail: boom", cerr.Error())
}

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil).Aggregate())
	errs.AddFrom("link", errors.New("timeout")).AddFrom("", errors.New("closed"))
	err := errs.Aggregate()
	require.Error(t, err)
	require.Equal(t, "2 errors: link: timeout; closed", err.Error())
}

func TestRunWithContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	canceled := false
	cancel()
	err := RunWithContextCancel(ctx, func() {
		canceled = true
		close(release)
	}, func() error {
		<-release
		return nil
	})
	require.Equal(t, context.Canceled, err)
	require.True(t, canceled)
}
