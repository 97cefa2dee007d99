package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/tvc.go/pkg/payload"
	"github.com/robotalks/tvc.go/pkg/supervisor"
)

type memStore struct {
	lock sync.Mutex
	data []byte
}

func (m *memStore) ReadAt(p []byte, off int64) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memStore) WriteAt(p []byte, off int64) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if end := int(off) + len(p); end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}
	return copy(m.data[off:], p), nil
}

func TestSampleLayout(t *testing.T) {
	s := Sample{
		ID:              0x0102,
		State:           2,
		CompanionState:  1,
		ChamberPressure: -1,
		Altitude:        0x10,
		Time:            0x11223344,
	}
	data, err := s.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, SampleSize)
	require.Equal(t, []byte{0x02, 0x01, 2, 1, 0xff, 0xff, 0xff, 0xff, 0x10, 0, 0, 0}, data[:12])
	require.Equal(t, []byte{0x44, 0x33, 0x22, 0x11}, data[28:])

	var decoded Sample
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, s, decoded)
	require.Error(t, decoded.UnmarshalBinary(data[1:]))
}

func TestOpenFormatsStore(t *testing.T) {
	store := &memStore{}
	l, err := Open(store)
	require.NoError(t, err)
	require.Zero(t, l.Used())
	require.Equal(t, uint32(1), l.Blocks())

	var h Header
	require.NoError(t, h.UnmarshalBinary(store.data[:HeaderSize]))
	require.Equal(t, Header{Magic: Magic, Used: 1}, h)

	_, err = l.Sample(0)
	require.Equal(t, ErrNoSample, err)
}

func TestAppendAndRecover(t *testing.T) {
	store := &memStore{}
	l, err := Open(store)
	require.NoError(t, err)
	count := SamplesPerBlock + 2
	for i := 0; i < count; i++ {
		require.NoError(t, l.Append(Sample{ID: 0xffff, Thrust: int32(i)}))
	}
	require.Equal(t, uint32(count), l.Used())
	require.Equal(t, uint32(3), l.Blocks())

	s, err := l.Sample(5)
	require.NoError(t, err)
	require.Equal(t, uint16(5), s.ID)
	require.Equal(t, int32(5), s.Thrust)

	reopened, err := Open(store)
	require.NoError(t, err)
	require.Equal(t, uint32(count), reopened.Used())
	require.Equal(t, uint32(3), reopened.Blocks())

	require.NoError(t, reopened.Append(Sample{}))
	s, err = reopened.Sample(uint32(count))
	require.NoError(t, err)
	require.Equal(t, uint16(count), s.ID)

	samples, err := reopened.Samples(uint32(count)-2, 5)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	_, err = reopened.Samples(uint32(count)+1, 5)
	require.Equal(t, ErrNoSample, err)

	require.NoError(t, reopened.Reset())
	require.Zero(t, reopened.Used())
	reopened, err = Open(store)
	require.NoError(t, err)
	require.Zero(t, reopened.Used())
}

func TestRestartDiscardsOldSamples(t *testing.T) {
	store := &memStore{}
	l, err := Open(store)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Append(Sample{Thrust: 1}))
	}
	require.NoError(t, l.Reset())
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(Sample{Thrust: 2}))
	}

	reopened, err := Open(store)
	require.NoError(t, err)
	require.Equal(t, uint32(10), reopened.Used())
	_, err = reopened.Sample(50)
	require.Equal(t, ErrNoSample, err)
	samples, err := reopened.Samples(0, 20)
	require.NoError(t, err)
	require.Len(t, samples, 10)
	for _, s := range samples {
		require.Equal(t, int32(2), s.Thrust)
	}
}

func TestOpenFile(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "flight.log"), os.O_RDWR|os.O_CREATE, 0644)
	require.NoError(t, err)
	defer f.Close()
	l, err := Open(f)
	require.NoError(t, err)
	require.NoError(t, l.Append(Sample{Altitude: 12}))

	l, err = Open(f)
	require.NoError(t, err)
	require.Equal(t, uint32(1), l.Used())
}

type staticSource struct {
	snap supervisor.Snapshot
}

func (s *staticSource) Snapshot() supervisor.Snapshot { return s.snap }

func newTestRecorder(t *testing.T) (*Recorder, *staticSource) {
	l, err := Open(&memStore{})
	require.NoError(t, err)
	src := &staticSource{}
	src.snap.State = supervisor.StateCompute
	src.snap.Time = 1500
	src.snap.Sensor.Baro = 300
	src.snap.Feedback.ChamberPressure = 42
	src.snap.Command = payload.Command{
		Thrust:   900,
		Mode:     3,
		Position: payload.Vector3{Z: 7},
		Velocity: payload.Vector3{Z: -8},
	}
	r := NewRecorder(l, src)
	r.StopDelay = time.Second
	return r, src
}

func TestRecorderSamples(t *testing.T) {
	r, _ := newTestRecorder(t)
	now := time.Unix(100, 0)

	r.step(now, true)
	require.Zero(t, r.Used(), "not enabled")

	r.Enable()
	r.step(now, true)
	r.step(now, false)
	require.Equal(t, uint32(1), r.Used())

	samples, err := r.Samples(0, 5)
	require.NoError(t, err)
	require.Equal(t, []Sample{{
		State:           uint8(supervisor.StateCompute),
		CompanionState:  3,
		ChamberPressure: 42,
		Altitude:        300,
		Thrust:          900,
		PositionZ:       7,
		VelocityZ:       -8,
		Time:            1500,
	}}, samples)
}

func TestRecorderStopDelay(t *testing.T) {
	r, _ := newTestRecorder(t)
	now := time.Unix(100, 0)
	r.Disable()
	require.False(t, r.Active())

	r.Enable()
	r.step(now, true)
	r.Disable()
	r.step(now.Add(500*time.Millisecond), true)
	require.True(t, r.Active())
	r.step(now.Add(time.Second), true)
	require.Equal(t, uint32(2), r.Used())
	require.False(t, r.Active())

	r.Enable()
	r.Disable()
	r.Enable()
	r.step(now.Add(5*time.Second), true)
	require.True(t, r.Active(), "enable cancels pending stop")
}

func TestRecorderRestart(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.Enable()
	now := time.Unix(100, 0)
	r.step(now, true)
	r.step(now, true)
	require.Equal(t, uint32(2), r.Used())
	r.Restart()
	r.step(now, false)
	require.Zero(t, r.Used())
}

func TestRecorderRun(t *testing.T) {
	r, _ := newTestRecorder(t)
	r.Enable()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	r.Notify()
	deadline := time.Now().Add(time.Second)
	for r.Used() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, uint32(1), r.Used())
	cancel()
	require.Equal(t, context.Canceled, <-errCh)
}
