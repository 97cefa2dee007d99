package link

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/tvc.go/pkg/payload"
)

// PowerLines controls the power sequencing of the companion.
type PowerLines interface {
	// SetEnable drives the enable line.
	SetEnable(on bool) error
	// RunGood reads the ready line asserted by the companion.
	RunGood() bool
}

// Responder answers requests initiated by the peer. It runs in the
// reception context and must not block.
type Responder interface {
	Respond(req *Frame) *Frame
}

// RespondFunc is the func form of Responder.
type RespondFunc func(req *Frame) *Frame

// Respond implements Responder.
func (f RespondFunc) Respond(req *Frame) *Frame {
	return f(req)
}

// Role selects which side of the link we are.
type Role int

// Roles
const (
	// RoleNode initiates requests with the direction bit clear.
	RoleNode Role = iota
	// RoleCompanion initiates requests with the direction bit set.
	RoleCompanion
)

func (r Role) request(op Opcode) Opcode {
	if r == RoleCompanion {
		return op.Code() | DirectionBit
	}
	return op.Code()
}

// initiated tells whether the frame belongs to an exchange we started.
func (r Role) initiated(op Opcode) bool {
	return op.FromCompanion() == (r == RoleCompanion)
}

// Defaults
const (
	DefaultTimeout          = 100 * time.Millisecond
	DefaultBusyTimeout      = 10 * time.Millisecond
	DefaultTimeoutThreshold = 3
)

// Request describes a locally initiated exchange.
type Request struct {
	Opcode Opcode
	Data   []byte
	// ResponseRequired returns the reply payload, otherwise the reply
	// is only awaited for flow control.
	ResponseRequired bool
	// Timeout overrides Link.Timeout when not zero.
	Timeout time.Duration
}

// Stats are the counters of a Link.
type Stats struct {
	Exchanges          uint64
	Timeouts           uint64
	RemoteErrors       uint64
	Busy               uint64
	ChecksumErrors     uint64
	LateReplies        uint64
	Flushes            uint64
	ConsecutiveTimeout int
}

// Link owns the channel to the companion.
type Link struct {
	ID        string
	Port      io.ReadWriter
	Lines     PowerLines
	Responder Responder
	Role      Role

	Timeout          time.Duration
	BusyTimeout      time.Duration
	TimeoutThreshold int

	guard   chan struct{}
	respCh  chan *Frame
	pending int32

	txLock  sync.Mutex
	rxLock  sync.Mutex
	decoder Decoder

	statsLock sync.Mutex
	stats     Stats
}

// New creates a Link.
func New(id string, port io.ReadWriter, lines PowerLines) *Link {
	return &Link{
		ID:               id,
		Port:             port,
		Lines:            lines,
		Timeout:          DefaultTimeout,
		BusyTimeout:      DefaultBusyTimeout,
		TimeoutThreshold: DefaultTimeoutThreshold,
		guard:            make(chan struct{}, 1),
		respCh:           make(chan *Frame, 1),
	}
}

// Name implements Named.
func (l *Link) Name() string {
	return "link:" + l.ID
}

// Stats returns a snapshot of the counters.
func (l *Link) Stats() Stats {
	l.statsLock.Lock()
	defer l.statsLock.Unlock()
	return l.stats
}

func (l *Link) count(fn func(*Stats)) {
	l.statsLock.Lock()
	fn(&l.stats)
	l.statsLock.Unlock()
}

// SendRequest performs an exchange and returns the reply payload.
func (l *Link) SendRequest(op Opcode, data []byte, timeout time.Duration) ([]byte, error) {
	return l.Exchange(Request{Opcode: op, Data: data, ResponseRequired: true, Timeout: timeout})
}

// Exchange transmits a request and waits for its reply.
func (l *Link) Exchange(req Request) ([]byte, error) {
	if l.Port == nil || len(req.Data) > MaxPayload {
		return nil, ErrLocal
	}

	select {
	case l.guard <- struct{}{}:
	case <-time.After(l.BusyTimeout):
		l.count(func(s *Stats) { s.Busy++ })
		return nil, ErrBusy
	}
	defer func() { <-l.guard }()

	l.flushIfWedged()

	// a reply which arrived after its exchange timed out.
	select {
	case <-l.respCh:
		l.count(func(s *Stats) { s.LateReplies++ })
	default:
	}

	op := l.Role.request(req.Opcode)
	atomic.StoreInt32(&l.pending, 1)
	defer atomic.StoreInt32(&l.pending, 0)

	if err := l.write(&Frame{Opcode: op, Data: req.Data}); err != nil {
		return nil, err
	}
	l.count(func(s *Stats) { s.Exchanges++ })

	timeout := req.Timeout
	if timeout == 0 {
		timeout = l.Timeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-l.respCh:
		if reply.Opcode != op {
			l.count(func(s *Stats) { s.RemoteErrors++ })
			return nil, &RemoteError{Want: op, Got: reply.Opcode, Data: reply.Data}
		}
		l.count(func(s *Stats) { s.ConsecutiveTimeout = 0 })
		if req.ResponseRequired {
			return reply.Data, nil
		}
		return nil, nil
	case <-timer.C:
		l.count(func(s *Stats) {
			s.Timeouts++
			s.ConsecutiveTimeout++
		})
		glog.V(3).Infof("%s: %s timeout", l.Name(), op)
		return nil, ErrTimeout
	}
}

func (l *Link) flushIfWedged() {
	threshold := l.TimeoutThreshold
	if threshold <= 0 {
		return
	}
	var flush bool
	l.count(func(s *Stats) {
		if flush = s.ConsecutiveTimeout >= threshold; flush {
			s.ConsecutiveTimeout = 0
			s.Flushes++
		}
	})
	if flush {
		glog.Warningf("%s: %d consecutive timeouts, flushing decoder", l.Name(), threshold)
		l.rxLock.Lock()
		l.decoder.Reset()
		l.rxLock.Unlock()
	}
}

func (l *Link) write(f *Frame) error {
	l.txLock.Lock()
	defer l.txLock.Unlock()
	_, err := f.WriteTo(l.Port)
	return err
}

// OnByte feeds one received byte. A complete frame is either a reply to
// our outstanding request or a request from the peer, which is answered
// inline.
func (l *Link) OnByte(b byte) error {
	l.rxLock.Lock()
	frame, err := l.decoder.Feed(b)
	l.rxLock.Unlock()
	if err != nil {
		l.count(func(s *Stats) { s.ChecksumErrors++ })
		glog.V(2).Infof("%s: %v", l.Name(), err)
		return nil
	}
	if frame == nil {
		return nil
	}
	if l.Role.initiated(frame.Opcode) {
		l.deliver(frame)
		return nil
	}
	return l.write(l.respond(frame))
}

func (l *Link) deliver(reply *Frame) {
	if atomic.LoadInt32(&l.pending) == 0 {
		l.count(func(s *Stats) { s.LateReplies++ })
		glog.V(2).Infof("%s: drop unsolicited %s", l.Name(), reply.Opcode)
		return
	}
	select {
	case l.respCh <- reply:
	default:
		glog.V(2).Infof("%s: drop duplicate %s", l.Name(), reply.Opcode)
	}
}

func (l *Link) respond(req *Frame) *Frame {
	if r := l.Responder; r != nil {
		if reply := r.Respond(req); reply != nil {
			return reply
		}
	}
	return Nack(req, NackUnknown)
}

// Run implements Runnable. It reads the port and feeds received bytes.
func (l *Link) Run(ctx context.Context) error {
	dataCh, errCh := make(chan []byte), make(chan error, 1)
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(subCtx, dataCh, errCh)
	for {
		select {
		case data := <-dataCh:
			for _, b := range data {
				if err := l.OnByte(b); err != nil {
					return err
				}
			}
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Link) readLoop(ctx context.Context, dataCh chan []byte, errCh chan error) {
	buf := make([]byte, 64)
	for ctx.Err() == nil {
		n, err := l.Port.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case dataCh <- data:
		case <-ctx.Done():
			return
		}
	}
}

// Boot asserts the enable line of the companion without waiting.
func (l *Link) Boot() error {
	if l.Lines == nil {
		return ErrLocal
	}
	return l.Lines.SetEnable(true)
}

// IsReady tells whether the companion asserts its ready line and
// answers a ping.
func (l *Link) IsReady() bool {
	if l.Lines == nil || !l.Lines.RunGood() {
		return false
	}
	_, err := l.SendRequest(OpPing, PingMarker, l.Timeout)
	if err != nil {
		glog.V(2).Infof("%s: ping: %v", l.Name(), err)
	}
	return err == nil
}

// Shutdown asks the companion to power down. The outcome is ignored,
// the ready line confirms the shutdown.
func (l *Link) Shutdown() {
	if _, err := l.Exchange(Request{Opcode: OpShutdown}); err != nil {
		glog.V(2).Infof("%s: shutdown: %v", l.Name(), err)
	}
}

// IsShutdown tells whether the companion has released its ready line.
// Once it has, the enable line is held low.
func (l *Link) IsShutdown() bool {
	if l.Lines == nil {
		return false
	}
	if l.Lines.RunGood() {
		return false
	}
	l.ForceShutdown()
	return true
}

// ForceShutdown drops the enable line regardless of protocol state.
func (l *Link) ForceShutdown() {
	if l.Lines == nil {
		return
	}
	if err := l.Lines.SetEnable(false); err != nil {
		glog.Errorf("%s: force shutdown: %v", l.Name(), err)
	}
}

// SendSensors streams a sensor snapshot to the companion.
func (l *Link) SendSensors(s payload.Sensor) error {
	data, _ := s.MarshalBinary()
	_, err := l.Exchange(Request{Opcode: OpSensors, Data: data})
	return err
}

// SendFeedback streams a feedback snapshot to the companion.
func (l *Link) SendFeedback(f payload.Feedback) error {
	data, _ := f.MarshalBinary()
	_, err := l.Exchange(Request{Opcode: OpFeedback, Data: data})
	return err
}
