// Package hw binds the companion link to real hardware: the UART and
// the power-sequencing GPIO lines.
package hw

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// SerialConfig describes the companion UART.
type SerialConfig struct {
	Device   string
	BaudRate int
	// ReadTimeout bounds a single read so the reader can observe
	// cancellation.
	ReadTimeout time.Duration
}

// Defaults
const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

// OpenSerial opens the UART in 8N1.
func OpenSerial(conf SerialConfig) (serial.Port, error) {
	baud := conf.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(conf.Device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %v", conf.Device, err)
	}
	timeout := conf.ReadTimeout
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %v", conf.Device, err)
	}
	return port, nil
}

// GPIOLines drives the companion enable line and reads its run-good
// line.
type GPIOLines struct {
	Enable     gpio.PinOut
	RunGoodPin gpio.PinIn
}

var (
	hostInit sync.Once
	hostErr  error
)

// OpenGPIOLines looks up the named pins, drives enable low and sets
// run-good as a pulled-down input.
func OpenGPIOLines(enable, runGood string) (*GPIOLines, error) {
	hostInit.Do(func() { _, hostErr = host.Init() })
	if hostErr != nil {
		return nil, fmt.Errorf("init gpio host: %v", hostErr)
	}
	enPin := gpioreg.ByName(enable)
	if enPin == nil {
		return nil, fmt.Errorf("unknown gpio %q", enable)
	}
	rgPin := gpioreg.ByName(runGood)
	if rgPin == nil {
		return nil, fmt.Errorf("unknown gpio %q", runGood)
	}
	return NewGPIOLines(enPin, rgPin)
}

// NewGPIOLines configures the given pins.
func NewGPIOLines(enable gpio.PinOut, runGood gpio.PinIn) (*GPIOLines, error) {
	if err := enable.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("configure %s: %v", enable, err)
	}
	if err := runGood.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s: %v", runGood, err)
	}
	return &GPIOLines{Enable: enable, RunGoodPin: runGood}, nil
}

// SetEnable implements link.PowerLines.
func (l *GPIOLines) SetEnable(on bool) error {
	return l.Enable.Out(gpio.Level(on))
}

// RunGood implements link.PowerLines.
func (l *GPIOLines) RunGood() bool {
	return l.RunGoodPin.Read() == gpio.High
}

// CompanionGPIO is the companion side of the power lines: it reads the
// enable line and drives run-good.
type CompanionGPIO struct {
	EnablePin  gpio.PinIn
	RunGoodOut gpio.PinOut
}

// OpenCompanionGPIO looks up and configures the named pins.
func OpenCompanionGPIO(enable, runGood string) (*CompanionGPIO, error) {
	hostInit.Do(func() { _, hostErr = host.Init() })
	if hostErr != nil {
		return nil, fmt.Errorf("init gpio host: %v", hostErr)
	}
	enPin, rgPin := gpioreg.ByName(enable), gpioreg.ByName(runGood)
	if enPin == nil || rgPin == nil {
		return nil, fmt.Errorf("unknown gpio %q or %q", enable, runGood)
	}
	if err := enPin.In(gpio.PullDown, gpio.NoEdge); err != nil {
		return nil, err
	}
	if err := rgPin.Out(gpio.Low); err != nil {
		return nil, err
	}
	return &CompanionGPIO{EnablePin: enPin, RunGoodOut: rgPin}, nil
}

// Enabled reads the enable line.
func (c *CompanionGPIO) Enabled() bool {
	return c.EnablePin.Read() == gpio.High
}

// SetRunGood drives the run-good line.
func (c *CompanionGPIO) SetRunGood(v bool) {
	if err := c.RunGoodOut.Out(gpio.Level(v)); err != nil {
		glog.Errorf("drive run-good: %v", err)
	}
}

// MemLines are in-memory power lines shared by both sides.
type MemLines struct {
	lock    sync.Mutex
	enable  bool
	runGood bool
}

// SetEnable implements link.PowerLines.
func (l *MemLines) SetEnable(on bool) error {
	l.lock.Lock()
	l.enable = on
	l.lock.Unlock()
	return nil
}

// RunGood implements link.PowerLines.
func (l *MemLines) RunGood() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runGood
}

// Enabled reads the enable line.
func (l *MemLines) Enabled() bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.enable
}

// SetRunGood drives the run-good line.
func (l *MemLines) SetRunGood(v bool) {
	l.lock.Lock()
	l.runGood = v
	l.lock.Unlock()
}

// VirtualLines stand in for a companion without power sequencing:
// run-good follows the enable line, so readiness rests on the ping and
// shutdown completes when the grace period forces the line down.
type VirtualLines struct {
	MemLines
}

// RunGood implements link.PowerLines.
func (l *VirtualLines) RunGood() bool {
	return l.Enabled()
}
