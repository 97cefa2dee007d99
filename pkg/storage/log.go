package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Layout of the log store.
const (
	Magic           uint32 = 0xCBE0C5E6
	HeaderSize             = 16
	SampleSize             = 32
	BlockSize              = 4096
	SamplesPerBlock        = BlockSize / SampleSize
	// DataStart is the offset of the first sample, the first block
	// holds the header.
	DataStart = BlockSize
)

// Errors
var (
	ErrNoSample = errors.New("sample not recorded")
)

// Store is the backing storage, usually a file.
type Store interface {
	io.ReaderAt
	io.WriterAt
}

// Header is the first record of the store.
type Header struct {
	Magic uint32
	// Used is the number of blocks in use, including the header block.
	Used   uint32
	Calib1 int32
	Calib2 int32
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	data := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(data[0:], h.Magic)
	binary.LittleEndian.PutUint32(data[4:], h.Used)
	binary.LittleEndian.PutUint32(data[8:], uint32(h.Calib1))
	binary.LittleEndian.PutUint32(data[12:], uint32(h.Calib2))
	return data, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) != HeaderSize {
		return fmt.Errorf("header: invalid size %d", len(data))
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:])
	h.Used = binary.LittleEndian.Uint32(data[4:])
	h.Calib1 = int32(binary.LittleEndian.Uint32(data[8:]))
	h.Calib2 = int32(binary.LittleEndian.Uint32(data[12:]))
	return nil
}

// Sample is one recorded flight-data record.
type Sample struct {
	ID              uint16
	State           uint8
	CompanionState  uint8
	ChamberPressure int32
	Altitude        int32
	Thrust          int32
	PositionZ       int32
	VelocityZ       int32
	Time            uint32
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Sample) MarshalBinary() ([]byte, error) {
	data := make([]byte, SampleSize)
	binary.LittleEndian.PutUint16(data[0:], s.ID)
	data[2], data[3] = s.State, s.CompanionState
	binary.LittleEndian.PutUint32(data[4:], uint32(s.ChamberPressure))
	binary.LittleEndian.PutUint32(data[8:], uint32(s.Altitude))
	binary.LittleEndian.PutUint32(data[12:], uint32(s.Thrust))
	binary.LittleEndian.PutUint32(data[16:], uint32(s.PositionZ))
	binary.LittleEndian.PutUint32(data[20:], uint32(s.VelocityZ))
	// 24..27 reserved
	binary.LittleEndian.PutUint32(data[28:], s.Time)
	return data, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (s *Sample) UnmarshalBinary(data []byte) error {
	if len(data) != SampleSize {
		return fmt.Errorf("sample: invalid size %d", len(data))
	}
	s.ID = binary.LittleEndian.Uint16(data[0:])
	s.State, s.CompanionState = data[2], data[3]
	s.ChamberPressure = int32(binary.LittleEndian.Uint32(data[4:]))
	s.Altitude = int32(binary.LittleEndian.Uint32(data[8:]))
	s.Thrust = int32(binary.LittleEndian.Uint32(data[12:]))
	s.PositionZ = int32(binary.LittleEndian.Uint32(data[16:]))
	s.VelocityZ = int32(binary.LittleEndian.Uint32(data[20:]))
	s.Time = binary.LittleEndian.Uint32(data[28:])
	return nil
}

func sampleOffset(id uint32) int64 {
	return DataStart + int64(id)*SampleSize
}

// Log is an append-only sample log on a Store.
type Log struct {
	store Store
	lock  sync.Mutex
	used  uint32
	count uint32
}

// Open loads the header of the store, recovering the sample count
// after an unclean stop. A store without a valid header is formatted.
func Open(store Store) (*Log, error) {
	l := &Log{store: store}
	var h Header
	buf := make([]byte, HeaderSize)
	if _, err := store.ReadAt(buf, 0); err != nil && err != io.EOF {
		return nil, err
	}
	h.UnmarshalBinary(buf)
	if h.Magic != Magic {
		if err := l.writeHeader(1); err != nil {
			return nil, err
		}
		return l, nil
	}
	l.used = h.Used
	if l.used > 1 {
		// the header is only updated when a block is started, the
		// last block is scanned for samples written after it.
		count := (l.used - 2) * SamplesPerBlock
		for {
			s, err := l.read(count)
			if err != nil || s.ID != uint16(count) {
				break
			}
			count++
		}
		l.count = count
	}
	return l, nil
}

func (l *Log) writeHeader(used uint32) error {
	data, _ := Header{Magic: Magic, Used: used}.MarshalBinary()
	if _, err := l.store.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write header: %v", err)
	}
	l.used = used
	return nil
}

// erase clears the block at offset. Samples left from an earlier
// recording would otherwise be recovered by Open.
func (l *Log) erase(offset int64) error {
	if _, err := l.store.WriteAt(make([]byte, BlockSize), offset); err != nil {
		return fmt.Errorf("erase block at %d: %v", offset, err)
	}
	return nil
}

func (l *Log) read(id uint32) (s Sample, err error) {
	buf := make([]byte, SampleSize)
	if _, err = l.store.ReadAt(buf, sampleOffset(id)); err != nil {
		return
	}
	err = s.UnmarshalBinary(buf)
	return
}

// Append writes a sample, assigning its ID.
func (l *Log) Append(s Sample) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	s.ID = uint16(l.count)
	offset := sampleOffset(l.count)
	if offset%BlockSize == 0 {
		if err := l.erase(offset); err != nil {
			return err
		}
		if err := l.writeHeader(l.used + 1); err != nil {
			return err
		}
	}
	data, _ := s.MarshalBinary()
	if _, err := l.store.WriteAt(data, offset); err != nil {
		return fmt.Errorf("write sample %d: %v", l.count, err)
	}
	l.count++
	return nil
}

// Reset discards all samples.
func (l *Log) Reset() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.count = 0
	return l.writeHeader(1)
}

// Used returns the number of samples.
func (l *Log) Used() uint32 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.count
}

// Blocks returns the number of blocks in use.
func (l *Log) Blocks() uint32 {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.used
}

// Sample reads a recorded sample.
func (l *Log) Sample(id uint32) (Sample, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if id >= l.count {
		return Sample{}, ErrNoSample
	}
	return l.read(id)
}

// Samples reads up to n samples starting at id.
func (l *Log) Samples(id uint32, n int) ([]Sample, error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	if id >= l.count {
		return nil, ErrNoSample
	}
	var samples []Sample
	for ; n > 0 && id < l.count; n, id = n-1, id+1 {
		s, err := l.read(id)
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}
