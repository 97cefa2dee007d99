package link

// Decoder assembles frames from received bytes.
type Decoder struct {
	state   decodeState
	escaped bool
	frame   *Frame
	length  byte
	size    int
	crc     uint16
	recvCRC uint16
}

type decodeState int

const (
	stateHunt    decodeState = iota // waiting for DLE
	stateHuntSTX                    // DLE seen outside a frame, waiting for STX
	stateOpcode                     // waiting for opcode
	stateLength                     // waiting for length
	stateData                       // waiting for payload
	stateCRCLow                     // waiting for crc low byte
	stateCRCHigh                    // waiting for crc high byte
)

// Reset drops any partial frame and waits for the next start marker.
func (d *Decoder) Reset() {
	d.state, d.escaped, d.frame = stateHunt, false, nil
}

// Receiving tells whether a frame is partially assembled.
func (d *Decoder) Receiving() bool {
	return d.state >= stateOpcode
}

// Feed consumes one byte. It returns a frame once a complete frame
// passes the checksum, and ErrChecksum when a complete frame fails it.
func (d *Decoder) Feed(b byte) (*Frame, error) {
	switch d.state {
	case stateHunt:
		if b == DLE {
			d.state = stateHuntSTX
		}
		return nil, nil
	case stateHuntSTX:
		switch b {
		case STX:
			d.start()
		case DLE:
		default:
			d.state = stateHunt
		}
		return nil, nil
	}

	if d.escaped {
		d.escaped = false
		switch b {
		case DLE:
		case STX:
			// start marker inside a frame, the previous one was truncated.
			d.start()
			return nil, nil
		default:
			d.Reset()
			return nil, nil
		}
	} else if b == DLE {
		d.escaped = true
		return nil, nil
	}
	return d.body(b)
}

func (d *Decoder) start() {
	d.state, d.escaped = stateOpcode, false
	d.frame, d.crc = &Frame{}, checksumInit
}

func (d *Decoder) body(b byte) (*Frame, error) {
	switch d.state {
	case stateOpcode:
		d.crc = checksum(d.crc, b)
		d.frame.Opcode = Opcode(b)
		d.state = stateLength
	case stateLength:
		d.crc = checksum(d.crc, b)
		d.length = b
		words := int(b &^ OddLength)
		if words == 0 && b&OddLength != 0 {
			d.Reset()
			return nil, nil
		}
		d.size = words * 2
		d.frame.Data = make([]byte, 0, d.size)
		if d.size == 0 {
			d.state = stateCRCLow
		} else {
			d.state = stateData
		}
	case stateData:
		d.crc = checksum(d.crc, b)
		d.frame.Data = append(d.frame.Data, b)
		if len(d.frame.Data) >= d.size {
			d.state = stateCRCLow
		}
	case stateCRCLow:
		d.recvCRC = uint16(b)
		d.state = stateCRCHigh
	case stateCRCHigh:
		d.recvCRC |= uint16(b) << 8
		return d.frameReady()
	}
	return nil, nil
}

func (d *Decoder) frameReady() (*Frame, error) {
	frame, crc := d.frame, d.crc
	d.Reset()
	if crc != d.recvCRC {
		return nil, ErrChecksum
	}
	if d.length&OddLength != 0 {
		frame.Data = frame.Data[:len(frame.Data)-1]
	}
	return frame, nil
}
