package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/tvc.go/pkg/framework"
)

// StatusQuery queries the supervisor status.
type StatusQuery struct {
}

// NewMessage implements Message.
func (m *StatusQuery) NewMessage() fx.Message { return &StatusQuery{} }

// TypeID implements SerializableMessage.
func (m *StatusQuery) TypeID() uint32 { return StatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *StatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusQuery) Reset() { *m = StatusQuery{} }

// String implements proto.Message.
func (m *StatusQuery) String() string { return proto.CompactTextString(m) }

// Status is the reply of StatusQuery.
type Status struct {
	State       string     `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	Shadow      string     `protobuf:"bytes,2,opt,name=shadow,proto3" json:"shadow,omitempty"`
	Scheduled   string     `protobuf:"bytes,3,opt,name=scheduled,proto3" json:"scheduled,omitempty"`
	Iteration   uint64     `protobuf:"varint,4,opt,name=iteration,proto3" json:"iteration,omitempty"`
	Time        uint32     `protobuf:"varint,5,opt,name=time,proto3" json:"time,omitempty"`
	CountdownMs int64      `protobuf:"varint,6,opt,name=countdown_ms,json=countdownMs,proto3" json:"countdown_ms,omitempty"`
	Recording   bool       `protobuf:"varint,7,opt,name=recording,proto3" json:"recording,omitempty"`
	LogUsed     uint32     `protobuf:"varint,8,opt,name=log_used,json=logUsed,proto3" json:"log_used,omitempty"`
	Link        *LinkStats `protobuf:"bytes,9,opt,name=link,proto3" json:"link,omitempty"`
}

// NewMessage implements Message.
func (m *Status) NewMessage() fx.Message { return &Status{} }

// TypeID implements SerializableMessage.
func (m *Status) TypeID() uint32 { return StatusTypeID }

// Serializable implements SerializableMessage.
func (m *Status) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// PayloadsQuery queries the cached payload records.
type PayloadsQuery struct {
}

// NewMessage implements Message.
func (m *PayloadsQuery) NewMessage() fx.Message { return &PayloadsQuery{} }

// TypeID implements SerializableMessage.
func (m *PayloadsQuery) TypeID() uint32 { return PayloadsQueryTypeID }

// Serializable implements SerializableMessage.
func (m *PayloadsQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *PayloadsQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *PayloadsQuery) Reset() { *m = PayloadsQuery{} }

// String implements proto.Message.
func (m *PayloadsQuery) String() string { return proto.CompactTextString(m) }

// Payloads is the reply of PayloadsQuery.
type Payloads struct {
	Sensor   *SensorRecord   `protobuf:"bytes,1,opt,name=sensor,proto3" json:"sensor,omitempty"`
	Feedback *FeedbackRecord `protobuf:"bytes,2,opt,name=feedback,proto3" json:"feedback,omitempty"`
	Command  *CommandRecord  `protobuf:"bytes,3,opt,name=command,proto3" json:"command,omitempty"`
}

// NewMessage implements Message.
func (m *Payloads) NewMessage() fx.Message { return &Payloads{} }

// TypeID implements SerializableMessage.
func (m *Payloads) TypeID() uint32 { return PayloadsTypeID }

// Serializable implements SerializableMessage.
func (m *Payloads) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Payloads) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Payloads) Reset() { *m = Payloads{} }

// String implements proto.Message.
func (m *Payloads) String() string { return proto.CompactTextString(m) }

// Boot requests booting the companion.
type Boot struct {
}

// NewMessage implements Message.
func (m *Boot) NewMessage() fx.Message { return &Boot{} }

// TypeID implements SerializableMessage.
func (m *Boot) TypeID() uint32 { return BootTypeID }

// Serializable implements SerializableMessage.
func (m *Boot) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Boot) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Boot) Reset() { *m = Boot{} }

// String implements proto.Message.
func (m *Boot) String() string { return proto.CompactTextString(m) }

// Shutdown requests shutting down the companion.
type Shutdown struct {
}

// NewMessage implements Message.
func (m *Shutdown) NewMessage() fx.Message { return &Shutdown{} }

// TypeID implements SerializableMessage.
func (m *Shutdown) TypeID() uint32 { return ShutdownTypeID }

// Serializable implements SerializableMessage.
func (m *Shutdown) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Shutdown) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Shutdown) Reset() { *m = Shutdown{} }

// String implements proto.Message.
func (m *Shutdown) String() string { return proto.CompactTextString(m) }

// Abort requests an abort.
type Abort struct {
}

// NewMessage implements Message.
func (m *Abort) NewMessage() fx.Message { return &Abort{} }

// TypeID implements SerializableMessage.
func (m *Abort) TypeID() uint32 { return AbortTypeID }

// Serializable implements SerializableMessage.
func (m *Abort) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Abort) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Abort) Reset() { *m = Abort{} }

// String implements proto.Message.
func (m *Abort) String() string { return proto.CompactTextString(m) }

// Recover requests leaving Abort or Error.
type Recover struct {
}

// NewMessage implements Message.
func (m *Recover) NewMessage() fx.Message { return &Recover{} }

// TypeID implements SerializableMessage.
func (m *Recover) TypeID() uint32 { return RecoverTypeID }

// Serializable implements SerializableMessage.
func (m *Recover) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Recover) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Recover) Reset() { *m = Recover{} }

// String implements proto.Message.
func (m *Recover) String() string { return proto.CompactTextString(m) }

// Move requests a manual actuator move.
type Move struct {
	Target int32 `protobuf:"varint,1,opt,name=target,proto3" json:"target,omitempty"`
}

// NewMessage implements Message.
func (m *Move) NewMessage() fx.Message { return &Move{} }

// TypeID implements SerializableMessage.
func (m *Move) TypeID() uint32 { return MoveTypeID }

// Serializable implements SerializableMessage.
func (m *Move) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Move) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Move) Reset() { *m = Move{} }

// String implements proto.Message.
func (m *Move) String() string { return proto.CompactTextString(m) }

// Download reads recorded samples.
type Download struct {
	Location uint32 `protobuf:"varint,1,opt,name=location,proto3" json:"location,omitempty"`
	Count    uint32 `protobuf:"varint,2,opt,name=count,proto3" json:"count,omitempty"`
}

// NewMessage implements Message.
func (m *Download) NewMessage() fx.Message { return &Download{} }

// TypeID implements SerializableMessage.
func (m *Download) TypeID() uint32 { return DownloadTypeID }

// Serializable implements SerializableMessage.
func (m *Download) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Download) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Download) Reset() { *m = Download{} }

// String implements proto.Message.
func (m *Download) String() string { return proto.CompactTextString(m) }

// Samples is the reply of Download.
type Samples struct {
	Used    uint32          `protobuf:"varint,1,opt,name=used,proto3" json:"used,omitempty"`
	Samples []*SampleRecord `protobuf:"bytes,2,rep,name=samples,proto3" json:"samples,omitempty"`
}

// NewMessage implements Message.
func (m *Samples) NewMessage() fx.Message { return &Samples{} }

// TypeID implements SerializableMessage.
func (m *Samples) TypeID() uint32 { return SamplesTypeID }

// Serializable implements SerializableMessage.
func (m *Samples) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Samples) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Samples) Reset() { *m = Samples{} }

// String implements proto.Message.
func (m *Samples) String() string { return proto.CompactTextString(m) }

// RecorderRestart discards the flight-data log.
type RecorderRestart struct {
}

// NewMessage implements Message.
func (m *RecorderRestart) NewMessage() fx.Message { return &RecorderRestart{} }

// TypeID implements SerializableMessage.
func (m *RecorderRestart) TypeID() uint32 { return RecorderRestartTypeID }

// Serializable implements SerializableMessage.
func (m *RecorderRestart) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *RecorderRestart) ProtoMessage() {}

// Reset implements proto.Message.
func (m *RecorderRestart) Reset() { *m = RecorderRestart{} }

// String implements proto.Message.
func (m *RecorderRestart) String() string { return proto.CompactTextString(m) }

// StatusEvent is sent when the supervisor changes state.
type StatusEvent struct {
	Status *Status `protobuf:"bytes,1,opt,name=status,proto3" json:"status,omitempty"`
}

// NewMessage implements Message.
func (m *StatusEvent) NewMessage() fx.Message { return &StatusEvent{} }

// TypeID implements SerializableMessage.
func (m *StatusEvent) TypeID() uint32 { return StatusEventTypeID }

// Serializable implements SerializableMessage.
func (m *StatusEvent) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusEvent) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusEvent) Reset() { *m = StatusEvent{} }

// String implements proto.Message.
func (m *StatusEvent) String() string { return proto.CompactTextString(m) }

// LinkStats reports the companion link counters.
type LinkStats struct {
	Exchanges      uint64 `protobuf:"varint,1,opt,name=exchanges,proto3" json:"exchanges,omitempty"`
	Timeouts       uint64 `protobuf:"varint,2,opt,name=timeouts,proto3" json:"timeouts,omitempty"`
	RemoteErrors   uint64 `protobuf:"varint,3,opt,name=remote_errors,json=remoteErrors,proto3" json:"remote_errors,omitempty"`
	Busy           uint64 `protobuf:"varint,4,opt,name=busy,proto3" json:"busy,omitempty"`
	ChecksumErrors uint64 `protobuf:"varint,5,opt,name=checksum_errors,json=checksumErrors,proto3" json:"checksum_errors,omitempty"`
	LateReplies    uint64 `protobuf:"varint,6,opt,name=late_replies,json=lateReplies,proto3" json:"late_replies,omitempty"`
	Flushes        uint64 `protobuf:"varint,7,opt,name=flushes,proto3" json:"flushes,omitempty"`
}

// SensorRecord is a sensor set.
type SensorRecord struct {
	Timestamp uint32  `protobuf:"varint,1,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Acc       []int32 `protobuf:"varint,2,rep,packed,name=acc,proto3" json:"acc,omitempty"`
	Gyro      []int32 `protobuf:"varint,3,rep,packed,name=gyro,proto3" json:"gyro,omitempty"`
	Baro      int32   `protobuf:"varint,4,opt,name=baro,proto3" json:"baro,omitempty"`
}

// FeedbackRecord is a feedback set.
type FeedbackRecord struct {
	Timestamp       uint32  `protobuf:"varint,1,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	ChamberPressure int32   `protobuf:"varint,2,opt,name=chamber_pressure,json=chamberPressure,proto3" json:"chamber_pressure,omitempty"`
	Actuators       []int32 `protobuf:"varint,3,rep,packed,name=actuators,proto3" json:"actuators,omitempty"`
}

// CommandRecord is a guidance command.
type CommandRecord struct {
	Timestamp uint32  `protobuf:"varint,1,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	Thrust    int32   `protobuf:"varint,2,opt,name=thrust,proto3" json:"thrust,omitempty"`
	Actuators []int32 `protobuf:"varint,3,rep,packed,name=actuators,proto3" json:"actuators,omitempty"`
	Position  []int32 `protobuf:"varint,4,rep,packed,name=position,proto3" json:"position,omitempty"`
	Velocity  []int32 `protobuf:"varint,5,rep,packed,name=velocity,proto3" json:"velocity,omitempty"`
	Mode      uint32  `protobuf:"varint,6,opt,name=mode,proto3" json:"mode,omitempty"`
}

// SampleRecord is a recorded flight-data sample.
type SampleRecord struct {
	Id              uint32 `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	State           uint32 `protobuf:"varint,2,opt,name=state,proto3" json:"state,omitempty"`
	CompanionState  uint32 `protobuf:"varint,3,opt,name=companion_state,json=companionState,proto3" json:"companion_state,omitempty"`
	ChamberPressure int32  `protobuf:"varint,4,opt,name=chamber_pressure,json=chamberPressure,proto3" json:"chamber_pressure,omitempty"`
	Altitude        int32  `protobuf:"varint,5,opt,name=altitude,proto3" json:"altitude,omitempty"`
	Thrust          int32  `protobuf:"varint,6,opt,name=thrust,proto3" json:"thrust,omitempty"`
	PositionZ       int32  `protobuf:"varint,7,opt,name=position_z,json=positionZ,proto3" json:"position_z,omitempty"`
	VelocityZ       int32  `protobuf:"varint,8,opt,name=velocity_z,json=velocityZ,proto3" json:"velocity_z,omitempty"`
	Time            uint32 `protobuf:"varint,9,opt,name=time,proto3" json:"time,omitempty"`
}

// TypeIDs
const (
	StatusQueryTypeID     uint32 = GroupTVC | 0x0000
	StatusTypeID          uint32 = StatusQueryTypeID | TypeIDMaskReply
	PayloadsQueryTypeID   uint32 = GroupTVC | 0x0001
	PayloadsTypeID        uint32 = PayloadsQueryTypeID | TypeIDMaskReply
	BootTypeID            uint32 = GroupTVC | 0x0002
	ShutdownTypeID        uint32 = GroupTVC | 0x0003
	AbortTypeID           uint32 = GroupTVC | 0x0004
	RecoverTypeID         uint32 = GroupTVC | 0x0005
	MoveTypeID            uint32 = GroupTVC | 0x0006
	DownloadTypeID        uint32 = GroupTVC | 0x0007
	SamplesTypeID         uint32 = DownloadTypeID | TypeIDMaskReply
	RecorderRestartTypeID uint32 = GroupTVC | 0x0008
	StatusEventTypeID     uint32 = GroupTVC | TypeIDKindEvent | 0x0000
)

func init() {
	Register(
		(*StatusQuery)(nil),
		(*Status)(nil),
		(*PayloadsQuery)(nil),
		(*Payloads)(nil),
		(*Boot)(nil),
		(*Shutdown)(nil),
		(*Abort)(nil),
		(*Recover)(nil),
		(*Move)(nil),
		(*Download)(nil),
		(*Samples)(nil),
		(*RecorderRestart)(nil),
		(*StatusEvent)(nil),
	)
}
