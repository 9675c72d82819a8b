package protocol

const (
	Magic      uint32 = 0x53484D46 // "SHMF"
	Version    uint16 = 1
	HeaderSize uint16 = 32

	FlagHasAuth uint32 = 0x01
)

// MessageType is the numeric tag carried by every control-bus message.
type MessageType uint32

const (
	MessageHeartbeat      MessageType = 0
	MessageImageAvailable MessageType = 103
	MessageImageTrigger   MessageType = 104
	MessageStatusText     MessageType = 253
)

func (t MessageType) String() string {
	switch t {
	case MessageHeartbeat:
		return "heartbeat"
	case MessageImageAvailable:
		return "image_available"
	case MessageImageTrigger:
		return "image_trigger"
	case MessageStatusText:
		return "status_text"
	default:
		return "unknown"
	}
}

// FieldType is the TLV value type id.
type FieldType uint8

const (
	FieldUint8   FieldType = 1
	FieldUint16  FieldType = 2
	FieldUint32  FieldType = 3
	FieldUint64  FieldType = 4
	FieldBool    FieldType = 5
	FieldString  FieldType = 6
	FieldBytes   FieldType = 7
	FieldInt32   FieldType = 8
	FieldFloat32 FieldType = 9
)

// Header is the fixed 32-byte message header.
type Header struct {
	Magic       uint32
	Version     uint16
	HeaderLen   uint16
	MessageID   uint64
	MessageType MessageType
	Flags       uint32
	PayloadLen  uint64
}

// Field is one TLV-encoded payload value.
type Field struct {
	ID    uint16
	Type  FieldType
	Value []byte
}

// Message is one complete control-bus message.
type Message struct {
	Header    Header
	AuthBlock []byte
	Fields    []Field
}
