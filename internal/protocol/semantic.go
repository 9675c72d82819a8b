package protocol

import "fmt"

// FieldSpec declares a known field within a message type.
type FieldSpec struct {
	ID       uint16
	Type     FieldType
	Required bool
}

// Schema defines required and known fields for a message type.
type Schema struct {
	MessageType MessageType
	Fields      []FieldSpec
}

// Value is a decoded field value.
type Value struct {
	Type   FieldType
	Uint8  uint8
	Uint16 uint16
	Uint32 uint32
	Uint64 uint64
	Int32  int32
	Float  float32
	Bool   bool
	String string
	Bytes  []byte
}

// SemanticMessage is a message with typed field values validated by a schema.
type SemanticMessage struct {
	Header      Header
	AuthBlock   []byte
	MessageType MessageType
	Fields      map[uint16]Value
	Unknown     []Field
}

// ParseSemantic validates msg against schema and returns typed field values.
func ParseSemantic(msg *Message, schema Schema) (*SemanticMessage, error) {
	if msg == nil {
		return nil, ErrInvalidLength
	}
	if msg.Header.MessageType != schema.MessageType {
		return nil, ErrMessageTypeMismatch
	}
	known := make(map[uint16]FieldSpec, len(schema.Fields))
	required := make(map[uint16]struct{})
	for _, spec := range schema.Fields {
		known[spec.ID] = spec
		if spec.Required {
			required[spec.ID] = struct{}{}
		}
	}

	semantic := &SemanticMessage{
		Header:      msg.Header,
		AuthBlock:   msg.AuthBlock,
		MessageType: msg.Header.MessageType,
		Fields:      make(map[uint16]Value),
	}

	for _, field := range msg.Fields {
		spec, ok := known[field.ID]
		if !ok {
			semantic.Unknown = append(semantic.Unknown, field)
			continue
		}
		value, err := decodeValue(field, spec.Type)
		if err != nil {
			return nil, err
		}
		semantic.Fields[field.ID] = value
		delete(required, field.ID)
	}

	// Report the first missing field in schema order so errors are deterministic.
	for _, spec := range schema.Fields {
		if _, missing := required[spec.ID]; missing {
			return nil, MissingFieldError{FieldID: spec.ID}
		}
	}

	return semantic, nil
}

// MissingFieldError indicates a required field was not present.
type MissingFieldError struct {
	FieldID uint16
}

func (e MissingFieldError) Error() string {
	return fmt.Sprintf("protocol: missing required field %d", e.FieldID)
}

func decodeValue(field Field, expected FieldType) (Value, error) {
	if field.Type != expected {
		return Value{}, fmt.Errorf("%w: field %d has type %d, want %d", ErrFieldTypeMismatch, field.ID, field.Type, expected)
	}
	v := Value{Type: field.Type}
	var err error
	switch field.Type {
	case FieldUint8:
		v.Uint8, err = field.Uint8()
	case FieldUint16:
		v.Uint16, err = field.Uint16()
	case FieldUint32:
		v.Uint32, err = field.Uint32()
	case FieldUint64:
		v.Uint64, err = field.Uint64()
	case FieldInt32:
		v.Int32, err = field.Int32()
	case FieldFloat32:
		v.Float, err = field.Float32()
	case FieldBool:
		v.Bool, err = field.Bool()
	case FieldString:
		v.String, err = field.String()
	case FieldBytes:
		v.Bytes, err = field.Bytes()
	default:
		return Value{}, fmt.Errorf("%w: field %d has unknown type %d", ErrFieldTypeMismatch, field.ID, field.Type)
	}
	if err != nil {
		return Value{}, err
	}
	return v, nil
}
