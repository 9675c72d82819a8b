package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// fixedWidth is the encoded size of each scalar field type.
var fixedWidth = map[FieldType]int{
	FieldUint8:   1,
	FieldUint16:  2,
	FieldUint32:  4,
	FieldUint64:  8,
	FieldBool:    1,
	FieldInt32:   4,
	FieldFloat32: 4,
}

func scalar(id uint16, t FieldType, put func([]byte)) Field {
	buf := make([]byte, fixedWidth[t])
	put(buf)
	return Field{ID: id, Type: t, Value: buf}
}

func NewFieldUint8(id uint16, v uint8) Field {
	return scalar(id, FieldUint8, func(b []byte) { b[0] = v })
}

func NewFieldUint16(id uint16, v uint16) Field {
	return scalar(id, FieldUint16, func(b []byte) { binary.BigEndian.PutUint16(b, v) })
}

func NewFieldUint32(id uint16, v uint32) Field {
	return scalar(id, FieldUint32, func(b []byte) { binary.BigEndian.PutUint32(b, v) })
}

// NewFieldUint64 carries camera masks and microsecond timestamps.
func NewFieldUint64(id uint16, v uint64) Field {
	return scalar(id, FieldUint64, func(b []byte) { binary.BigEndian.PutUint64(b, v) })
}

// NewFieldInt32 stores v as its two's complement bit pattern.
func NewFieldInt32(id uint16, v int32) Field {
	return scalar(id, FieldInt32, func(b []byte) { binary.BigEndian.PutUint32(b, uint32(v)) })
}

// NewFieldFloat32 stores the IEEE-754 bits of v. Pose and gain metadata use it.
func NewFieldFloat32(id uint16, v float32) Field {
	return scalar(id, FieldFloat32, func(b []byte) { binary.BigEndian.PutUint32(b, math.Float32bits(v)) })
}

func NewFieldBool(id uint16, v bool) Field {
	return scalar(id, FieldBool, func(b []byte) {
		if v {
			b[0] = 1
		}
	})
}

func NewFieldString(id uint16, v string) Field {
	return Field{ID: id, Type: FieldString, Value: []byte(v)}
}

// NewFieldBytes copies v.
func NewFieldBytes(id uint16, v []byte) Field {
	return Field{ID: id, Type: FieldBytes, Value: append([]byte(nil), v...)}
}

// raw checks the field type and, for scalars, the encoded width.
func (f Field) raw(want FieldType) ([]byte, error) {
	if f.Type != want {
		return nil, fmt.Errorf("%w: field %d has type %d, want %d", ErrFieldTypeMismatch, f.ID, f.Type, want)
	}
	if n, ok := fixedWidth[want]; ok && len(f.Value) != n {
		return nil, fmt.Errorf("%w: field %d is %d bytes, want %d", ErrInvalidLength, f.ID, len(f.Value), n)
	}
	return f.Value, nil
}

func (f Field) Uint8() (uint8, error) {
	b, err := f.raw(FieldUint8)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (f Field) Uint16() (uint16, error) {
	b, err := f.raw(FieldUint16)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (f Field) Uint32() (uint32, error) {
	b, err := f.raw(FieldUint32)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (f Field) Uint64() (uint64, error) {
	b, err := f.raw(FieldUint64)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (f Field) Int32() (int32, error) {
	b, err := f.raw(FieldInt32)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (f Field) Float32() (float32, error) {
	b, err := f.raw(FieldFloat32)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b)), nil
}

// Bool accepts only 0 and 1.
func (f Field) Bool() (bool, error) {
	b, err := f.raw(FieldBool)
	if err != nil {
		return false, err
	}
	if b[0] > 1 {
		return false, fmt.Errorf("%w: field %d bool byte %d", ErrInvalidLength, f.ID, b[0])
	}
	return b[0] == 1, nil
}

func (f Field) String() (string, error) {
	b, err := f.raw(FieldString)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Bytes returns a copy so callers may keep it past the read buffer.
func (f Field) Bytes() ([]byte, error) {
	b, err := f.raw(FieldBytes)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}
