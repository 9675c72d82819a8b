package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	FixedHeaderLen uint16 = 32
	Magic          uint32 = 0x53484D53 // "SHMS"
	Version        uint16 = 1
)

// Kind tags what a slot frame carries.
type Kind uint32

const (
	KindInfo Kind = 1
	KindData Kind = 2
)

var (
	ErrShortHeader       = errors.New("frame: short fixed header")
	ErrHeaderLenTooSmall = errors.New("frame: header_len smaller than fixed header")
	ErrInvalidMagic      = errors.New("frame: invalid magic")
	ErrPayloadTooLarge   = errors.New("frame: payload too large")
	ErrShortPayload      = errors.New("frame: payload shorter than header declares")
	ErrBufferTooSmall    = errors.New("frame: destination buffer too small")
)

// Header is the fixed slot header.
type Header struct {
	Magic      uint32
	Version    uint16
	HeaderLen  uint16
	Sequence   uint64
	Kind       Kind
	Flags      uint32
	PayloadLen uint64
}

// Frame is one complete slot record.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint64
}

// Size returns the encoded size of a frame carrying payloadLen bytes.
func Size(payloadLen int) int {
	return int(FixedHeaderLen) + payloadLen
}

// Parse decodes a frame held entirely in b. The returned payload aliases b.
func Parse(b []byte, limits Limits) (Frame, error) {
	if len(b) < int(FixedHeaderLen) {
		return Frame{}, ErrShortHeader
	}
	h, err := DecodeHeader(b[:FixedHeaderLen])
	if err != nil {
		return Frame{}, err
	}
	if err := checkHeader(h, limits); err != nil {
		return Frame{}, err
	}
	start := uint64(h.HeaderLen)
	if uint64(len(b)) < start || uint64(len(b))-start < h.PayloadLen {
		return Frame{}, ErrShortPayload
	}
	return Frame{Header: h, Payload: b[start : start+h.PayloadLen]}, nil
}

// Put encodes f into dst and returns the number of bytes written.
func Put(dst []byte, f Frame, limits Limits) (int, error) {
	payloadLen := uint64(len(f.Payload))
	if payloadLen > limits.MaxPayloadBytes {
		return 0, ErrPayloadTooLarge
	}
	n := Size(len(f.Payload))
	if len(dst) < n {
		return 0, ErrBufferTooSmall
	}
	putHeader(dst, stamp(f.Header, payloadLen))
	copy(dst[FixedHeaderLen:], f.Payload)
	return n, nil
}

func stamp(h Header, payloadLen uint64) Header {
	h.Magic = Magic
	h.Version = Version
	h.HeaderLen = FixedHeaderLen
	h.PayloadLen = payloadLen
	return h
}

func checkHeader(h Header, limits Limits) error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.HeaderLen < FixedHeaderLen {
		return ErrHeaderLenTooSmall
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

func putHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.HeaderLen)
	binary.BigEndian.PutUint64(buf[8:16], h.Sequence)
	binary.BigEndian.PutUint32(buf[16:20], uint32(h.Kind))
	binary.BigEndian.PutUint32(buf[20:24], h.Flags)
	binary.BigEndian.PutUint64(buf[24:32], h.PayloadLen)
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != int(FixedHeaderLen) {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		HeaderLen:  binary.BigEndian.Uint16(b[6:8]),
		Sequence:   binary.BigEndian.Uint64(b[8:16]),
		Kind:       Kind(binary.BigEndian.Uint32(b[16:20])),
		Flags:      binary.BigEndian.Uint32(b[20:24]),
		PayloadLen: binary.BigEndian.Uint64(b[24:32]),
	}, nil
}
