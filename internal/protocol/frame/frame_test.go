package frame

import (
	"bytes"
	"errors"
	"testing"
)

var testLimits = Limits{MaxPayloadBytes: 1024}

func rawHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	putHeader(buf, h)
	return buf
}

func TestPutParseRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	dst := make([]byte, Size(len(payload)))
	if _, err := Put(dst, Frame{Header: Header{Sequence: 42, Kind: KindData}, Payload: payload}, testLimits); err != nil {
		t.Fatalf("put: %v", err)
	}
	out, err := Parse(dst, testLimits)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Header.Magic != Magic || out.Header.Kind != KindData || out.Header.Sequence != 42 {
		t.Fatalf("header mismatch: got=%+v", out.Header)
	}
	if !bytes.Equal(out.Payload, payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestPutParseAliasesBuffer(t *testing.T) {
	dst := make([]byte, Size(4)+16)
	n, err := Put(dst, Frame{Header: Header{Sequence: 7, Kind: KindInfo}, Payload: []byte{9, 8, 7, 6}}, testLimits)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != Size(4) {
		t.Fatalf("expected %d bytes written, got %d", Size(4), n)
	}
	f, err := Parse(dst, testLimits)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Header.Kind != KindInfo || !bytes.Equal(f.Payload, []byte{9, 8, 7, 6}) {
		t.Fatalf("unexpected frame: %+v", f)
	}
	dst[FixedHeaderLen] = 0
	if f.Payload[0] != 0 {
		t.Fatalf("expected parsed payload to alias the source buffer")
	}
}

func TestPutRejectsSmallBuffer(t *testing.T) {
	_, err := Put(make([]byte, 8), Frame{Payload: []byte{1}}, testLimits)
	if !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("expected ErrBufferTooSmall, got %v", err)
	}
}

func TestParseShortHeader(t *testing.T) {
	if _, err := Parse([]byte{1, 2, 3}, testLimits); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestParseHeaderLenTooSmall(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, HeaderLen: 8, Sequence: 1, Kind: KindData}
	if _, err := Parse(rawHeader(h), testLimits); !errors.Is(err, ErrHeaderLenTooSmall) {
		t.Fatalf("expected ErrHeaderLenTooSmall, got %v", err)
	}
}

func TestParseSkipsHeaderExtension(t *testing.T) {
	h := Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen + 4, Kind: KindData, PayloadLen: 2}
	b := append(rawHeader(h), 0xEE, 0xEE, 0xEE, 0xEE, 5, 6)
	f, err := Parse(b, testLimits)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !bytes.Equal(f.Payload, []byte{5, 6}) {
		t.Fatalf("expected payload after extension, got %v", f.Payload)
	}
}

func TestParseRejectsBadMagicAndShortPayload(t *testing.T) {
	h := Header{Magic: 1, Version: Version, HeaderLen: FixedHeaderLen}
	if _, err := Parse(rawHeader(h), testLimits); !errors.Is(err, ErrInvalidMagic) {
		t.Fatalf("expected ErrInvalidMagic, got %v", err)
	}
	h = Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, PayloadLen: 10}
	if _, err := Parse(rawHeader(h), testLimits); !errors.Is(err, ErrShortPayload) {
		t.Fatalf("expected ErrShortPayload, got %v", err)
	}
}

func TestPayloadLimitEnforced(t *testing.T) {
	limits := Limits{MaxPayloadBytes: 2}
	if _, err := Put(make([]byte, 64), Frame{Payload: []byte{1, 2, 3}}, limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
	h := Header{Magic: Magic, Version: Version, HeaderLen: FixedHeaderLen, PayloadLen: 3}
	if _, err := Parse(append(rawHeader(h), 1, 2, 3), limits); !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge on parse, got %v", err)
	}
}
