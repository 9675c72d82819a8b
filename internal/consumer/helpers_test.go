package consumer

import (
	"errors"
	"testing"

	"github.com/danmuck/shmframe/internal/imagebuf"
	"github.com/danmuck/shmframe/internal/shm"
)

// scriptedUnit is one scripted ReadDataPacket result.
type scriptedUnit struct {
	payload []byte
	err     error
}

// scriptedChannel replays fixed results and reuses its read buffer the way
// a real transport does.
type scriptedChannel struct {
	info    []byte
	infoErr error
	units   []scriptedUnit
	buf     []byte
	reads   int
}

func (c *scriptedChannel) BytesWaiting() uint32 { return uint32(len(c.units)) }

func (c *scriptedChannel) ReadInfoPacket() ([]byte, error) {
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	return c.info, nil
}

func (c *scriptedChannel) ReadDataPacket() ([]byte, error) {
	if len(c.units) == 0 {
		return nil, errors.New("scripted: empty")
	}
	u := c.units[0]
	c.units = c.units[1:]
	c.reads++
	if u.err != nil {
		return nil, u.err
	}
	c.buf = append(c.buf[:0], u.payload...)
	return c.buf, nil
}

func (c *scriptedChannel) Close() error { return nil }

func record(t *testing.T, layout CameraLayout, w, h uint32, enc imagebuf.Encoding) []byte {
	t.Helper()
	code, ok := layout.Code()
	if !ok {
		t.Fatalf("layout %s has no code", layout)
	}
	b, err := PropertyRecord{Layout: code, Width: w, Height: h, Encoding: uint32(enc)}.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	return b
}

func newQueue(t *testing.T, info []byte) *shm.Queue {
	t.Helper()
	q, err := shm.NewQueue(shm.Options{Cameras: shm.CameraForwardLeft | shm.CameraForwardRight, QueueDepth: 16, MaxPayloadSize: 4096})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	if info != nil {
		if err := q.PublishInfo(info); err != nil {
			t.Fatalf("publish info: %v", err)
		}
	}
	return q
}

func mustSession(t *testing.T, layout CameraLayout, w, h uint32, enc imagebuf.Encoding, drain bool) *Session {
	t.Helper()
	s, err := Negotiate(&scriptedChannel{info: record(t, layout, w, h, enc)}, drain)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	return s
}

// pattern returns n bytes starting at seed and counting up.
func pattern(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

// refillingChannel publishes a new unit every time one is read, like a
// producer running as fast as the consumer.
type refillingChannel struct {
	waiting uint32
	next    byte
	reads   int
	buf     []byte
}

func (c *refillingChannel) BytesWaiting() uint32 { return c.waiting }

func (c *refillingChannel) ReadDataPacket() ([]byte, error) {
	c.reads++
	if c.reads > 1000 {
		return nil, errors.New("refilling: read limit")
	}
	c.next++
	c.buf = append(c.buf[:0], pattern(4, c.next)...)
	return c.buf, nil
}
