package shm

import (
	"errors"
	"testing"

	"github.com/danmuck/shmframe/internal/testutil/testlog"
)

func newTestQueue(t *testing.T, depth int) *Queue {
	t.Helper()
	q, err := NewQueue(Options{Cameras: CameraForwardLeft, QueueDepth: depth, MaxPayloadSize: 64})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func TestQueueFIFOAndBacklog(t *testing.T) {
	testlog.Start(t)
	q := newTestQueue(t, 4)

	if got := q.BytesWaiting(); got != 0 {
		t.Fatalf("expected empty backlog, got %d", got)
	}
	if _, err := q.ReadDataPacket(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}

	for i := byte(1); i <= 3; i++ {
		if err := q.PublishData([]byte{i}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if got := q.BytesWaiting(); got != 3 {
		t.Fatalf("expected 3 waiting, got %d", got)
	}
	for want := byte(1); want <= 3; want++ {
		b, err := q.ReadDataPacket()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(b) != 1 || b[0] != want {
			t.Fatalf("expected [%d], got %v", want, b)
		}
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	testlog.Start(t)
	q := newTestQueue(t, 2)

	for i := byte(1); i <= 4; i++ {
		if err := q.PublishData([]byte{i}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if got := q.BytesWaiting(); got != 2 {
		t.Fatalf("expected backlog capped at 2, got %d", got)
	}
	if got := q.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped, got %d", got)
	}
	b, _ := q.ReadDataPacket()
	if b[0] != 3 {
		t.Fatalf("expected oldest surviving unit 3, got %d", b[0])
	}
}

func TestQueueReusesReadBuffer(t *testing.T) {
	testlog.Start(t)
	q := newTestQueue(t, 4)
	_ = q.PublishData([]byte{1, 1})
	_ = q.PublishData([]byte{2, 2})

	first, _ := q.ReadDataPacket()
	if _, err := q.ReadDataPacket(); err != nil {
		t.Fatalf("read: %v", err)
	}
	if first[0] != 2 {
		t.Fatalf("expected first slice overwritten by second read, got %v", first)
	}
}

func TestQueueInfoAndLimits(t *testing.T) {
	testlog.Start(t)
	q := newTestQueue(t, 2)

	if _, err := q.ReadInfoPacket(); !errors.Is(err, ErrNoInfo) {
		t.Fatalf("expected ErrNoInfo, got %v", err)
	}
	if err := q.PublishInfo([]byte{9, 8, 7}); err != nil {
		t.Fatalf("publish info: %v", err)
	}
	info, err := q.ReadInfoPacket()
	if err != nil || len(info) != 3 {
		t.Fatalf("expected 3 byte info, got %v err=%v", info, err)
	}
	if err := q.PublishData(make([]byte, 65)); !errors.Is(err, ErrPayloadTooBig) {
		t.Fatalf("expected ErrPayloadTooBig, got %v", err)
	}

	_ = q.Close()
	if _, err := q.ReadDataPacket(); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	testlog.Start(t)
	if _, err := NewQueue(Options{}); !errors.Is(err, ErrInvalidOptions) {
		t.Fatalf("expected ErrInvalidOptions for empty camera mask, got %v", err)
	}
	opts := Options{Cameras: CameraDownwardLeft}.WithDefaults()
	if opts.MaxPayloadSize != DefaultMaxPayloadSize || opts.QueueDepth != DefaultQueueDepth || opts.Dir != DefaultDir {
		t.Fatalf("unexpected defaults: %+v", opts)
	}
}

func TestCameraMask(t *testing.T) {
	testlog.Start(t)
	mask, err := ParseCameras([]string{"forward_left", " Forward_Right "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if mask != CameraForwardLeft|CameraForwardRight {
		t.Fatalf("expected mask 3, got %d", mask)
	}
	if !mask.Has(CameraForwardRight) || mask.Has(CameraDownwardLeft) {
		t.Fatalf("unexpected Has results for %s", mask)
	}
	if got := mask.String(); got != "forward_left|forward_right" {
		t.Fatalf("unexpected string %q", got)
	}
	if _, err := ParseCamera("rear"); err == nil {
		t.Fatalf("expected unknown camera error")
	}
}
