//go:build linux

package shm

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/danmuck/shmframe/internal/testutil/testlog"
)

func newSegmentPair(t *testing.T, depth int) (*Segment, *Segment) {
	t.Helper()
	opts := Options{
		Cameras:        CameraForwardLeft | CameraForwardRight,
		MaxPayloadSize: 128,
		QueueDepth:     depth,
		Dir:            t.TempDir(),
	}
	srvOpts := opts
	srvOpts.Role = RoleServer
	producer, err := Open(srvOpts)
	if err != nil {
		t.Fatalf("create segment: %v", err)
	}
	t.Cleanup(func() { _ = producer.Close() })

	consumer, err := Open(opts)
	if err != nil {
		t.Fatalf("open segment: %v", err)
	}
	t.Cleanup(func() { _ = consumer.Close() })
	return producer, consumer
}

func TestSegmentInfoRoundTrip(t *testing.T) {
	testlog.Start(t)
	producer, consumer := newSegmentPair(t, 4)

	if _, err := consumer.ReadInfoPacket(); !errors.Is(err, ErrNoInfo) {
		t.Fatalf("expected ErrNoInfo, got %v", err)
	}
	info := []byte{3, 0, 0, 0, 4, 0, 0, 0}
	if err := producer.WriteInfo(info); err != nil {
		t.Fatalf("write info: %v", err)
	}
	got, err := consumer.ReadInfoPacket()
	if err != nil {
		t.Fatalf("read info: %v", err)
	}
	if !bytes.Equal(got, info) {
		t.Fatalf("expected %v, got %v", info, got)
	}
}

func TestSegmentDataFlow(t *testing.T) {
	testlog.Start(t)
	producer, consumer := newSegmentPair(t, 4)

	for i := byte(1); i <= 3; i++ {
		if err := producer.WriteData(bytes.Repeat([]byte{i}, int(i)*10)); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if got := consumer.BytesWaiting(); got != 3 {
		t.Fatalf("expected 3 waiting, got %d", got)
	}
	for i := byte(1); i <= 3; i++ {
		b, err := consumer.ReadDataPacket()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if len(b) != int(i)*10 || b[0] != i {
			t.Fatalf("unexpected unit %d: len=%d", i, len(b))
		}
	}
	if _, err := consumer.ReadDataPacket(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestSegmentReaderSkipsLappedSlots(t *testing.T) {
	testlog.Start(t)
	producer, consumer := newSegmentPair(t, 3)

	for i := byte(1); i <= 7; i++ {
		if err := producer.WriteData([]byte{i}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if got := consumer.BytesWaiting(); got != 3 {
		t.Fatalf("expected backlog capped at ring size 3, got %d", got)
	}
	b, err := consumer.ReadDataPacket()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if b[0] != 5 {
		t.Fatalf("expected oldest surviving unit 5, got %d", b[0])
	}
}

func TestSegmentRejectsOversizePayload(t *testing.T) {
	testlog.Start(t)
	producer, _ := newSegmentPair(t, 2)
	if err := producer.WriteData(make([]byte, 129)); !errors.Is(err, ErrPayloadTooBig) {
		t.Fatalf("expected ErrPayloadTooBig, got %v", err)
	}
}

func TestSegmentOpenMissing(t *testing.T) {
	testlog.Start(t)
	_, err := Open(Options{Cameras: CameraDownwardRight, Dir: t.TempDir()})
	if err == nil {
		t.Fatalf("expected error opening missing segment")
	}
}

func TestSegmentFullRingHidesSlotUnderWrite(t *testing.T) {
	testlog.Start(t)
	producer, consumer := newSegmentPair(t, 2)

	// Three slots: after three writes the next write reuses the slot of seq 0.
	for i := byte(1); i <= 3; i++ {
		if err := producer.WriteData([]byte{i}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if got := consumer.BytesWaiting(); got != 2 {
		t.Fatalf("expected 2 readable units, got %d", got)
	}
	b, err := consumer.ReadDataPacket()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if b[0] != 2 {
		t.Fatalf("expected unit 2, got %d", b[0])
	}
}

func TestSegmentConcurrentReaderNeverSeesTornSlot(t *testing.T) {
	testlog.Start(t)
	producer, consumer := newSegmentPair(t, 2)
	const writes = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		payload := make([]byte, 128)
		for i := 0; i < writes; i++ {
			for j := range payload {
				payload[j] = byte(i)
			}
			if err := producer.WriteData(payload); err != nil {
				t.Errorf("write %d: %v", i, err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	accepted := 0
	for {
		select {
		case <-done:
			if consumer.BytesWaiting() == 0 {
				if accepted == 0 {
					t.Fatalf("reader accepted no units")
				}
				return
			}
		default:
		}
		b, err := consumer.ReadDataPacket()
		if errors.Is(err, ErrEmpty) || errors.Is(err, ErrOverrun) {
			continue
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		for j := range b {
			if b[j] != b[0] {
				t.Fatalf("torn unit: byte %d is %d, first is %d", j, b[j], b[0])
			}
		}
		accepted++
	}
}

func TestSegmentProducerHandleCanRead(t *testing.T) {
	testlog.Start(t)
	producer, _ := newSegmentPair(t, 2)
	if err := producer.WriteData([]byte{9, 9}); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := producer.ReadDataPacket()
	if err != nil {
		t.Fatalf("read on producer handle: %v", err)
	}
	if !bytes.Equal(b, []byte{9, 9}) {
		t.Fatalf("unexpected unit %v", b)
	}
}
