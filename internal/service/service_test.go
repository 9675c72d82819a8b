package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/shmframe/internal/bus"
	"github.com/danmuck/shmframe/internal/config"
	"github.com/danmuck/shmframe/internal/consumer"
	"github.com/danmuck/shmframe/internal/shm"
	"github.com/danmuck/shmframe/internal/testutil/testlog"
)

type delivered struct {
	ts    uint64
	pixel uint8
}

func testConfig() ServiceConfig {
	cfg := DefaultServiceConfig()
	cfg.Name = "svc-test"
	cfg.Channel.Cameras = shm.CameraForwardLeft
	cfg.BusAddr = "127.0.0.1:0"
	cfg.HTTPAddr = ""
	cfg.DrainToLatest = false
	cfg.Session.PollTimeout = 10 * time.Millisecond
	cfg.Session.Backoff.InitialDelay = time.Millisecond
	cfg.Session.Backoff.MaxDelay = 5 * time.Millisecond
	cfg.Session.Backoff.Jitter = false
	return cfg
}

func monoQueue(t *testing.T) *shm.Queue {
	t.Helper()
	q, err := shm.NewQueue(shm.Options{Cameras: shm.CameraForwardLeft, QueueDepth: 8, MaxPayloadSize: 1024})
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	rec, _ := consumer.PropertyRecord{Layout: 0, Width: 4, Height: 2, Encoding: 0}.MarshalBinary()
	if err := q.PublishInfo(rec); err != nil {
		t.Fatalf("publish info: %v", err)
	}
	return q
}

// start runs svc until the test ends and returns a publisher on its bus.
func start(t *testing.T, svc *Service) *bus.Publisher {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.RunContext(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("run returned %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("service did not stop")
		}
	})

	select {
	case <-svc.Ready():
	case err := <-done:
		t.Fatalf("service exited before ready: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatalf("service not ready")
	}
	pub, err := bus.Dial(svc.BusAddr(), "")
	if err != nil {
		t.Fatalf("dial bus: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })
	return pub
}

func publish(t *testing.T, q *shm.Queue, pub *bus.Publisher, cams shm.Camera, ts, validUntil uint64, pixel byte) {
	t.Helper()
	if cams.Overlaps(shm.CameraForwardLeft) {
		payload := make([]byte, 8)
		for i := range payload {
			payload[i] = pixel
		}
		if err := q.PublishData(payload); err != nil {
			t.Fatalf("publish data: %v", err)
		}
	}
	n := consumer.FrameNotification{CameraMask: cams, CaptureTimestamp: ts, ValidUntil: validUntil}
	if err := pub.Send(n.Message(0)); err != nil {
		t.Fatalf("send notification: %v", err)
	}
}

func await(t *testing.T, got <-chan delivered) delivered {
	t.Helper()
	select {
	case d := <-got:
		return d
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame delivered")
	}
	return delivered{}
}

func TestServiceDecodesNotifiedFrames(t *testing.T) {
	testlog.Start(t)
	q := monoQueue(t)
	svc := NewService(testConfig())
	svc.SetOpener(func(shm.Options) (shm.Channel, error) { return q, nil })
	got := make(chan delivered, 8)
	svc.SetFrameHook(func(n consumer.FrameNotification, f *consumer.DecodedFrame) {
		got <- delivered{ts: n.CaptureTimestamp, pixel: f.Plane(0).Uint8At(3, 1, 0)}
	})
	pub := start(t, svc)

	if !svc.State().Negotiated() {
		t.Fatalf("expected negotiated state after ready")
	}
	publish(t, q, pub, shm.CameraDownwardLeft, 50, 60, 0)
	publish(t, q, pub, shm.CameraForwardLeft, 100, 200, 7)

	d := await(t, got)
	if d.ts != 100 || d.pixel != 7 {
		t.Fatalf("expected ts=100 pixel=7, got %+v", d)
	}
	snap := svc.State().Snapshot()
	if snap.Counters.Ignored != 1 || snap.Counters.Notifications != 1 || snap.Counters.Frames != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	if snap.Session == nil || snap.Session.Layout != consumer.LayoutMonoLow.String() {
		t.Fatalf("unexpected session %+v", snap.Session)
	}
}

func TestServiceDropsExpiredNotifications(t *testing.T) {
	testlog.Start(t)
	q := monoQueue(t)
	cfg := testConfig()
	cfg.DropExpired = true
	svc := NewService(cfg)
	svc.SetOpener(func(shm.Options) (shm.Channel, error) { return q, nil })
	got := make(chan delivered, 8)
	svc.SetFrameHook(func(n consumer.FrameNotification, f *consumer.DecodedFrame) {
		got <- delivered{ts: n.CaptureTimestamp, pixel: f.Plane(0).Uint8At(0, 0, 0)}
	})
	pub := start(t, svc)

	publish(t, q, pub, shm.CameraForwardLeft, 100, 200, 1)
	if d := await(t, got); d.ts != 100 {
		t.Fatalf("expected first frame, got %+v", d)
	}
	publish(t, q, pub, shm.CameraForwardLeft, 300, 400, 2)
	if d := await(t, got); d.ts != 300 {
		t.Fatalf("expected second frame, got %+v", d)
	}
	// Arrives after the clock passed its validity window.
	publish(t, q, pub, shm.CameraForwardLeft, 150, 250, 3)
	publish(t, q, pub, shm.CameraForwardLeft, 310, 400, 4)
	d := await(t, got)
	if d.ts != 310 || d.pixel != 4 {
		t.Fatalf("expected the stale payload to be consumed and skipped, got %+v", d)
	}
	snap := svc.State().Snapshot()
	if snap.Counters.Expired != 1 || snap.Counters.Frames != 3 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestServiceRetriesUntilChannelOpens(t *testing.T) {
	testlog.Start(t)
	q := monoQueue(t)
	attempts := 0
	svc := NewService(testConfig())
	svc.SetOpener(func(shm.Options) (shm.Channel, error) {
		attempts++
		if attempts < 3 {
			return nil, shm.ErrBadSegment
		}
		return q, nil
	})
	_ = start(t, svc)
	if attempts != 3 {
		t.Fatalf("expected 3 open attempts, got %d", attempts)
	}
	if svc.State().Snapshot().ChannelID != q.ID() {
		t.Fatalf("expected channel id %s", q.ID())
	}
}

func TestServiceGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Session.MaxOpenAttempts = 2
	svc := NewService(cfg)
	svc.SetOpener(func(shm.Options) (shm.Channel, error) { return nil, shm.ErrBadSegment })

	err := svc.RunContext(context.Background())
	if !errors.Is(err, ErrOpenAttemptsExhausted) || !errors.Is(err, shm.ErrBadSegment) {
		t.Fatalf("expected exhausted attempts wrapping the open error, got %v", err)
	}
}

func TestServiceRetriesNegotiationUntilInfoPublished(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.Session.MaxOpenAttempts = 2
	svc := NewService(cfg)
	svc.SetOpener(func(shm.Options) (shm.Channel, error) {
		return shm.NewQueue(shm.Options{Cameras: shm.CameraForwardLeft})
	})

	err := svc.RunContext(context.Background())
	if !errors.Is(err, consumer.ErrShortRead) {
		t.Fatalf("expected negotiation failure, got %v", err)
	}
}

func TestServiceRequiresBusAddr(t *testing.T) {
	testlog.Start(t)
	cfg := testConfig()
	cfg.BusAddr = " "
	if err := NewService(cfg).RunContext(context.Background()); !errors.Is(err, ErrBusAddrRequired) {
		t.Fatalf("expected ErrBusAddrRequired, got %v", err)
	}
}

func TestServiceConfigFrom(t *testing.T) {
	testlog.Start(t)
	c := config.DefaultConsumerConfig()
	c.Name = " rig "
	c.Cameras = []string{"forward_left", "downward_right"}
	c.DropExpired = false
	cfg, err := ServiceConfigFrom(c)
	if err != nil {
		t.Fatalf("map config: %v", err)
	}
	if cfg.Name != "rig" || cfg.Channel.Cameras != shm.CameraForwardLeft|shm.CameraDownwardRight {
		t.Fatalf("unexpected service config %+v", cfg)
	}
	if cfg.DropExpired || !cfg.DrainToLatest || cfg.BusAddr != c.BusAddr {
		t.Fatalf("unexpected policies %+v", cfg)
	}

	c.Cameras = []string{"rear"}
	if _, err := ServiceConfigFrom(c); err == nil {
		t.Fatalf("expected unknown camera error")
	}
}
