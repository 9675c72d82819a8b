package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/shmframe/internal/consumer"
	"github.com/danmuck/shmframe/internal/imagebuf"
	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/shm"
	"github.com/danmuck/shmframe/internal/testutil/testlog"
)

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	logs.Logf("server/http: GET %s status=%d", path, rr.Code)
	return rr
}

func monoFrame(t *testing.T) *consumer.DecodedFrame {
	t.Helper()
	img, err := imagebuf.New(2, 2, imagebuf.Mono8)
	if err != nil {
		t.Fatalf("new image: %v", err)
	}
	_, _ = img.CopyFrom([]byte{0, 64, 128, 255})
	return &consumer.DecodedFrame{Layout: consumer.LayoutMonoLow, Planes: []*imagebuf.Image{img}, Drained: 2}
}

func TestHealthAndReady(t *testing.T) {
	testlog.Start(t)
	state := NewState("consumer-a")
	s := New("consumer-a", "127.0.0.1:0", nil, state)

	if rr := get(t, s, "/health"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := get(t, s, "/ready"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before negotiation, got %d", rr.Code)
	}

	rec, _ := consumer.PropertyRecord{Layout: 0, Width: 2, Height: 2, Encoding: 0}.MarshalBinary()
	q, _ := shm.NewQueue(shm.Options{Cameras: shm.CameraForwardLeft})
	_ = q.PublishInfo(rec)
	session, err := consumer.Negotiate(q, true)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	state.SetChannel(q.ID(), session)
	if rr := get(t, s, "/ready"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after negotiation, got %d", rr.Code)
	}
}

func TestStatusReportsCounters(t *testing.T) {
	testlog.Start(t)
	state := NewState("consumer-a")
	s := New("consumer-a", "127.0.0.1:0", nil, state)

	idx := int32(1)
	state.RecordNotification(consumer.FrameNotification{CameraMask: shm.CameraForwardLeft, CaptureTimestamp: 10, ValidUntil: 20, CameraIndex: &idx})
	state.RecordIgnored()
	state.RecordFrame(monoFrame(t), time.Now())
	state.RecordFailure(errors.New("corrupt"))

	rr := get(t, s, "/status")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := Counters{Notifications: 1, Ignored: 1, Frames: 1, Drained: 2, Failures: 1}
	if snap.Counters != want {
		t.Fatalf("expected counters %+v, got %+v", want, snap.Counters)
	}
	if snap.LastNotification == nil || snap.LastNotification.CaptureTimestamp != 10 || snap.LastError != "corrupt" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestLatestFrameRendersPlane(t *testing.T) {
	testlog.Start(t)
	state := NewState("consumer-a")
	s := New("consumer-a", "127.0.0.1:0", []string{"http://example.test"}, state)

	if rr := get(t, s, "/frame/latest"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before any frame, got %d", rr.Code)
	}
	state.RecordFrame(monoFrame(t), time.Now())

	rr := get(t, s, "/frame/latest?plane=0")
	if rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("expected png, got %d %q", rr.Code, rr.Header().Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 2 || b.Dy() != 2 {
		t.Fatalf("unexpected bounds %v", b)
	}

	if rr := get(t, s, "/frame/latest?plane=1"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing plane, got %d", rr.Code)
	}
	if rr := get(t, s, "/frame/latest?format=jpeg"); rr.Code != http.StatusOK || rr.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("expected jpeg, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	testlog.Start(t)
	s := New("consumer-a", "127.0.0.1:0", nil, NewState("consumer-a"))
	_ = get(t, s, "/health")
	rr := get(t, s, "/metrics")
	if rr.Code != http.StatusOK || !bytes.Contains(rr.Body.Bytes(), []byte("shmframe_http_requests_total")) {
		t.Fatalf("expected shmframe metrics, got %d", rr.Code)
	}
}
