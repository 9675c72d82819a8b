package server

import (
	"sync"
	"time"

	"github.com/danmuck/shmframe/internal/consumer"
)

// SessionInfo is the JSON view of a negotiated session.
type SessionInfo struct {
	Layout        string `json:"layout"`
	Width         uint32 `json:"width"`
	Height        uint32 `json:"height"`
	Encoding      string `json:"encoding"`
	DrainToLatest bool   `json:"drain_to_latest"`
}

// NotificationInfo is the JSON view of the last accepted notification.
type NotificationInfo struct {
	CameraMask       string  `json:"camera_mask"`
	CaptureTimestamp uint64  `json:"capture_timestamp"`
	ValidUntil       uint64  `json:"valid_until"`
	CameraIndex      *int32  `json:"camera_index,omitempty"`
	Sequence         *uint32 `json:"sequence,omitempty"`
}

// Counters are consumer totals since start.
type Counters struct {
	Notifications uint64 `json:"notifications"`
	Ignored       uint64 `json:"ignored"`
	Expired       uint64 `json:"expired"`
	Frames        uint64 `json:"frames"`
	Drained       uint64 `json:"drained"`
	Failures      uint64 `json:"failures"`
}

// Snapshot is the /status payload.
type Snapshot struct {
	Name             string            `json:"name"`
	ChannelID        string            `json:"channel_id,omitempty"`
	Session          *SessionInfo      `json:"session,omitempty"`
	LastNotification *NotificationInfo `json:"last_notification,omitempty"`
	LastFrameAt      *time.Time        `json:"last_frame_at,omitempty"`
	LastError        string            `json:"last_error,omitempty"`
	Counters         Counters          `json:"counters"`
}

// State is written by the consuming goroutine and read by HTTP handlers.
type State struct {
	mu          sync.RWMutex
	name        string
	channelID   string
	session     *SessionInfo
	lastNotice  *NotificationInfo
	lastFrame   *consumer.DecodedFrame
	lastFrameAt time.Time
	lastErr     string
	counters    Counters
}

func NewState(name string) *State {
	return &State{name: name}
}

func (s *State) SetChannel(id string, session *consumer.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = id
	if session == nil {
		s.session = nil
		return
	}
	s.session = &SessionInfo{
		Layout:        session.Layout().String(),
		Width:         session.Width(),
		Height:        session.Height(),
		Encoding:      session.BaseEncoding().String(),
		DrainToLatest: session.DrainToLatest(),
	}
}

func (s *State) RecordNotification(n consumer.FrameNotification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Notifications++
	s.lastNotice = &NotificationInfo{
		CameraMask:       n.CameraMask.String(),
		CaptureTimestamp: n.CaptureTimestamp,
		ValidUntil:       n.ValidUntil,
		CameraIndex:      n.CameraIndex,
		Sequence:         n.Sequence,
	}
}

func (s *State) RecordIgnored() {
	s.mu.Lock()
	s.counters.Ignored++
	s.mu.Unlock()
}

func (s *State) RecordExpired() {
	s.mu.Lock()
	s.counters.Expired++
	s.mu.Unlock()
}

// RecordFrame keeps f as the latest frame. Decoded frames are never mutated
// after decode, so readers share the pointer.
func (s *State) RecordFrame(f *consumer.DecodedFrame, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Frames++
	s.counters.Drained += uint64(f.Drained)
	s.lastFrame = f
	s.lastFrameAt = at
}

func (s *State) RecordFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Failures++
	s.lastErr = err.Error()
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Snapshot{
		Name:      s.name,
		ChannelID: s.channelID,
		LastError: s.lastErr,
		Counters:  s.counters,
	}
	if s.session != nil {
		info := *s.session
		out.Session = &info
	}
	if s.lastNotice != nil {
		n := *s.lastNotice
		out.LastNotification = &n
	}
	if s.lastFrame != nil {
		at := s.lastFrameAt
		out.LastFrameAt = &at
	}
	return out
}

func (s *State) LatestFrame() *consumer.DecodedFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFrame
}

func (s *State) Negotiated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}
