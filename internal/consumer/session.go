package consumer

import (
	"fmt"

	"github.com/danmuck/shmframe/internal/imagebuf"
	logs "github.com/danmuck/shmframe/internal/logging"
)

// MaxDimension bounds negotiated width and height.
const MaxDimension = 1 << 15

// InfoSource is the part of a channel negotiation reads from.
type InfoSource interface {
	ReadInfoPacket() ([]byte, error)
}

// Session is the negotiated geometry of one channel. It never changes after
// negotiation and is safe to read from several goroutines.
type Session struct {
	layout        CameraLayout
	width         uint32
	height        uint32
	baseEncoding  imagebuf.Encoding
	drainToLatest bool
}

// Negotiate reads the property record from src exactly once and derives the
// session. Callers negotiate once per channel; see Client.
func Negotiate(src InfoSource, drainToLatest bool) (*Session, error) {
	b, err := src.ReadInfoPacket()
	if err != nil {
		return nil, fmt.Errorf("%w: read info packet: %w", ErrShortRead, err)
	}
	rec, err := ReadPropertyRecord(b)
	if err != nil {
		return nil, err
	}
	s, err := NewSession(rec, drainToLatest)
	if err != nil {
		return nil, err
	}
	logs.Infof("consumer.Negotiate ok layout=%s width=%d height=%d encoding=%s drain=%v",
		s.layout, s.width, s.height, s.baseEncoding, s.drainToLatest)
	return s, nil
}

// NewSession validates rec. The encoding code is only checked for layouts
// that decode with it.
func NewSession(rec PropertyRecord, drainToLatest bool) (*Session, error) {
	layout := LayoutFromCode(rec.Layout)
	if layout == LayoutUnrecognized {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownLayout, rec.Layout)
	}
	if rec.Width == 0 || rec.Height == 0 || rec.Width > MaxDimension || rec.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidGeometry, rec.Width, rec.Height)
	}
	enc := imagebuf.Encoding(rec.Encoding)
	if layout.usesBaseEncoding() && !enc.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownEncoding, rec.Encoding)
	}
	return &Session{
		layout:        layout,
		width:         rec.Width,
		height:        rec.Height,
		baseEncoding:  enc,
		drainToLatest: drainToLatest,
	}, nil
}

func (s *Session) Layout() CameraLayout {
	if s == nil {
		return LayoutUnrecognized
	}
	return s.layout
}

func (s *Session) Width() uint32                   { return s.width }
func (s *Session) Height() uint32                  { return s.height }
func (s *Session) BaseEncoding() imagebuf.Encoding { return s.baseEncoding }
func (s *Session) DrainToLatest() bool             { return s.drainToLatest }

func (s *Session) PlaneEncodings() []imagebuf.Encoding {
	return s.layout.PlaneEncodings(s.baseEncoding)
}

// PayloadSize is the minimum payload length one frame needs.
func (s *Session) PayloadSize() int {
	n := 0
	for _, enc := range s.PlaneEncodings() {
		n += imagebuf.Size(int(s.width), int(s.height), enc)
	}
	return n
}

// Record returns the property record this session was negotiated from.
func (s *Session) Record() PropertyRecord {
	code, _ := s.layout.Code()
	return PropertyRecord{
		Layout:   code,
		Width:    s.width,
		Height:   s.height,
		Encoding: uint32(s.baseEncoding),
	}
}
