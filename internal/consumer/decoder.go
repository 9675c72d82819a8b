package consumer

import (
	"fmt"

	"github.com/danmuck/shmframe/internal/imagebuf"
	logs "github.com/danmuck/shmframe/internal/logging"
)

// PayloadSource is the part of a channel frame decoding reads from.
type PayloadSource interface {
	BytesWaiting() uint32
	ReadDataPacket() ([]byte, error)
}

// DecodedFrame holds the planes of one payload unit. Planes never alias
// transport memory.
type DecodedFrame struct {
	Layout CameraLayout
	Planes []*imagebuf.Image
	// Drained counts decoded frames discarded to reach this one.
	Drained int
}

// Plane returns plane i or nil when the layout has fewer planes.
func (f *DecodedFrame) Plane(i int) *imagebuf.Image {
	if f == nil || i < 0 || i >= len(f.Planes) {
		return nil
	}
	return f.Planes[i]
}

// DecodeNext reads and decodes the next payload unit. With drain-to-latest
// it keeps reading the backlog present at call time and returns the most
// recent frame; units published during the drain are left for the next call.
// A read or decode failure after at least one good frame ends the drain and
// the good frame is returned.
func DecodeNext(src PayloadSource, s *Session) (*DecodedFrame, error) {
	if s == nil || s.layout == LayoutUnrecognized {
		return nil, ErrNotNegotiated
	}
	budget := src.BytesWaiting()
	if budget == 0 {
		return nil, ErrNoDataPending
	}

	var last *DecodedFrame
	drained := 0
	for reads := uint32(1); ; reads++ {
		payload, err := src.ReadDataPacket()
		if err == nil && len(payload) == 0 {
			err = fmt.Errorf("%w: empty payload", ErrTransportReadFailed)
		} else if err != nil {
			err = fmt.Errorf("%w: %w", ErrTransportReadFailed, err)
		}

		var frame *DecodedFrame
		if err == nil {
			frame, err = decodePayload(payload, s)
		}
		if err != nil {
			if last == nil {
				return nil, err
			}
			logs.Warnf("consumer.DecodeNext drain stopped err=%v kept_drained=%d", err, drained)
			break
		}

		if last != nil {
			drained++
		}
		last = frame
		if !s.drainToLatest || reads >= budget || src.BytesWaiting() == 0 {
			break
		}
	}
	last.Drained = drained
	return last, nil
}

// decodePayload splits payload into planes per the session layout and copies
// each plane out. Plane i starts where plane i-1 ends; trailing bytes are
// ignored.
func decodePayload(payload []byte, s *Session) (*DecodedFrame, error) {
	need := s.PayloadSize()
	if len(payload) < need {
		return nil, fmt.Errorf("%w: %s payload has %d bytes want %d", ErrCorruptPayload, s.layout, len(payload), need)
	}

	encs := s.PlaneEncodings()
	out := &DecodedFrame{Layout: s.layout, Planes: make([]*imagebuf.Image, 0, len(encs))}
	offset := 0
	for _, enc := range encs {
		img, err := imagebuf.New(int(s.width), int(s.height), enc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptPayload, err)
		}
		n, err := img.CopyFrom(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptPayload, err)
		}
		offset += n
		out.Planes = append(out.Planes, img)
	}
	return out, nil
}
