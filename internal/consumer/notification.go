package consumer

import (
	"errors"
	"fmt"

	"github.com/danmuck/shmframe/internal/protocol"
	"github.com/danmuck/shmframe/internal/shm"
)

type Orientation struct {
	Roll, Pitch, Yaw float32
}

type Position struct {
	Lat, Lon, Alt float32
}

// FrameNotification is the metadata of one image-available message. Optional
// fields are nil when the message does not carry them.
type FrameNotification struct {
	CameraMask       shm.Camera
	CaptureTimestamp uint64
	ValidUntil       uint64

	CameraIndex *int32
	Sequence    *uint32
	Orientation *Orientation
	Position    *Position
	LocalHeight *float32
	Exposure    *uint32
	Gain        *float32
}

// FromCamera reports whether the frame was produced by any camera in mask.
func (n FrameNotification) FromCamera(mask shm.Camera) bool {
	return n.CameraMask.Overlaps(mask)
}

// Expired reports whether now, on the producer clock, is past ValidUntil.
func (n FrameNotification) Expired(now uint64) bool {
	return now > n.ValidUntil
}

// Notice is the outcome of TryDecode: NotRelevant or ImageFrame.
type Notice interface {
	notice()
}

// NotRelevant is any control message that does not announce a frame.
type NotRelevant struct {
	Type protocol.MessageType
}

// ImageFrame announces a frame and carries its metadata.
type ImageFrame struct {
	FrameNotification
}

func (NotRelevant) notice() {}
func (ImageFrame) notice()  {}

// TryDecode classifies msg by its type tag before looking at any field. Only
// image-available messages are decoded; their fields are copied unchanged.
func TryDecode(msg *protocol.Message) (Notice, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", ErrInvalidNotification)
	}
	if msg.Header.MessageType != protocol.MessageImageAvailable {
		return NotRelevant{Type: msg.Header.MessageType}, nil
	}

	sem, err := protocol.ParseSemantic(msg, protocol.ImageAvailableSchema)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNotification, err)
	}
	f := sem.Fields

	n := FrameNotification{
		CameraMask:       shm.Camera(f[protocol.FieldCameraMask].Uint64),
		CaptureTimestamp: f[protocol.FieldTimestamp].Uint64,
		ValidUntil:       f[protocol.FieldValidUntil].Uint64,
	}
	if v, ok := f[protocol.FieldCameraIndex]; ok {
		n.CameraIndex = &v.Int32
	}
	if v, ok := f[protocol.FieldSequence]; ok {
		n.Sequence = &v.Uint32
	}
	if v, ok := f[protocol.FieldLocalHeight]; ok {
		n.LocalHeight = &v.Float
	}
	if v, ok := f[protocol.FieldExposure]; ok {
		n.Exposure = &v.Uint32
	}
	if v, ok := f[protocol.FieldGain]; ok {
		n.Gain = &v.Float
	}

	rpy, err := group(f, "orientation", protocol.FieldRoll, protocol.FieldPitch, protocol.FieldYaw)
	if err != nil {
		return nil, err
	}
	if rpy != nil {
		n.Orientation = &Orientation{Roll: rpy[0], Pitch: rpy[1], Yaw: rpy[2]}
	}
	lla, err := group(f, "position", protocol.FieldLatitude, protocol.FieldLongitude, protocol.FieldAltitude)
	if err != nil {
		return nil, err
	}
	if lla != nil {
		n.Position = &Position{Lat: lla[0], Lon: lla[1], Alt: lla[2]}
	}

	return ImageFrame{FrameNotification: n}, nil
}

// group returns nil when none of ids is present and an error when only some are.
func group(f map[uint16]protocol.Value, name string, ids ...uint16) ([]float32, error) {
	out := make([]float32, 0, len(ids))
	for _, id := range ids {
		if v, ok := f[id]; ok {
			out = append(out, v.Float)
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case len(ids):
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s has %d of %d fields", ErrPartialGroup, name, len(out), len(ids))
}

// Message encodes n as an image-available control message.
func (n FrameNotification) Message(id uint64) *protocol.Message {
	fields := []protocol.Field{
		protocol.NewFieldUint64(protocol.FieldCameraMask, uint64(n.CameraMask)),
		protocol.NewFieldUint64(protocol.FieldTimestamp, n.CaptureTimestamp),
		protocol.NewFieldUint64(protocol.FieldValidUntil, n.ValidUntil),
	}
	if n.CameraIndex != nil {
		fields = append(fields, protocol.NewFieldInt32(protocol.FieldCameraIndex, *n.CameraIndex))
	}
	if n.Sequence != nil {
		fields = append(fields, protocol.NewFieldUint32(protocol.FieldSequence, *n.Sequence))
	}
	if o := n.Orientation; o != nil {
		fields = append(fields,
			protocol.NewFieldFloat32(protocol.FieldRoll, o.Roll),
			protocol.NewFieldFloat32(protocol.FieldPitch, o.Pitch),
			protocol.NewFieldFloat32(protocol.FieldYaw, o.Yaw))
	}
	if p := n.Position; p != nil {
		fields = append(fields,
			protocol.NewFieldFloat32(protocol.FieldLatitude, p.Lat),
			protocol.NewFieldFloat32(protocol.FieldLongitude, p.Lon),
			protocol.NewFieldFloat32(protocol.FieldAltitude, p.Alt))
	}
	if n.LocalHeight != nil {
		fields = append(fields, protocol.NewFieldFloat32(protocol.FieldLocalHeight, *n.LocalHeight))
	}
	if n.Exposure != nil {
		fields = append(fields, protocol.NewFieldUint32(protocol.FieldExposure, *n.Exposure))
	}
	if n.Gain != nil {
		fields = append(fields, protocol.NewFieldFloat32(protocol.FieldGain, *n.Gain))
	}
	return &protocol.Message{
		Header: protocol.Header{
			MessageID:   id,
			MessageType: protocol.MessageImageAvailable,
		},
		Fields: fields,
	}
}

// IsMalformed reports whether err came from an image-available message that
// could not be decoded, as opposed to a transport error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrInvalidNotification)
}
