// Package shm owns channel handles onto the shared frame transport.
//
// Ownership boundary:
// - camera mask and client role of a handle
// - payload backlog polling
// - info (property record) and data packet reads
//
// Packet slices returned by ReadDataPacket belong to the handle and are only
// valid until the next read; callers copy what they keep.
package shm

import (
	"errors"
	"fmt"
	"path/filepath"
)

var (
	ErrNoInfo         = errors.New("shm: no info packet published")
	ErrEmpty          = errors.New("shm: no data packet waiting")
	ErrOverrun        = errors.New("shm: producer overran reader")
	ErrPayloadTooBig  = errors.New("shm: payload exceeds max payload size")
	ErrClosed         = errors.New("shm: channel closed")
	ErrInvalidOptions = errors.New("shm: invalid options")
	ErrBadSegment     = errors.New("shm: segment header mismatch")
	ErrUnsupported    = errors.New("shm: shared memory segments unsupported on this platform")
)

// Channel is the consumer's view of one shared transport session.
type Channel interface {
	// BytesWaiting reports how many payload units are queued. Non-blocking.
	BytesWaiting() uint32
	// ReadInfoPacket returns the producer's property record.
	ReadInfoPacket() ([]byte, error)
	// ReadDataPacket returns the next payload unit. The slice is owned by the
	// channel and is overwritten by the next read.
	ReadDataPacket() ([]byte, error)
	Close() error
}

const (
	DefaultMaxPayloadSize = 1024 * 1024
	DefaultQueueDepth     = 10
	DefaultDir            = "/dev/shm"
)

// Options configures a channel handle.
type Options struct {
	Cameras        Camera
	Role           Role
	MaxPayloadSize int
	QueueDepth     int
	Dir            string
}

func DefaultOptions() Options {
	return Options{
		Role:           RoleClient,
		MaxPayloadSize: DefaultMaxPayloadSize,
		QueueDepth:     DefaultQueueDepth,
		Dir:            DefaultDir,
	}
}

// WithDefaults fills zero-valued sizes and directory.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.MaxPayloadSize <= 0 {
		o.MaxPayloadSize = d.MaxPayloadSize
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = d.QueueDepth
	}
	if o.Dir == "" {
		o.Dir = d.Dir
	}
	return o
}

func (o Options) Validate() error {
	if o.Cameras == CameraNone {
		return fmt.Errorf("%w: no cameras selected", ErrInvalidOptions)
	}
	if o.MaxPayloadSize <= 0 {
		return fmt.Errorf("%w: max payload size %d", ErrInvalidOptions, o.MaxPayloadSize)
	}
	if o.QueueDepth <= 0 {
		return fmt.Errorf("%w: queue depth %d", ErrInvalidOptions, o.QueueDepth)
	}
	return nil
}

// SegmentPath is where the segment for a camera mask lives inside dir.
func SegmentPath(dir string, cams Camera) string {
	return filepath.Join(dir, fmt.Sprintf("shmframe-%016x", uint64(cams)))
}
