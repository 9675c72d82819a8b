//go:build !linux

package shm

// Segment is unavailable off Linux; use Queue for in-process transport.
type Segment struct{}

func Open(Options) (*Segment, error)   { return nil, ErrUnsupported }
func Create(Options) (*Segment, error) { return nil, ErrUnsupported }

func (*Segment) ID() string                      { return "" }
func (*Segment) Path() string                    { return "" }
func (*Segment) Options() Options                { return Options{} }
func (*Segment) WriteInfo([]byte) error          { return ErrUnsupported }
func (*Segment) WriteData([]byte) error          { return ErrUnsupported }
func (*Segment) BytesWaiting() uint32            { return 0 }
func (*Segment) ReadInfoPacket() ([]byte, error) { return nil, ErrUnsupported }
func (*Segment) ReadDataPacket() ([]byte, error) { return nil, ErrUnsupported }
func (*Segment) Close() error                    { return nil }
