//go:build linux

package shm

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/danmuck/shmframe/internal/protocol/frame"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// Segment layout (host byte order, little-endian on every supported target):
//
//	0   magic        u32
//	4   version      u16
//	8   slot count   u32 (queue depth + 1)
//	12  slot size    u32
//	16  info length  u32 (published last)
//	24  write seq    u64 (producer owned)
//	32  read seq     u64 (consumer owned)
//	40  camera mask  u64
//	64  info area    infoAreaSize bytes
//	..  slots        slot count * slot size
const (
	segmentMagic   uint32 = 0x53484D52 // "SHMR"
	segmentVersion uint16 = 1

	offMagic     = 0
	offVersion   = 4
	offSlotCount = 8
	offSlotSize  = 12
	offInfoLen   = 16
	offWriteSeq  = 24
	offReadSeq   = 32
	offCameras   = 40

	segmentHeaderSize = 64
	infoAreaSize      = 256
	slotsOffset       = segmentHeaderSize + infoAreaSize
)

// Segment is a file-backed ring mapped into the address space of both the
// producer and the consumer. Each slot holds one frame-encoded payload unit.
type Segment struct {
	id    string
	path  string
	opts  Options
	owner bool

	mu        sync.Mutex
	mem       []byte
	slotCount uint64
	slotSize  int
	limits    frame.Limits
	scratch   []byte
	closed    bool
}

// Open attaches a handle to the segment for opts.Cameras. Client handles
// attach to an existing segment; server handles create it.
func Open(opts Options) (*Segment, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Role == RoleServer {
		return Create(opts)
	}

	path := SegmentPath(opts.Dir, opts.Cameras)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("shm: stat %s: %w", path, err)
	}
	if st.Size() < slotsOffset {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrBadSegment, path, st.Size())
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	s := &Segment{id: uuid.NewString(), path: path, opts: opts, mem: mem}
	if err := s.attach(int64(len(mem))); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	return s, nil
}

// Create sizes and maps a fresh segment for the producer side, replacing any
// stale segment for the same camera mask.
func Create(opts Options) (*Segment, error) {
	opts = opts.WithDefaults()
	opts.Role = RoleServer
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("shm: create dir %s: %w", opts.Dir, err)
	}

	path := SegmentPath(opts.Dir, opts.Cameras)
	slotSize := frame.Size(opts.MaxPayloadSize)
	slotSize = (slotSize + 7) &^ 7
	// One spare slot absorbs the write in progress, so QueueDepth units stay
	// readable.
	slots := opts.QueueDepth + 1
	size := slotsOffset + slots*slotSize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: create %s: %w", path, err)
	}
	defer f.Close()
	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("shm: size %s: %w", path, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}

	le := binary.LittleEndian
	le.PutUint32(mem[offMagic:], segmentMagic)
	le.PutUint16(mem[offVersion:], segmentVersion)
	le.PutUint32(mem[offSlotCount:], uint32(slots))
	le.PutUint32(mem[offSlotSize:], uint32(slotSize))
	le.PutUint64(mem[offCameras:], uint64(opts.Cameras))

	return &Segment{
		id:        uuid.NewString(),
		path:      path,
		opts:      opts,
		owner:     true,
		mem:       mem,
		slotCount: uint64(slots),
		slotSize:  slotSize,
		limits:    frame.Limits{MaxPayloadBytes: uint64(opts.MaxPayloadSize)},
		scratch:   make([]byte, slotSize),
	}, nil
}

func (s *Segment) attach(size int64) error {
	le := binary.LittleEndian
	if m := le.Uint32(s.mem[offMagic:]); m != segmentMagic {
		return fmt.Errorf("%w: magic 0x%08x", ErrBadSegment, m)
	}
	if v := le.Uint16(s.mem[offVersion:]); v != segmentVersion {
		return fmt.Errorf("%w: version %d", ErrBadSegment, v)
	}
	if c := Camera(le.Uint64(s.mem[offCameras:])); c != s.opts.Cameras {
		return fmt.Errorf("%w: cameras %s want %s", ErrBadSegment, c, s.opts.Cameras)
	}
	count := uint64(le.Uint32(s.mem[offSlotCount:]))
	slotSize := int(le.Uint32(s.mem[offSlotSize:]))
	if count < 2 || slotSize <= int(frame.FixedHeaderLen) {
		return fmt.Errorf("%w: %d slots of %d bytes", ErrBadSegment, count, slotSize)
	}
	if int64(slotsOffset)+int64(count)*int64(slotSize) > size {
		return fmt.Errorf("%w: %d slots of %d bytes exceed %d", ErrBadSegment, count, slotSize, size)
	}
	s.slotCount = count
	s.slotSize = slotSize
	maxPayload := slotSize - int(frame.FixedHeaderLen)
	if s.opts.MaxPayloadSize < maxPayload {
		maxPayload = s.opts.MaxPayloadSize
	}
	s.limits = frame.Limits{MaxPayloadBytes: uint64(maxPayload)}
	s.scratch = make([]byte, slotSize)
	return nil
}

func (s *Segment) ID() string {
	return s.id
}

func (s *Segment) Path() string {
	return s.path
}

func (s *Segment) Options() Options {
	return s.opts
}

func (s *Segment) u64(off int) *uint64 {
	return (*uint64)(unsafe.Pointer(&s.mem[off]))
}

func (s *Segment) u32(off int) *uint32 {
	return (*uint32)(unsafe.Pointer(&s.mem[off]))
}

func (s *Segment) slot(seq uint64) []byte {
	start := slotsOffset + int(seq%s.slotCount)*s.slotSize
	return s.mem[start : start+s.slotSize]
}

// WriteInfo publishes the property record. Server handles only.
func (s *Segment) WriteInfo(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	area := s.mem[segmentHeaderSize:slotsOffset]
	atomic.StoreUint32(s.u32(offInfoLen), 0)
	n, err := frame.Put(area, frame.Frame{Header: frame.Header{Kind: frame.KindInfo}, Payload: b}, frame.Limits{MaxPayloadBytes: infoAreaSize})
	if err != nil {
		return fmt.Errorf("shm: write info: %w", err)
	}
	atomic.StoreUint32(s.u32(offInfoLen), uint32(n))
	return nil
}

// WriteData appends one payload unit, overwriting the oldest slot when the
// ring is full. Server handles only.
func (s *Segment) WriteData(b []byte) error {
	if len(b) > s.opts.MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooBig, len(b), s.opts.MaxPayloadSize)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	seq := atomic.LoadUint64(s.u64(offWriteSeq))
	f := frame.Frame{Header: frame.Header{Sequence: seq, Kind: frame.KindData}, Payload: b}
	if _, err := frame.Put(s.slot(seq), f, s.limits); err != nil {
		return fmt.Errorf("shm: write data: %w", err)
	}
	atomic.StoreUint64(s.u64(offWriteSeq), seq+1)
	return nil
}

func (s *Segment) BytesWaiting() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0
	}
	w := atomic.LoadUint64(s.u64(offWriteSeq))
	r := s.catchUp(w)
	n := w - r
	if n > uint64(^uint32(0)) {
		n = uint64(^uint32(0))
	}
	return uint32(n)
}

// catchUp advances the read cursor past slots the producer reused or may be
// rewriting. The write at seq w lands in slot w%slotCount before writeSeq
// moves, so seq w-slotCount is never readable.
func (s *Segment) catchUp(w uint64) uint64 {
	r := atomic.LoadUint64(s.u64(offReadSeq))
	if r > w {
		// Producer restarted the ring.
		r = w
		atomic.StoreUint64(s.u64(offReadSeq), r)
	}
	if w-r >= s.slotCount {
		r = w - s.slotCount + 1
		atomic.StoreUint64(s.u64(offReadSeq), r)
	}
	return r
}

func (s *Segment) ReadInfoPacket() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	n := atomic.LoadUint32(s.u32(offInfoLen))
	if n == 0 {
		return nil, ErrNoInfo
	}
	f, err := frame.Parse(s.mem[segmentHeaderSize:segmentHeaderSize+int(n)], frame.Limits{MaxPayloadBytes: infoAreaSize})
	if err != nil {
		return nil, fmt.Errorf("shm: read info: %w", err)
	}
	return append([]byte(nil), f.Payload...), nil
}

// ReadDataPacket copies the oldest unread slot out of shared memory before
// the producer can reuse it, then validates the copy.
func (s *Segment) ReadDataPacket() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	w := atomic.LoadUint64(s.u64(offWriteSeq))
	r := s.catchUp(w)
	if r == w {
		return nil, ErrEmpty
	}
	copy(s.scratch, s.slot(r))

	// Seq w2 may be mid-write; if it maps to our slot the copy can be torn.
	if w2 := atomic.LoadUint64(s.u64(offWriteSeq)); w2-r >= s.slotCount {
		atomic.StoreUint64(s.u64(offReadSeq), w2-s.slotCount+1)
		return nil, fmt.Errorf("%w: seq %d", ErrOverrun, r)
	}
	atomic.StoreUint64(s.u64(offReadSeq), r+1)

	f, err := frame.Parse(s.scratch, s.limits)
	if err != nil {
		return nil, fmt.Errorf("shm: read data seq %d: %w", r, err)
	}
	if f.Header.Kind != frame.KindData || f.Header.Sequence != r {
		return nil, fmt.Errorf("%w: slot holds seq %d want %d", ErrOverrun, f.Header.Sequence, r)
	}
	return f.Payload, nil
}

// Close unmaps the segment. The producer also removes the backing file.
func (s *Segment) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := unix.Munmap(s.mem)
	s.mem = nil
	if s.owner {
		if rmErr := os.Remove(s.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = rmErr
		}
	}
	return err
}
