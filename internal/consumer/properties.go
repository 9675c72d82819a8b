package consumer

import (
	"encoding/binary"
	"fmt"
)

// PropertyRecordSize is the length of a version 1 property record.
const PropertyRecordSize = 16

// PropertyRecord is the producer's geometry announcement, read once per
// channel. Fields are host-order (little-endian) u32 values:
//
//	0  layout code
//	4  width
//	8  height
//	12 pixel encoding code
//
// Later producers may append fields; a version 1 reader ignores them.
type PropertyRecord struct {
	Layout   uint32
	Width    uint32
	Height   uint32
	Encoding uint32
}

// ReadPropertyRecord decodes the leading PropertyRecordSize bytes of b.
func ReadPropertyRecord(b []byte) (PropertyRecord, error) {
	if len(b) < PropertyRecordSize {
		return PropertyRecord{}, fmt.Errorf("%w: got %d bytes want %d", ErrShortRead, len(b), PropertyRecordSize)
	}
	le := binary.LittleEndian
	return PropertyRecord{
		Layout:   le.Uint32(b[0:4]),
		Width:    le.Uint32(b[4:8]),
		Height:   le.Uint32(b[8:12]),
		Encoding: le.Uint32(b[12:16]),
	}, nil
}

func (r PropertyRecord) MarshalBinary() ([]byte, error) {
	b := make([]byte, PropertyRecordSize)
	le := binary.LittleEndian
	le.PutUint32(b[0:4], r.Layout)
	le.PutUint32(b[4:8], r.Width)
	le.PutUint32(b[8:12], r.Height)
	le.PutUint32(b[12:16], r.Encoding)
	return b, nil
}
