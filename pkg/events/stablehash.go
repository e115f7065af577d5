package events

import "encoding/binary"

// Encoder appends little-endian, length-prefixed fields to a byte buffer in
// struct declaration order, the canonical serialization spec §6 requires
// EventId to be computed over. It deliberately avoids reflection so that
// each payload's encoding is an explicit, auditable sequence of field
// writes rather than a generic marshaller (teacher precedent:
// chain/beacon.go's Message, which hand-builds its hash input).
type Encoder struct {
	buf []byte
}

// NewEncoder wraps an existing buffer (may be nil) for appending.
func NewEncoder(buf []byte) *Encoder { return &Encoder{buf: buf} }

func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) U8(v uint8) *Encoder {
	e.buf = append(e.buf, v)
	return e
}

func (e *Encoder) U32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) U64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// BytesField writes a length-prefixed (uint32 LE) byte slice.
func (e *Encoder) BytesField(v []byte) *Encoder {
	e.U32(uint32(len(v)))
	e.buf = append(e.buf, v...)
	return e
}

// Str writes a length-prefixed UTF-8 string.
func (e *Encoder) Str(v string) *Encoder {
	return e.BytesField([]byte(v))
}

// StrSlice writes a length-prefixed sequence of length-prefixed strings.
func (e *Encoder) StrSlice(vs []string) *Encoder {
	e.U32(uint32(len(vs)))
	for _, v := range vs {
		e.Str(v)
	}
	return e
}

// BytesSlice writes a length-prefixed sequence of length-prefixed byte slices.
func (e *Encoder) BytesSlice(vs [][]byte) *Encoder {
	e.U32(uint32(len(vs)))
	for _, v := range vs {
		e.BytesField(v)
	}
	return e
}

// E3idField writes an E3id as (chain_id u64, id string).
func (e *Encoder) E3idField(id E3id) *Encoder {
	return e.U64(id.ChainID).Str(id.ID)
}
