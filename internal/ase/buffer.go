package ase

import (
	"encoding/binary"
)

// DefaultCapacity is the largest reply accepted by default.
const DefaultCapacity = 600000

// Buffer is a bounded in-memory reply with a read cursor.
//
// It is filled once through Write and then parsed through the Read*, Seek and
// Tell methods. Multi-byte integers are stored most significant byte first,
// so every fixed-width read reverses the stored order into the native value.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	data     []byte
	pos      int
	capacity int
}

// NewBuffer returns an empty buffer that accepts at most capacity bytes.
// A non-positive capacity selects DefaultCapacity.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Buffer{capacity: capacity}
}

// NewBufferFrom returns a buffer filled with a copy of data.
func NewBufferFrom(data []byte, capacity int) (*Buffer, error) {
	b := NewBuffer(capacity)
	if _, err := b.Write(data); err != nil {
		return nil, err
	}

	return b, nil
}

// Write appends p to the filled region. An append that would exceed the
// capacity is rejected whole with a *CapacityError and nothing is written.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.capacity-len(b.data) {
		return 0, &CapacityError{Capacity: b.capacity, Filled: len(b.data), Requested: len(p)}
	}
	b.data = append(b.data, p...)

	return len(p), nil
}

// Len returns the filled length.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the capacity limit.
func (b *Buffer) Cap() int { return b.capacity }

// Bytes returns the filled region. The slice aliases the buffer storage.
func (b *Buffer) Bytes() []byte { return b.data }

// Tell returns the read cursor.
func (b *Buffer) Tell() int { return b.pos }

// Seek moves the read cursor to pos. Positions outside [0, Len()] are ignored
// and reported as false.
func (b *Buffer) Seek(pos int) bool {
	if pos < 0 || pos > len(b.data) {
		return false
	}
	b.pos = pos

	return true
}

// CanAdvance reports whether n more bytes can be read from the cursor.
func (b *Buffer) CanAdvance(n int) bool {
	return n >= 0 && b.pos+n <= len(b.data)
}

// Remaining returns the number of unread bytes.
func (b *Buffer) Remaining() int { return len(b.data) - b.pos }

// next returns the next n bytes and advances the cursor, or fails without
// moving it.
func (b *Buffer) next(n int) ([]byte, error) {
	if !b.CanAdvance(n) {
		return nil, &ShortReadError{Offset: b.pos, Want: n, Have: b.Remaining()}
	}
	p := b.data[b.pos : b.pos+n]
	b.pos += n

	return p, nil
}

// ReadUint8 reads one byte.
func (b *Buffer) ReadUint8() (uint8, error) {
	p, err := b.next(1)
	if err != nil {
		return 0, err
	}

	return p[0], nil
}

// ReadUint16 reads a 16-bit value stored most significant byte first.
func (b *Buffer) ReadUint16() (uint16, error) {
	p, err := b.next(2)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint16(p), nil
}

// ReadUint32 reads a 32-bit value stored most significant byte first.
func (b *Buffer) ReadUint32() (uint32, error) {
	p, err := b.next(4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(p), nil
}

// ReadString reads a string prefixed by a one byte length. The text is
// returned as stored; escaping is left to the serializer.
//
// If the length byte is present but the text is cut short, the cursor still
// moves past the declared length, clamped to the end of the filled region.
func (b *Buffer) ReadString() (string, error) {
	n, err := b.ReadUint8()
	if err != nil {
		return "", err
	}

	p, err := b.next(int(n))
	if err != nil {
		b.pos = len(b.data)
		return "", err
	}

	return string(p), nil
}

// Skip advances the cursor by n bytes. Like Seek, a target outside the filled
// region is ignored and reported as false.
func (b *Buffer) Skip(n int) bool {
	return b.Seek(b.pos + n)
}
