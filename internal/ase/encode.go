package ase

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Encoder builds master server replies. It is the inverse of the decoder and
// serves fixtures and the synthetic reply generator.
type Encoder struct {
	buf bytes.Buffer
}

// EncodeLegacy returns a legacy reply listing the address and port of servers.
func EncodeLegacy(servers []Server) ([]byte, error) {
	if len(servers) == 0 || len(servers) > math.MaxUint16 {
		return nil, fmt.Errorf("legacy reply needs 1..%d servers, got %d", math.MaxUint16, len(servers))
	}

	var e Encoder
	e.writeUint16(uint16(len(servers)))
	for i := range servers {
		e.buf.Write(servers[i].IP[:])
		e.writeUint16(servers[i].Port)
	}

	return e.Bytes(), nil
}

// EncodeExtended returns an extended reply with the fields selected by flags.
func EncodeExtended(flags Flags, sequence uint32, servers []Server) ([]byte, error) {
	var e Encoder
	e.WriteHeader(flags, sequence, uint32(len(servers)))
	for i := range servers {
		if err := e.WriteRecord(flags, &servers[i], 0); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}

	return e.Bytes(), nil
}

// WriteHeader writes the extended reply header.
func (e *Encoder) WriteHeader(flags Flags, sequence, count uint32) {
	e.writeUint16(0)
	e.writeUint16(tagExtended)
	e.writeUint32(uint32(flags))
	e.writeUint32(sequence)
	e.writeUint32(count)
}

// WriteRecord writes one length-framed record. Padding bytes are appended
// after the known fields and counted in the record length, the way a newer
// producer frames fields this package does not know.
func (e *Encoder) WriteRecord(flags Flags, s *Server, padding int) error {
	start := e.buf.Len()
	e.writeUint16(0) // patched below
	e.buf.Write(s.IP[:])
	e.writeUint16(s.Port)

	for _, f := range recordFields {
		if !flags.Has(f.flag) {
			continue
		}
		if err := f.encode(e, s); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}
	e.buf.Write(make([]byte, padding))

	length := e.buf.Len() - start
	if length > math.MaxUint16 {
		return fmt.Errorf("record too large: %d bytes", length)
	}
	binary.BigEndian.PutUint16(e.buf.Bytes()[start:], uint16(length))

	return nil
}

// WriteRaw appends bytes verbatim.
func (e *Encoder) WriteRaw(p []byte) {
	e.buf.Write(p)
}

// Bytes returns a copy of the encoded reply.
func (e *Encoder) Bytes() []byte {
	return bytes.Clone(e.buf.Bytes())
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return e.buf.Len() }

func (e *Encoder) writeUint8(v uint8) {
	e.buf.WriteByte(v)
}

func (e *Encoder) writeBool(v bool) {
	if v {
		e.writeUint8(1)
		return
	}
	e.writeUint8(0)
}

func (e *Encoder) writeUint16(v uint16) {
	_ = binary.Write(&e.buf, binary.BigEndian, v)
}

func (e *Encoder) writeUint32(v uint32) {
	_ = binary.Write(&e.buf, binary.BigEndian, v)
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint8 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	e.writeUint8(uint8(len(s)))
	e.buf.WriteString(s)

	return nil
}

func (e *Encoder) writePlayers(names []string) error {
	if len(names) > math.MaxUint16 {
		return fmt.Errorf("too many players: %d", len(names))
	}
	e.writeUint16(uint16(len(names)))
	for _, name := range names {
		if err := e.writeString(name); err != nil {
			return err
		}
	}

	return nil
}
