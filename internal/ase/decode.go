// Package ase decodes master server list replies of the All-Seeing Eye
// (ASE) protocol.
//
// Two layouts exist. The legacy one is a 16-bit count followed by address and
// port pairs. The extended one starts with a zero count and the revision tag
// 2, then a flag mask, a sequence number and a 32-bit count; every record is
// framed by its own byte length and carries the optional fields selected by
// the flag mask, in a fixed order.
//
// Decoding is lenient by default: reads past the end of the reply leave the
// remaining attributes at their zero value and mark the result as truncated.
// Options.Strict turns the first such read into a *DecodeError.
package ase

import (
	"errors"

	"github.com/rs/zerolog/log"
)

const (
	// legacyRecordSize is the address plus the port.
	legacyRecordSize = 6

	// minRecordAdvance is checked before every record of either layout.
	minRecordAdvance = 6

	// minExtendedFrame covers the length, address and port of a record.
	minExtendedFrame = 8
)

// Options tune decoding.
type Options struct {
	// Capacity bounds the reply size accepted by Decode. Zero selects DefaultCapacity.
	Capacity int

	// Strict reports truncated replies as errors instead of partial results.
	Strict bool
}

// Decode copies data into a bounded Buffer and decodes it.
func Decode(data []byte, opts Options) (*Result, error) {
	b, err := NewBufferFrom(data, opts.Capacity)
	if err != nil {
		return nil, err
	}

	return DecodeBuffer(b, opts)
}

// DecodeBuffer decodes the filled region of b from its start.
func DecodeBuffer(b *Buffer, opts Options) (*Result, error) {
	b.Seek(0)
	d := &decoder{buf: b, res: &Result{}, strict: opts.Strict}

	rev, err := d.revision()
	if err != nil {
		return nil, err
	}
	d.res.Revision = rev

	if err := rev.decode(d); err != nil {
		return nil, err
	}

	log.Debug().
		Str("revision", rev.String()).
		Stringer("flags", d.res.Flags).
		Uint32("declared", d.res.Declared).
		Int("decoded", len(d.res.Servers)).
		Bool("truncated", d.res.Truncated).
		Int("size", b.Len()).
		Msg("Reply decoded")

	return d.res, nil
}

// decoder holds the state of one decode pass.
type decoder struct {
	buf    *Buffer
	res    *Result
	strict bool
}

// check applies the truncation policy to a read error. Short reads are
// tolerated in lenient mode; everything else becomes a *DecodeError.
func (d *decoder) check(err error, record int, field string, offset int) error {
	if err == nil {
		return nil
	}
	if !d.strict && errors.Is(err, ErrShortRead) {
		d.res.Truncated = true
		return nil
	}

	return &DecodeError{
		Revision: d.res.Revision,
		Record:   record,
		Field:    field,
		Offset:   offset,
		Err:      err,
	}
}

// readUint16 reads a header or mandatory field through check.
func (d *decoder) readUint16(record int, field string) (uint16, error) {
	offset := d.buf.Tell()
	v, err := d.buf.ReadUint16()

	return v, d.check(err, record, field, offset)
}

func (d *decoder) readUint32(record int, field string) (uint32, error) {
	offset := d.buf.Tell()
	v, err := d.buf.ReadUint32()

	return v, d.check(err, record, field, offset)
}

// revision reads the header prefix and selects the layout. A non-zero count
// is a legacy reply; a zero count is followed by the revision tag.
func (d *decoder) revision() (Revision, error) {
	count, err := d.readUint16(-1, "count")
	if err != nil {
		return RevisionUnknown, err
	}
	if count != 0 {
		d.res.Declared = uint32(count)
		return RevisionLegacy, nil
	}

	tag, err := d.readUint16(-1, "revision")
	if err != nil {
		return RevisionUnknown, err
	}

	rev := revisionFromTag(tag)
	if rev == RevisionUnknown {
		log.Debug().Uint16("tag", tag).Msg("Unknown reply revision, nothing to decode")
	}

	return rev, nil
}

// incomplete handles a reply that ran out of records before the declared count.
func (d *decoder) incomplete(want int) error {
	if uint64(len(d.res.Servers)) >= uint64(d.res.Declared) {
		return nil
	}

	offset := d.buf.Tell()
	err := &ShortReadError{Offset: offset, Want: want, Have: d.buf.Remaining()}

	return d.check(err, len(d.res.Servers), "record", offset)
}

// legacy decodes Declared address and port pairs.
func (d *decoder) legacy() error {
	d.res.Servers = make([]Server, 0, min(int(d.res.Declared), d.buf.Remaining()/legacyRecordSize))

	for remaining := d.res.Declared; remaining > 0 && d.buf.CanAdvance(minRecordAdvance); remaining-- {
		record := len(d.res.Servers)

		var s Server
		offset := d.buf.Tell()
		if err := d.check(s.readAddr(d.buf), record, "ip", offset); err != nil {
			return err
		}

		port, err := d.readUint16(record, "port")
		if err != nil {
			return err
		}
		s.Port = port

		d.res.Servers = append(d.res.Servers, s)
	}

	return d.incomplete(legacyRecordSize)
}

// extended decodes the flag mask header and the length-framed records.
func (d *decoder) extended() error {
	flags, err := d.readUint32(-1, "flags")
	if err != nil {
		return err
	}
	d.res.Flags = Flags(flags)

	if d.res.Sequence, err = d.readUint32(-1, "sequence"); err != nil {
		return err
	}
	if d.res.Declared, err = d.readUint32(-1, "count"); err != nil {
		return err
	}

	d.res.Servers = make([]Server, 0, min(uint64(d.res.Declared), uint64(d.buf.Remaining()/minExtendedFrame)))

	for remaining := d.res.Declared; remaining > 0 && d.buf.CanAdvance(minRecordAdvance); remaining-- {
		s, err := d.record(len(d.res.Servers))
		if err != nil {
			return err
		}
		d.res.Servers = append(d.res.Servers, s)
	}

	return d.incomplete(minExtendedFrame)
}

// record decodes one extended record and leaves the cursor at the start of
// the next one, as framed by the record length.
func (d *decoder) record(index int) (Server, error) {
	var s Server
	start := d.buf.Tell()

	length, err := d.readUint16(index, "length")
	if err != nil {
		return s, err
	}
	if length < minExtendedFrame {
		return s, &DecodeError{
			Revision: RevisionExtended,
			Record:   index,
			Field:    "length",
			Offset:   start,
			Err:      ErrMalformedFrame,
		}
	}

	offset := d.buf.Tell()
	if err := d.check(s.readAddr(d.buf), index, "ip", offset); err != nil {
		return s, err
	}
	if s.Port, err = d.readUint16(index, "port"); err != nil {
		return s, err
	}

	for _, f := range recordFields {
		if !d.res.Flags.Has(f.flag) {
			continue
		}
		offset := d.buf.Tell()
		if err := d.check(f.decode(d.buf, &s), index, f.name, offset); err != nil {
			return s, err
		}
	}

	end := start + int(length)
	if !d.buf.Seek(end) {
		err := &ShortReadError{Offset: start, Want: int(length), Have: d.buf.Len() - start}
		if err := d.check(err, index, "length", start); err != nil {
			return s, err
		}
	}

	return s, nil
}
