package ase

import (
	"errors"
	"fmt"
)

var (
	// ErrShortRead reports a read that needs more bytes than remain in the buffer.
	ErrShortRead = errors.New("short read")

	// ErrCapacityExceeded reports an append beyond the buffer capacity.
	ErrCapacityExceeded = errors.New("buffer capacity exceeded")

	// ErrMalformedFrame reports a record length that cannot move the cursor forward.
	ErrMalformedFrame = errors.New("malformed record frame")
)

// ShortReadError carries the position and sizes of a failed read.
type ShortReadError struct {
	Offset int
	Want   int
	Have   int
}

func (e *ShortReadError) Error() string {
	return fmt.Sprintf("short read at offset %d: want %d bytes, have %d", e.Offset, e.Want, e.Have)
}

func (e *ShortReadError) Unwrap() error { return ErrShortRead }

// CapacityError is returned by Buffer.Write when an append does not fit.
type CapacityError struct {
	Capacity  int
	Filled    int
	Requested int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("buffer capacity exceeded: capacity %d, filled %d, requested %d",
		e.Capacity, e.Filled, e.Requested)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// DecodeError locates a decoding failure inside the reply.
type DecodeError struct {
	Err      error
	Field    string
	Revision Revision
	Record   int // -1 for header fields
	Offset   int
}

func (e *DecodeError) Error() string {
	if e.Record < 0 {
		return fmt.Sprintf("%s reply: header field %s at offset %d: %v", e.Revision, e.Field, e.Offset, e.Err)
	}

	return fmt.Sprintf("%s reply: record %d field %s at offset %d: %v", e.Revision, e.Record, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
