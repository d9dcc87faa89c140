// Package parser provides the low-level decoders for the AML byte stream:
// a bounded cursor, the PkgLength and NameString encodings and the list of
// known opcodes.
package parser

import (
	"encoding/binary"
	"gopheraml/kernel"
)

var (
	errUnexpectedEOF     = &kernel.Error{Module: "acpi_aml_parser", Message: "unexpected end of AML stream", Errno: kernel.EILSEQ}
	errInvalidUnreadByte = &kernel.Error{Module: "acpi_aml_parser", Message: "invalid use of UnreadByte", Errno: kernel.EINVAL}
	errInvalidOffset     = &kernel.Error{Module: "acpi_aml_parser", Message: "offset lies outside the AML stream", Errno: kernel.ERANGE}
	errInvalidString     = &kernel.Error{Module: "acpi_aml_parser", Message: "string literal contains non-ASCII characters", Errno: kernel.EILSEQ}
)

// Reader is a cursor over a block of AML bytecode. All reads are bounded by
// the end of the block; the reader never panics on truncated input.
type Reader struct {
	offset uint32
	data   []byte
}

// NewReader returns a reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// EOF returns true if the end of the stream has been reached.
func (r *Reader) EOF() bool {
	return r.offset >= uint32(len(r.data))
}

// Len returns the total length of the underlying stream.
func (r *Reader) Len() uint32 {
	return uint32(len(r.data))
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() uint32 {
	if r.EOF() {
		return 0
	}

	return uint32(len(r.data)) - r.offset
}

// ReadByte returns the next byte from the stream.
func (r *Reader) ReadByte() (byte, error) {
	if r.EOF() {
		return 0, errUnexpectedEOF
	}

	r.offset++
	return r.data[r.offset-1], nil
}

// PeekByte returns the next byte from the stream without advancing the read pointer.
func (r *Reader) PeekByte() (byte, error) {
	if r.EOF() {
		return 0, errUnexpectedEOF
	}

	return r.data[r.offset], nil
}

// PeekByteAt returns the byte located n bytes after the read pointer.
func (r *Reader) PeekByteAt(n uint32) (byte, error) {
	if r.offset+n >= uint32(len(r.data)) {
		return 0, errUnexpectedEOF
	}

	return r.data[r.offset+n], nil
}

// LastByte returns the last byte read off the stream
func (r *Reader) LastByte() (byte, error) {
	if r.offset == 0 {
		return 0, errUnexpectedEOF
	}

	return r.data[r.offset-1], nil
}

// UnreadByte moves back the read pointer by one byte.
func (r *Reader) UnreadByte() error {
	if r.offset == 0 {
		return errInvalidUnreadByte
	}

	r.offset--
	return nil
}

// Offset returns the current offset.
func (r *Reader) Offset() uint32 {
	return r.offset
}

// SetOffset sets the reader offset to the supplied value. Moving the offset
// past the end of the stream is an error.
func (r *Reader) SetOffset(off uint32) error {
	if off > uint32(len(r.data)) {
		return errInvalidOffset
	}

	r.offset = off
	return nil
}

// ReadWord reads a little-endian 16-bit value.
func (r *Reader) ReadWord() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

// ReadDWord reads a little-endian 32-bit value.
func (r *Reader) ReadDWord() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

// ReadQWord reads a little-endian 64-bit value.
func (r *Reader) ReadQWord() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// ReadBytes returns the next n bytes of the stream. The returned slice
// aliases the underlying stream and must not be modified.
func (r *Reader) ReadBytes(n uint32) ([]byte, error) {
	if r.Remaining() < n {
		return nil, errUnexpectedEOF
	}

	b := r.data[r.offset : r.offset+n : r.offset+n]
	r.offset += n
	return b, nil
}

// Slice returns the stream bytes in the range [start, end).
func (r *Reader) Slice(start, end uint32) ([]byte, error) {
	if start > end || end > uint32(len(r.data)) {
		return nil, errInvalidOffset
	}

	return r.data[start:end:end], nil
}

// ReadString reads a NUL-terminated ASCII string.
//
// Grammar:
// String := StringPrefix AsciiCharList NullChar
// AsciiChar := 0x01 - 0x7F
func (r *Reader) ReadString() (string, error) {
	start := r.offset
	for {
		next, err := r.ReadByte()
		if err != nil {
			return "", err
		}

		switch {
		case next == 0x00:
			return string(r.data[start : r.offset-1]), nil
		case next > 0x7f:
			return "", errInvalidString
		}
	}
}
