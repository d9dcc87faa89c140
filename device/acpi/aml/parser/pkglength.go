package parser

import "gopheraml/kernel"

// MaxPkgLength is the exclusive upper bound for a PkgLength value; the
// encoding carries at most 4 + 3*8 bits.
const MaxPkgLength = 1 << 28

var (
	errPkgLengthLeadByte = &kernel.Error{Module: "acpi_aml_parser", Message: "malformed PkgLength lead byte", Errno: kernel.EILSEQ}
	errPkgLengthRange    = &kernel.Error{Module: "acpi_aml_parser", Message: "PkgLength value out of range", Errno: kernel.ERANGE}
	errPkgLengthOverrun  = &kernel.Error{Module: "acpi_aml_parser", Message: "PkgLength extends past the end of the enclosing block", Errno: kernel.EILSEQ}
)

// ReadPkgLeadByte reads a PkgLength lead byte and returns the number of
// bytes that follow it together with the length bits it carries.
//
// Grammar:
// PkgLeadByte := <bit 7-6: ByteData count that follows (0-3)>
//                <bit 5-4: Only used if PkgLength < 63>
//                <bit 3-0: Least significant package length nybble>
func (r *Reader) ReadPkgLeadByte() (count uint8, bits uint32, err error) {
	lead, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	count = lead >> 6
	if count == 0 {
		return 0, uint32(lead & 0x3f), nil
	}

	// Bits 4-5 must be clear when extra bytes follow.
	if lead&0x30 != 0 {
		return 0, 0, errPkgLengthLeadByte
	}

	return count, uint32(lead & 0x0f), nil
}

// ReadPkgLength parses a PkgLength value from the AML bytestream. The
// returned length is measured from the first byte of the PkgLength field
// and includes the field itself.
//
// Grammar:
// PkgLength := PkgLeadByte |
//              <PkgLeadByte ByteData> |
//              <PkgLeadByte ByteData ByteData> |
//              <PkgLeadByte ByteData ByteData ByteData>
func (r *Reader) ReadPkgLength() (uint32, error) {
	start := r.offset
	count, pkgLen, err := r.ReadPkgLeadByte()
	if err != nil {
		return 0, err
	}

	for i := uint8(0); i < count; i++ {
		next, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		pkgLen |= uint32(next) << (4 + 8*i)
	}

	if pkgLen >= MaxPkgLength || pkgLen < r.offset-start {
		return 0, errPkgLengthRange
	}

	return pkgLen, nil
}

// ReadPkgEnd parses a PkgLength and returns the stream offset where the
// package it prefixes ends. The end offset must not exceed limit.
func (r *Reader) ReadPkgEnd(limit uint32) (uint32, error) {
	start := r.offset
	pkgLen, err := r.ReadPkgLength()
	if err != nil {
		return 0, err
	}

	end := start + pkgLen
	if end > limit || end > uint32(len(r.data)) {
		return 0, errPkgLengthOverrun
	}

	return end, nil
}

// EncodePkgLength returns the PkgLength encoding for a package whose
// payload (the bytes following the PkgLength field) is payloadLen bytes
// long. The encoded value accounts for the size of the encoding itself.
func EncodePkgLength(payloadLen int) ([]byte, error) {
	if payloadLen < 0 {
		return nil, errPkgLengthRange
	}

	for size := 1; size <= 4; size++ {
		total := payloadLen + size
		if total >= MaxPkgLength {
			break
		}

		if size == 1 {
			if total <= 0x3f {
				return []byte{byte(total)}, nil
			}
			continue
		}

		if total >= 1<<(4+8*(size-1)) {
			continue
		}

		out := make([]byte, size)
		out[0] = byte(size-1)<<6 | byte(total&0x0f)
		for i := 1; i < size; i++ {
			out[i] = byte(total >> (4 + 8*(i-1)))
		}
		return out, nil
	}

	return nil, errPkgLengthRange
}

// ReadFieldLength decodes a PkgLength-encoded field width. Unlike package
// lengths, field widths are plain values and may be smaller than their own
// encoding.
func (r *Reader) ReadFieldLength() (uint32, error) {
	count, value, err := r.ReadPkgLeadByte()
	if err != nil {
		return 0, err
	}

	for i := uint8(0); i < count; i++ {
		next, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		value |= uint32(next) << (4 + 8*i)
	}

	return value, nil
}

// EncodeFieldLength returns the PkgLength encoding of a plain field width.
func EncodeFieldLength(v uint32) ([]byte, error) {
	if v <= 0x3f {
		return []byte{byte(v)}, nil
	}

	for size := 2; size <= 4; size++ {
		if v >= 1<<(4+8*(size-1)) {
			continue
		}

		out := make([]byte, size)
		out[0] = byte(size-1)<<6 | byte(v&0x0f)
		for i := 1; i < size; i++ {
			out[i] = byte(v >> (4 + 8*(i-1)))
		}
		return out, nil
	}

	return nil, errPkgLengthRange
}
