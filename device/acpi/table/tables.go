package table

import (
	"bytes"
	"encoding/binary"
	"gopheraml/kernel"
)

// HeaderSize is the size of the SDTHeader in bytes.
const HeaderSize = 36

// Well-known table signatures.
const (
	SignatureDSDT = "DSDT"
	SignatureSSDT = "SSDT"
	SignatureFADT = "FACP"
)

var (
	errTableTooShort  = &kernel.Error{Module: "acpi_table", Message: "table is shorter than its header", Errno: kernel.EILSEQ}
	errLengthMismatch = &kernel.Error{Module: "acpi_table", Message: "table length field does not match the table size", Errno: kernel.EILSEQ}
	errBadSignature   = &kernel.Error{Module: "acpi_table", Message: "table signature must be 4 characters long", Errno: kernel.EINVAL}
)

// Resolver is an interface implemented by objects that can lookup an ACPI table
// by its signature.
//
// LookupTable returns the n-th table (starting at 0) with the given signature
// or nil if no such table exists. Signatures such as SSDT may be shared by
// several tables.
type Resolver interface {
	LookupTable(signature string, n int) *Table
}

// SDTHeader defines the common header for all ACPI-related tables.
type SDTHeader struct {
	// The signature defines the table type.
	Signature [4]byte

	// The length of the table
	Length uint32

	// If this header belongs to a DSDT/SSDT table, the revision is also
	// used to indicate whether the AML VM should treat integers as 32-bits
	// (revision < 2) or 64-bits (revision >= 2).
	Revision uint8

	// A value that when added to the sum of all other bytes in the table
	// should result in the value 0.
	Checksum uint8

	// OEM specific information
	OEMID       [6]byte
	OEMTableID  [8]byte
	OEMRevision uint32

	// Information about the ASL compiler that generated this table
	CreatorID       uint32
	CreatorRevision uint32
}

// Table is a raw ACPI table together with its decoded header.
type Table struct {
	Header SDTHeader

	// Data holds the entire table including the header bytes.
	Data []byte
}

// Signature returns the table signature as a string.
func (t *Table) Signature() string {
	return string(t.Header.Signature[:])
}

// OEMID returns the OEM ID with any trailing padding removed.
func (t *Table) OEMID() string {
	return string(bytes.TrimRight(t.Header.OEMID[:], " \x00"))
}

// OEMTableID returns the OEM table ID with any trailing padding removed.
func (t *Table) OEMTableID() string {
	return string(bytes.TrimRight(t.Header.OEMTableID[:], " \x00"))
}

// AML returns the table payload that follows the header. For DSDT and SSDT
// tables this is the AML bytecode.
func (t *Table) AML() []byte {
	return t.Data[HeaderSize:]
}

// Valid returns true if the table checksum is correct.
func (t *Table) Valid() bool {
	return ValidChecksum(t.Data)
}

// Unmarshal decodes the header of the table contained in b. The length field
// of the header must match len(b). The checksum is not verified; use
// ValidChecksum for that.
func Unmarshal(b []byte) (*Table, error) {
	if len(b) < HeaderSize {
		return nil, errTableTooShort
	}

	t := &Table{Data: b}
	if err := binary.Read(bytes.NewReader(b[:HeaderSize]), binary.LittleEndian, &t.Header); err != nil {
		return nil, errTableTooShort
	}

	if int(t.Header.Length) != len(b) {
		return nil, errLengthMismatch
	}

	return t, nil
}

// ValidChecksum calculates the checksum for an ACPI table and returns true if
// all its bytes sum up to 0.
func ValidChecksum(b []byte) bool {
	var sum uint8
	for _, v := range b {
		sum += v
	}

	return sum == 0
}

// Checksum returns the value that must be stored in the checksum field so that
// all bytes of b sum up to 0. The checksum field itself must be zero in b.
func Checksum(b []byte) uint8 {
	var sum uint8
	for _, v := range b {
		sum += v
	}

	return 0 - sum
}
