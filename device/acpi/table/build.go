package table

import (
	"encoding/binary"
)

// OEMInfo holds the OEM fields that Build copies into a table header.
type OEMInfo struct {
	OEMID           string
	OEMTableID      string
	OEMRevision     uint32
	CreatorID       string
	CreatorRevision uint32
}

// DefaultOEMInfo is used by Build when no OEM information is specified.
var DefaultOEMInfo = OEMInfo{
	OEMID:           "GOPHER",
	OEMTableID:      "GOPHERAM",
	OEMRevision:     1,
	CreatorID:       "GAML",
	CreatorRevision: 1,
}

// Build emits a complete ACPI table with the given signature, revision and
// payload. The length and checksum fields are filled in so that the result
// passes ValidChecksum.
func Build(signature string, revision uint8, oem OEMInfo, body []byte) ([]byte, error) {
	if len(signature) != 4 {
		return nil, errBadSignature
	}

	b := make([]byte, HeaderSize+len(body))
	copy(b[0:4], signature)
	binary.LittleEndian.PutUint32(b[4:8], uint32(len(b)))
	b[8] = revision
	copy(b[10:16], padRight(oem.OEMID, 6))
	copy(b[16:24], padRight(oem.OEMTableID, 8))
	binary.LittleEndian.PutUint32(b[24:28], oem.OEMRevision)
	copy(b[28:32], padRight(oem.CreatorID, 4))
	binary.LittleEndian.PutUint32(b[32:36], oem.CreatorRevision)
	copy(b[HeaderSize:], body)

	b[9] = Checksum(b)
	return b, nil
}

func padRight(s string, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = ' '
	}
	copy(out, s)
	return out
}
