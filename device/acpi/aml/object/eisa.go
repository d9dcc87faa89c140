package object

import (
	"encoding/binary"
	"gopheraml/kernel"
)

var errInvalidEISAID = &kernel.Error{Module: "acpi_aml_object", Message: "invalid EISA id string", Errno: kernel.EINVAL}

// EISAIDFromString compresses a 7 character id such as "PNP0A03" into
// the 32-bit form produced by the EisaId() ASL macro.
func EISAIDFromString(id string) (uint32, error) {
	if len(id) != 7 {
		return 0, errInvalidEISAID
	}

	var mfg uint16
	for i := 0; i < 3; i++ {
		c := id[i]
		if c < 'A' || c > 'Z' {
			return 0, errInvalidEISAID
		}
		mfg = mfg<<5 | uint16(c-'@')
	}

	var prod uint16
	for i := 3; i < 7; i++ {
		digit, ok := hexValue(id[i])
		if !ok {
			return 0, errInvalidEISAID
		}
		prod = prod<<4 | uint16(digit)
	}

	b := [4]byte{byte(mfg >> 8), byte(mfg), byte(prod >> 8), byte(prod)}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// EISAIDToString expands a compressed EISA id back into its 7 character
// form.
func EISAIDToString(id uint32) string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], id)

	mfg := uint16(b[0])<<8 | uint16(b[1])
	prod := uint16(b[2])<<8 | uint16(b[3])

	return string([]byte{
		byte((mfg>>10)&0x1f) + '@',
		byte((mfg>>5)&0x1f) + '@',
		byte(mfg&0x1f) + '@',
		hexDigits[(prod>>12)&0xf],
		hexDigits[(prod>>8)&0xf],
		hexDigits[(prod>>4)&0xf],
		hexDigits[prod&0xf],
	})
}
