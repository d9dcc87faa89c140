package object

import "gopheraml/kernel"

// bufferFieldChunkSize is the size of the scratch buffer used while moving
// fields wider than an Integer.
const bufferFieldChunkSize = 256

var (
	errFieldOutOfRange = &kernel.Error{Module: "acpi_aml_buffer_field", Message: "buffer field exceeds the bounds of its source", Errno: kernel.EINVAL}
	errFieldSource     = &kernel.Error{Module: "acpi_aml_buffer_field", Message: "buffer field source is not a Buffer or String", Errno: kernel.EINVAL}
	errFieldValue      = &kernel.Error{Module: "acpi_aml_buffer_field", Message: "buffer field value must be an Integer or Buffer", Errno: kernel.EINVAL}
)

func (bf *BufferField) source() ([]byte, error) {
	if bf.Source == nil || (bf.Source.Type != TypeBuffer && bf.Source.Type != TypeString) {
		return nil, errFieldSource
	}

	buf := bf.Source.Bytes
	if bf.BitOffset+bf.BitLength < bf.BitOffset || bf.BitOffset+bf.BitLength > uint64(len(buf))*8 {
		return nil, errFieldOutOfRange
	}

	return buf, nil
}

// Load reads the field. Fields that fit in an Integer yield an Integer;
// wider fields yield a Buffer of (BitLength+7)/8 bytes.
func (bf *BufferField) Load() (*Object, error) {
	buf, err := bf.source()
	if err != nil {
		return nil, err
	}

	if bf.BitLength <= uint64(IntegerSize())*8 {
		return NewInteger(ExtractBits(buf, bf.BitOffset, bf.BitLength)), nil
	}

	var (
		out     = make([]byte, (bf.BitLength+7)/8)
		scratch [bufferFieldChunkSize]byte
	)

	for chunkStart := uint64(0); chunkStart < uint64(len(out)); chunkStart += bufferFieldChunkSize {
		chunkLen := min(uint64(len(out))-chunkStart, bufferFieldChunkSize)
		for i := uint64(0); i < chunkLen; i++ {
			bitIndex := (chunkStart + i) * 8
			scratch[i] = byte(ExtractBits(buf, bf.BitOffset+bitIndex, min(8, bf.BitLength-bitIndex)))
		}
		copy(out[chunkStart:], scratch[:chunkLen])
	}

	return &Object{Type: TypeBuffer, Bytes: out}, nil
}

// Store writes an Integer or Buffer value into the field. Source bits
// beyond the end of the value are written as zero.
func (bf *BufferField) Store(value *Object) error {
	buf, err := bf.source()
	if err != nil {
		return err
	}

	switch value.Type {
	case TypeInteger:
		if bf.BitLength <= 64 {
			InsertBits(buf, bf.BitOffset, bf.BitLength, value.Integer)
			return nil
		}

		var b [8]byte
		for i := range b {
			b[i] = byte(value.Integer >> (8 * i))
		}
		storeBytes(buf, bf.BitOffset, bf.BitLength, b[:])
	case TypeBuffer:
		storeBytes(buf, bf.BitOffset, bf.BitLength, value.Bytes)
	default:
		return errFieldValue
	}

	return nil
}

func storeBytes(buf []byte, bitOffset, bitLength uint64, src []byte) {
	var scratch [bufferFieldChunkSize]byte

	byteLen := (bitLength + 7) / 8
	for chunkStart := uint64(0); chunkStart < byteLen; chunkStart += bufferFieldChunkSize {
		chunkLen := min(byteLen-chunkStart, bufferFieldChunkSize)
		for i := uint64(0); i < chunkLen; i++ {
			scratch[i] = 0
			if chunkStart+i < uint64(len(src)) {
				scratch[i] = src[chunkStart+i]
			}
		}

		for i := uint64(0); i < chunkLen; i++ {
			bitIndex := (chunkStart + i) * 8
			InsertBits(buf, bitOffset+bitIndex, min(8, bitLength-bitIndex), uint64(scratch[i]))
		}
	}
}

// ExtractBits returns bitLength (<= 64) bits of buf starting at bitOffset.
// The caller must ensure the range lies within buf.
func ExtractBits(buf []byte, bitOffset, bitLength uint64) uint64 {
	var v uint64
	for i := uint64(0); i < bitLength; {
		byteIndex, bitInByte := (bitOffset+i)/8, (bitOffset+i)%8
		take := min(8-bitInByte, bitLength-i)

		bits := (uint64(buf[byteIndex]) >> bitInByte) & (uint64(1)<<take - 1)
		v |= bits << i
		i += take
	}

	return v
}

// InsertBits writes the low bitLength bits of v at bitOffset.
func InsertBits(buf []byte, bitOffset, bitLength, v uint64) {
	for i := uint64(0); i < bitLength; {
		byteIndex, bitInByte := (bitOffset+i)/8, (bitOffset+i)%8
		take := min(8-bitInByte, bitLength-i)

		mask := byte((uint64(1)<<take - 1) << bitInByte)
		buf[byteIndex] = buf[byteIndex]&^mask | byte((v>>i)<<bitInByte)&mask
		i += take
	}
}
