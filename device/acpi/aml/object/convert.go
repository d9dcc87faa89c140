package object

import (
	"fmt"
	"gopheraml/kernel"
	"strconv"
	"strings"
)

var (
	errNoConverter     = &kernel.Error{Module: "acpi_aml_convert", Message: "no valid conversion to any allowed type", Errno: kernel.EILSEQ}
	errNotConvertible  = &kernel.Error{Module: "acpi_aml_convert", Message: "source type does not support implicit conversion", Errno: kernel.EINVAL}
	errFieldUnitSource = &kernel.Error{Module: "acpi_aml_convert", Message: "field units must be loaded before conversion", Errno: kernel.EINVAL}
	errEmptyString     = &kernel.Error{Module: "acpi_aml_convert", Message: "cannot convert an empty string to an Integer", Errno: kernel.EILSEQ}
	errBadExplicitType = &kernel.Error{Module: "acpi_aml_convert", Message: "operand type not supported by explicit conversion", Errno: kernel.EILSEQ}
	errInvalidBCD      = &kernel.Error{Module: "acpi_aml_convert", Message: "invalid BCD digit", Errno: kernel.EINVAL}
)

const hexDigits = "0123456789ABCDEF"

// converter writes src into dst as type to. Returning false lets the next
// converter in the priority list have a go.
type converter struct {
	to Type
	fn func(src, dst *Object) (bool, error)
}

// Converter lists in priority order (ACPI 6.x table 19.6); the first entry
// whose type is allowed wins.
var (
	integerConverters = []converter{
		{TypeBuffer, integerToBuffer},
		{TypeBufferField, integerToBufferField},
		{TypeFieldUnit, tryNext},
		{TypeString, integerToString},
	}
	bufferConverters = []converter{
		{TypeInteger, bufferToInteger},
		{TypeString, bufferToString},
	}
	stringConverters = []converter{
		{TypeInteger, stringToInteger},
		{TypeBuffer, stringToBuffer},
	}
)

func convertersFor(t Type) ([]converter, error) {
	switch t {
	case TypeInteger:
		return integerConverters, nil
	case TypeBuffer:
		return bufferConverters, nil
	case TypeString:
		return stringConverters, nil
	case TypePackage:
		return nil, errNoConverter
	default:
		return nil, errNotConvertible
	}
}

// Convert implements the implicit conversion of src into dst, where dst
// must end up holding one of the allowed types. When dst already holds a
// Buffer, conversions into it keep the buffer length. A plain copy is
// preferred whenever src already has an allowed type that dst can take.
func Convert(src, dst *Object, allowed Type) error {
	switch src.Type {
	case TypeUninitialized:
		return errUninitialized
	case TypeFieldUnit:
		return errFieldUnitSource
	case TypeBufferField:
		// BufferFields are treated as either Buffers or Integers based on size
		tmp, err := src.BufferField.Load()
		if err != nil {
			return err
		}

		if tmp.Type&allowed != 0 {
			return CopyDataAndType(dst, tmp)
		}
		return Convert(tmp, dst, allowed)
	}

	if src.Type&allowed != 0 && (src.Type == dst.Type || dst.Type == TypeUninitialized) {
		return CopyDataAndType(dst, src)
	}

	converters, err := convertersFor(src.Type)
	if err != nil {
		return err
	}

	for _, entry := range converters {
		if allowed&entry.to == 0 {
			continue
		}

		handled, err := entry.fn(src, dst)
		if err != nil {
			return err
		}

		if handled {
			return nil
		}
	}

	return errNoConverter
}

// ConvertSource converts an operand into dst. If src already has one of
// the allowed types it is copied as-is.
func ConvertSource(src, dst *Object, allowed Type) error {
	if src.Type == TypeUninitialized {
		return errUninitialized
	}

	if src.Type&allowed != 0 {
		return CopyDataAndType(dst, src)
	}

	return Convert(src, dst, allowed)
}

// ConvertTo returns src unchanged if it already has an allowed type and a
// freshly converted object otherwise.
func ConvertTo(src *Object, allowed Type) (*Object, error) {
	if src.Type&allowed != 0 && src.Type != TypeUninitialized {
		return src, nil
	}

	dst := New()
	if err := ConvertSource(src, dst, allowed); err != nil {
		return nil, err
	}

	return dst, nil
}

func tryNext(_, _ *Object) (bool, error) { return false, nil }

func integerToBuffer(src, dst *Object) (bool, error) {
	size := IntegerSize()
	if dst.Type == TypeBuffer {
		for i := range dst.Bytes {
			dst.Bytes[i] = 0
			if i < size {
				dst.Bytes[i] = byte(src.Integer >> (8 * i))
			}
		}
		return true, nil
	}

	b := make([]byte, size)
	for i := range b {
		b[i] = byte(src.Integer >> (8 * i))
	}
	dst.reset(TypeBuffer)
	dst.Bytes = b
	return true, nil
}

func integerToBufferField(src, dst *Object) (bool, error) {
	if dst.Type != TypeBufferField {
		return false, nil
	}

	return true, dst.BufferField.Store(src)
}

func integerToString(src, dst *Object) (bool, error) {
	s := formatHexInteger(src.Integer)
	dst.reset(TypeString)
	dst.Bytes = []byte(s)
	return true, nil
}

// formatHexInteger renders v as upper-case hex digits, most significant
// first, padded to the active integer width.
func formatHexInteger(v uint64) string {
	return fmt.Sprintf("%0*X", IntegerSize()*2, v&IntegerOnes())
}

func bufferToInteger(src, dst *Object) (bool, error) {
	var v uint64
	for i := 0; i < len(src.Bytes) && i < IntegerSize(); i++ {
		v |= uint64(src.Bytes[i]) << (8 * i)
	}

	dst.reset(TypeInteger)
	dst.Integer = v
	return true, nil
}

// bufferToString renders each byte as two hex chars with a space in
// between.
func bufferToString(src, dst *Object) (bool, error) {
	dst.reset(TypeString)
	dst.Bytes = []byte(joinHexBytes(src.Bytes, ' '))
	return true, nil
}

func joinHexBytes(b []byte, sep byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(sep)
		}
		sb.WriteByte(hexDigits[v>>4])
		sb.WriteByte(hexDigits[v&0x0f])
	}
	return sb.String()
}

func hexValue(c byte) (uint64, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint64(c - '0'), true
	case c >= 'a' && c <= 'f':
		return uint64(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return uint64(c-'A') + 10, true
	default:
		return 0, false
	}
}

// stringToInteger parses hex digits until the first non-hex character or
// until the active integer width is filled.
func stringToInteger(src, dst *Object) (bool, error) {
	var v uint64
	for i := 0; i < len(src.Bytes) && i < IntegerSize()*2; i++ {
		digit, ok := hexValue(src.Bytes[i])
		if !ok {
			break
		}
		v = v<<4 | digit
	}

	dst.reset(TypeInteger)
	dst.Integer = v
	return true, nil
}

// stringToBuffer copies the string bytes plus a terminating NUL. When dst
// is already a Buffer its length is kept and the last byte is always NUL.
func stringToBuffer(src, dst *Object) (bool, error) {
	if dst.Type == TypeBuffer {
		if n := len(dst.Bytes); n > 0 {
			for i := range dst.Bytes {
				dst.Bytes[i] = 0
			}
			copy(dst.Bytes[:n-1], src.Bytes)
		}
		return true, nil
	}

	var b []byte
	if len(src.Bytes) > 0 {
		b = make([]byte, len(src.Bytes)+1)
		copy(b, src.Bytes)
	}
	dst.reset(TypeBuffer)
	dst.Bytes = b
	return true, nil
}

// ToBuffer implements the ToBuffer operator.
func ToBuffer(src *Object) (*Object, error) {
	dst := New()
	switch src.Type {
	case TypeUninitialized:
		return nil, errUninitialized
	case TypeBuffer:
		return dst, CopyDataAndType(dst, src)
	case TypeInteger:
		_, err := integerToBuffer(src, dst)
		return dst, err
	case TypeString:
		_, err := stringToBuffer(src, dst)
		return dst, err
	}

	return nil, errBadExplicitType
}

// ToDecimalString implements the ToDecimalString operator. Buffers are
// rendered as a comma separated list of decimal byte values.
func ToDecimalString(src *Object) (*Object, error) {
	switch src.Type {
	case TypeUninitialized:
		return nil, errUninitialized
	case TypeString:
		return Clone(src)
	case TypeInteger:
		return NewString(strconv.FormatUint(src.Integer, 10)), nil
	case TypeBuffer:
		parts := make([]string, len(src.Bytes))
		for i, b := range src.Bytes {
			parts[i] = strconv.Itoa(int(b))
		}
		return NewString(strings.Join(parts, ",")), nil
	}

	return nil, errBadExplicitType
}

// ToHexString implements the ToHexString operator. Buffers are rendered as
// a comma separated list of two-digit hex values.
func ToHexString(src *Object) (*Object, error) {
	switch src.Type {
	case TypeUninitialized:
		return nil, errUninitialized
	case TypeString:
		return Clone(src)
	case TypeInteger:
		return NewString(formatHexInteger(src.Integer)), nil
	case TypeBuffer:
		return NewString(joinHexBytes(src.Bytes, ',')), nil
	}

	return nil, errBadExplicitType
}

// ToInteger implements the ToInteger operator. Strings are parsed as hex
// when they carry a 0x prefix and as decimal otherwise; parsing stops at
// the first invalid character.
func ToInteger(src *Object) (*Object, error) {
	switch src.Type {
	case TypeUninitialized:
		return nil, errUninitialized
	case TypeInteger:
		return Clone(src)
	case TypeString:
		str := src.Bytes
		if len(str) == 0 {
			return nil, errEmptyString
		}

		var v uint64
		if len(str) > 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X') {
			for _, c := range str[2:] {
				digit, ok := hexValue(c)
				if !ok {
					break
				}
				v = v<<4 | digit
			}
		} else {
			for _, c := range str {
				if c < '0' || c > '9' {
					break
				}
				v = v*10 + uint64(c-'0')
			}
		}
		return NewInteger(v), nil
	case TypeBuffer:
		dst := New()
		_, err := bufferToInteger(src, dst)
		return dst, err
	}

	return nil, errBadExplicitType
}

// ToString implements the ToString operator: bytes are copied from a
// Buffer until a NUL byte or maxLen bytes have been copied. Integer and
// String operands are converted to a Buffer first.
func ToString(src *Object, maxLen uint64) (*Object, error) {
	buf, err := ConvertTo(src, TypeBuffer)
	if err != nil {
		return nil, err
	}

	var out []byte
	for _, b := range buf.Bytes {
		if b == 0 || uint64(len(out)) >= maxLen {
			break
		}
		out = append(out, b)
	}

	return &Object{Type: TypeString, Bytes: out}, nil
}

// ToBCD converts a binary value into packed BCD.
func ToBCD(v uint64) uint64 {
	var bcd uint64
	for i := uint(0); i < 16; i++ {
		bcd |= (v % 10) << (i * 4)
		v /= 10
		if v == 0 {
			break
		}
	}

	return bcd & IntegerOnes()
}

// FromBCD converts a packed BCD value into binary.
func FromBCD(bcd uint64) (uint64, error) {
	var (
		v    uint64
		mult uint64 = 1
	)

	for ; bcd != 0; bcd >>= 4 {
		digit := bcd & 0xf
		if digit > 9 {
			return 0, errInvalidBCD
		}

		v += digit * mult
		mult *= 10
	}

	return v & IntegerOnes(), nil
}
