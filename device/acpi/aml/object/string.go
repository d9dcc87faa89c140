package object

import (
	"fmt"
	"strings"
)

// TypeName returns the name used when an object of a non-data type takes
// part in a Concatenate operation.
func TypeName(t Type) string {
	switch t {
	case TypeUninitialized:
		return "Uninitialized Object"
	case TypeInteger:
		return "Integer"
	case TypeString:
		return "String"
	case TypeBuffer:
		return "Buffer"
	case TypePackage:
		return "Package"
	case TypeFieldUnit:
		return "Field Unit"
	case TypeDevice:
		return "Device"
	case TypeEvent:
		return "Event"
	case TypeMethod:
		return "Control Method"
	case TypeMutex:
		return "Mutex"
	case TypeOperationRegion:
		return "Operation Region"
	case TypePowerResource:
		return "Power Resource"
	case TypeProcessor:
		return "Processor"
	case TypeThermalZone:
		return "Thermal Zone"
	case TypeBufferField:
		return "Buffer Field"
	case TypeDebugObject:
		return "Debug Object"
	case TypeDDBHandle:
		return "DDB Handle"
	case TypeObjectReference:
		return "Reference"
	}

	return "Unknown"
}

// TypeCode returns the numeric code reported by the ObjectType operator.
func TypeCode(t Type) uint64 {
	switch t {
	case TypeInteger:
		return 1
	case TypeString:
		return 2
	case TypeBuffer:
		return 3
	case TypePackage:
		return 4
	case TypeFieldUnit:
		return 5
	case TypeDevice:
		return 6
	case TypeEvent:
		return 7
	case TypeMethod:
		return 8
	case TypeMutex:
		return 9
	case TypeOperationRegion:
		return 10
	case TypePowerResource:
		return 11
	case TypeProcessor:
		return 12
	case TypeThermalZone:
		return 13
	case TypeBufferField:
		return 14
	case TypeDDBHandle:
		return 15
	case TypeDebugObject:
		return 16
	}

	return 0
}

// Concat implements the Concatenate operator. The type of the result is
// selected by the type of a:
//   - Integer: a Buffer holding both values as Integers
//   - String: a String; b is converted to a String
//   - Buffer: a Buffer; b is converted to a Buffer
//   - any other type: a String built from the type names of both operands
//
// Operands of a non-data type contribute their type name.
func Concat(a, b *Object) (*Object, error) {
	if a.Type == TypeUninitialized || b.Type == TypeUninitialized {
		return nil, errUninitialized
	}

	switch a.Type {
	case TypeInteger:
		other, err := ConvertTo(b, TypeInteger)
		if err != nil {
			return nil, err
		}

		size := IntegerSize()
		out := make([]byte, 2*size)
		for i := 0; i < size; i++ {
			out[i] = byte(a.Integer >> (8 * i))
			out[size+i] = byte(other.Integer >> (8 * i))
		}
		return &Object{Type: TypeBuffer, Bytes: out}, nil
	case TypeString:
		tail, err := concatOperand(b, TypeString)
		if err != nil {
			return nil, err
		}
		return &Object{Type: TypeString, Bytes: append(append([]byte{}, a.Bytes...), tail...)}, nil
	case TypeBuffer:
		tail, err := concatOperand(b, TypeBuffer)
		if err != nil {
			return nil, err
		}
		return &Object{Type: TypeBuffer, Bytes: append(append([]byte{}, a.Bytes...), tail...)}, nil
	}

	return NewString(TypeName(a.Type) + TypeName(b.Type)), nil
}

// concatOperand returns the bytes contributed by b when concatenated to an
// operand of type to.
func concatOperand(b *Object, to Type) ([]byte, error) {
	if b.Type&(TypeComputationalData|TypeBufferField) == 0 {
		return []byte(TypeName(b.Type)), nil
	}

	conv, err := ConvertTo(b, to)
	if err != nil {
		return nil, err
	}

	return conv.Bytes, nil
}

// Mid implements the Mid operator for Buffer and String sources. Integers
// are converted to a Buffer first. Reading past the end of src is not an
// error: the result is truncated (and is empty if index is out of range).
func Mid(src *Object, index, length uint64) (*Object, error) {
	if src.Type == TypeUninitialized {
		return nil, errUninitialized
	}

	conv, err := ConvertTo(src, TypeBuffer|TypeString)
	if err != nil {
		return nil, err
	}

	var (
		data = conv.Bytes
		out  []byte
		n    = uint64(len(data))
	)

	if index < n {
		length = min(length, n-index)
		out = append([]byte{}, data[index:index+length]...)
	}

	return &Object{Type: conv.Type, Bytes: out}, nil
}

// Format renders a short, human readable summary of o. It is used by the
// Debug object and diagnostics.
func Format(o *Object) string {
	if o == nil {
		return "<nil>"
	}

	switch o.Type {
	case TypeUninitialized:
		return "Uninitialized"
	case TypeInteger:
		return fmt.Sprintf("Integer(0x%X)", o.Integer)
	case TypeString:
		s := string(o.Bytes)
		if len(s) > 32 {
			s = s[:32] + "..."
		}
		return fmt.Sprintf("String(%q)", s)
	case TypeBuffer:
		var sb strings.Builder
		fmt.Fprintf(&sb, "Buffer(Length=%d, Content=", len(o.Bytes))
		sb.WriteString(joinHexBytes(o.Bytes[:min(len(o.Bytes), 8)], ' '))
		if len(o.Bytes) > 8 {
			sb.WriteString("...")
		}
		sb.WriteByte(')')
		return sb.String()
	case TypePackage:
		return fmt.Sprintf("Package(Length=%d)", len(o.Elements))
	case TypeBufferField:
		return fmt.Sprintf("BufferField(BitOffset=%d, BitLength=%d)", o.BufferField.BitOffset, o.BufferField.BitLength)
	case TypeFieldUnit:
		return fmt.Sprintf("FieldUnit(BitOffset=%d, BitLength=%d)", o.FieldUnit.BitOffset, o.FieldUnit.BitLength)
	case TypeMethod:
		return fmt.Sprintf("Method(ArgCount=%d, Serialized=%t)", o.Method.ArgCount, o.Method.Serialized)
	case TypeMutex:
		return fmt.Sprintf("Mutex(SyncLevel=%d)", o.Mutex.SyncLevel)
	case TypeOperationRegion:
		return fmt.Sprintf("OperationRegion(Space=%s, Offset=0x%X, Length=0x%X)", o.Region.Space, o.Region.Offset, o.Region.Length)
	case TypeObjectReference:
		if o.Target == nil {
			return "ObjectReference(nil)"
		}
		if o.Target.Flags&FlagNamed != 0 {
			return fmt.Sprintf("ObjectReference(%s)", o.Target.Path())
		}
		return fmt.Sprintf("ObjectReference(%s)", o.Target.Type)
	case TypeUnresolved:
		return fmt.Sprintf("Unresolved(%s)", o.Unresolved.Path)
	}

	if o.Flags&FlagNamed != 0 {
		return fmt.Sprintf("%s(%s)", o.Type, o.Path())
	}

	return o.Type.String()
}
