package parser

import (
	"gopheraml/kernel"
	"strings"
)

const (
	rootChar         = '\\'
	parentPrefixChar = '^'
	dualNamePrefix   = 0x2e
	multiNamePrefix  = 0x2f
	nullName         = 0x00
)

var (
	errInvalidNameSeg   = &kernel.Error{Module: "acpi_aml_parser", Message: "invalid NameSeg", Errno: kernel.EILSEQ}
	errInvalidSegCount  = &kernel.Error{Module: "acpi_aml_parser", Message: "MultiNamePath with zero segments", Errno: kernel.EILSEQ}
	errInvalidNamedPath = &kernel.Error{Module: "acpi_aml_parser", Message: "invalid NameString", Errno: kernel.EILSEQ}
)

// IsLeadNameChar returns true if b can start a NameSeg.
func IsLeadNameChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || b == '_'
}

// IsNameChar returns true if b can appear in a NameSeg after its first char.
func IsNameChar(b byte) bool {
	return IsLeadNameChar(b) || (b >= '0' && b <= '9')
}

// IsNameStringStart returns true if b is a valid first byte for a
// non-null NameString.
func IsNameStringStart(b byte) bool {
	switch b {
	case rootChar, parentPrefixChar, dualNamePrefix, multiNamePrefix:
		return true
	default:
		return IsLeadNameChar(b)
	}
}

// ValidNameSeg reports whether seg is a well-formed 4-character NameSeg.
func ValidNameSeg(seg string) bool {
	if len(seg) != 4 || !IsLeadNameChar(seg[0]) {
		return false
	}

	for i := 1; i < 4; i++ {
		if !IsNameChar(seg[i]) {
			return false
		}
	}

	return true
}

// ReadNameSeg reads a single 4-character NameSeg.
//
// Grammar:
// NameSeg := <LeadNameChar NameChar NameChar NameChar>
func (r *Reader) ReadNameSeg() (string, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return "", err
	}

	seg := string(b)
	if !ValidNameSeg(seg) {
		return "", errInvalidNameSeg
	}

	return seg, nil
}

// ReadNameString parses a NameString from the AML bytestream. Multi-segment
// paths are returned with a '.' between segments so scoped lookups can
// split them; a NullName yields an empty string.
//
// Grammar:
// NameString := RootChar NamePath | PrefixPath NamePath
// PrefixPath := Nothing | '^' PrefixPath
// NamePath := NameSeg | DualNamePath | MultiNamePath | NullName
func (r *Reader) ReadNameString() (string, error) {
	var str strings.Builder

	next, err := r.PeekByte()
	if err != nil {
		return "", err
	}

	switch next {
	case rootChar:
		str.WriteByte(next)
		r.offset++
	case parentPrefixChar:
		for next == parentPrefixChar {
			str.WriteByte(next)
			r.offset++

			if next, err = r.PeekByte(); err != nil {
				return "", err
			}
		}
	}

	next, err = r.ReadByte()
	if err != nil {
		return "", err
	}

	var segCount int
	switch next {
	case nullName:
		return str.String(), nil
	case dualNamePrefix:
		segCount = 2
	case multiNamePrefix:
		count, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if count == 0 {
			return "", errInvalidSegCount
		}
		segCount = int(count)
	default:
		if !IsLeadNameChar(next) {
			return "", errInvalidNamedPath
		}
		_ = r.UnreadByte()
		segCount = 1
	}

	for i := 0; i < segCount; i++ {
		seg, err := r.ReadNameSeg()
		if err != nil {
			return "", err
		}

		if i > 0 {
			str.WriteByte('.')
		}
		str.WriteString(seg)
	}

	return str.String(), nil
}

// EncodeNameString converts a dotted path such as `\_SB_.PCI0` or `^FOO`
// into its AML encoding. Segments shorter than 4 characters are padded
// with '_'.
func EncodeNameString(path string) ([]byte, error) {
	var out []byte

	for len(path) > 0 && (path[0] == rootChar || path[0] == parentPrefixChar) {
		out = append(out, path[0])
		path = path[1:]
	}

	if path == "" {
		return append(out, nullName), nil
	}

	segs := strings.Split(path, ".")
	switch {
	case len(segs) == 2:
		out = append(out, dualNamePrefix)
	case len(segs) > 2:
		if len(segs) > 0xff {
			return nil, errInvalidNamedPath
		}
		out = append(out, multiNamePrefix, byte(len(segs)))
	}

	for _, seg := range segs {
		if len(seg) == 0 || len(seg) > 4 {
			return nil, errInvalidNameSeg
		}

		seg += strings.Repeat("_", 4-len(seg))
		if !ValidNameSeg(seg) {
			return nil, errInvalidNameSeg
		}
		out = append(out, seg...)
	}

	return out, nil
}
