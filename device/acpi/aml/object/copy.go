package object

import "gopheraml/kernel"

var (
	errNotCopyable   = &kernel.Error{Module: "acpi_aml_object", Message: "object type cannot be copied", Errno: kernel.EINVAL}
	errUninitialized = &kernel.Error{Module: "acpi_aml_object", Message: "source object is uninitialized", Errno: kernel.EINVAL}
)

// maxCopyDepth bounds package nesting during deep copies.
const maxCopyDepth = 64

// CopyDataAndType performs a deep copy of src into dst: dst takes the type
// of src and receives its own copy of any String, Buffer or Package
// content. Only data objects and references can be copied. The name,
// parent and children of dst are kept.
func CopyDataAndType(dst, src *Object) error {
	return copyDataAndType(dst, src, 0)
}

func copyDataAndType(dst, src *Object, depth int) error {
	if depth > maxCopyDepth {
		return errNotCopyable
	}

	if src == dst {
		return nil
	}

	switch src.Type {
	case TypeInteger:
		dst.reset(TypeInteger)
		dst.Integer = src.Integer
	case TypeString, TypeBuffer:
		b := append([]byte{}, src.Bytes...)
		dst.reset(src.Type)
		dst.Bytes = b
	case TypePackage:
		elems := make([]*Object, len(src.Elements))
		for i, elem := range src.Elements {
			elems[i] = New()
			if elem.Type == TypeUninitialized {
				continue
			}

			if err := copyDataAndType(elems[i], elem, depth+1); err != nil {
				return err
			}
		}
		dst.reset(TypePackage)
		dst.Elements = elems
	case TypeObjectReference:
		target := src.Target
		dst.reset(TypeObjectReference)
		dst.Target = target
	case TypeUnresolved:
		u := *src.Unresolved
		dst.reset(TypeUnresolved)
		dst.Unresolved = &u
	case TypeUninitialized:
		return errUninitialized
	default:
		return errNotCopyable
	}

	return nil
}

// Clone returns a deep copy of src as a new unnamed object.
func Clone(src *Object) (*Object, error) {
	dst := New()
	if err := CopyDataAndType(dst, src); err != nil {
		return nil, err
	}

	return dst, nil
}

// CopyObject copies src into dst in place. If dst is an ObjectReference
// the copy is made into the referenced target so the target keeps its
// identity; this is the behavior used for Args bound to references.
func CopyObject(dst, src *Object) error {
	if src.Type == TypeUninitialized {
		return errUninitialized
	}

	if dst.Type == TypeObjectReference {
		if dst.Target == nil {
			return errUninitialized
		}
		return CopyDataAndType(dst.Target, src)
	}

	return CopyDataAndType(dst, src)
}
