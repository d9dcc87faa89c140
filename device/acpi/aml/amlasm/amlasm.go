// Package amlasm provides a small AML assembler. It emits byte-exact
// encodings for the subset of the AML grammar needed to describe test
// namespaces, fixtures for the host tool and synthetic DSDTs.
//
// Builders are chained; nested constructs take other builders as operands:
//
//	body := amlasm.New().
//		Name("FOO_", amlasm.Int(42)).
//		Method("MAIN", 0, false, 0, amlasm.New().
//			Return(amlasm.Expr(parser.OpAdd, amlasm.Path("FOO_"), amlasm.Int(1), nil)))
package amlasm

import (
	"bytes"
	"encoding/binary"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"gopheraml/device/acpi/table"
	"gopheraml/kernel"
)

var (
	errBadLocal    = &kernel.Error{Module: "acpi_aml_asm", Message: "local index out of range", Errno: kernel.EINVAL}
	errBadArg      = &kernel.Error{Module: "acpi_aml_asm", Message: "arg index out of range", Errno: kernel.EINVAL}
	errBadArgCount = &kernel.Error{Module: "acpi_aml_asm", Message: "methods accept at most 7 args", Errno: kernel.EINVAL}
	errBadString   = &kernel.Error{Module: "acpi_aml_asm", Message: "strings must be ASCII without NUL characters", Errno: kernel.EINVAL}
)

// AML accumulates encoded AML bytes. The first encoding error is kept and
// reported by Err and Table.
type AML struct {
	buf bytes.Buffer
	err error
}

// New returns an empty builder.
func New() *AML {
	return &AML{}
}

// Bytes returns the encoded bytes.
func (a *AML) Bytes() []byte {
	return a.buf.Bytes()
}

// Err returns the first error encountered while encoding.
func (a *AML) Err() error {
	return a.err
}

// Len returns the number of encoded bytes.
func (a *AML) Len() int {
	return a.buf.Len()
}

func (a *AML) fail(err error) *AML {
	if a.err == nil {
		a.err = err
	}
	return a
}

// Append copies the contents of each inner builder. A nil builder is
// encoded as a NullName, which is how an omitted Target is written.
func (a *AML) Append(inner ...*AML) *AML {
	for _, in := range inner {
		if in == nil {
			a.buf.WriteByte(0x00)
			continue
		}

		if in.err != nil {
			a.fail(in.err)
		}
		a.buf.Write(in.buf.Bytes())
	}

	return a
}

// Raw appends bytes verbatim.
func (a *AML) Raw(b ...byte) *AML {
	a.buf.Write(b)
	return a
}

// Op appends an opcode, emitting the extended prefix when needed.
func (a *AML) Op(op parser.Opcode) *AML {
	if op > 0xff {
		a.buf.WriteByte(parser.ExtOpPrefix)
		a.buf.WriteByte(byte(op - 0xff))
		return a
	}

	a.buf.WriteByte(byte(op))
	return a
}

func orEmpty(b *AML) *AML {
	if b == nil {
		return New()
	}
	return b
}

// pkg emits op followed by a PkgLength covering content.
func (a *AML) pkg(op parser.Opcode, content *AML) *AML {
	if content.err != nil {
		return a.fail(content.err)
	}

	pkgLen, err := parser.EncodePkgLength(content.Len())
	if err != nil {
		return a.fail(err)
	}

	a.Op(op)
	a.buf.Write(pkgLen)
	a.buf.Write(content.Bytes())
	return a
}

// Path appends a NameString.
func (a *AML) Path(path string) *AML {
	enc, err := parser.EncodeNameString(path)
	if err != nil {
		return a.fail(err)
	}

	a.buf.Write(enc)
	return a
}

// Zero appends ZeroOp.
func (a *AML) Zero() *AML { return a.Op(parser.OpZero) }

// One appends OneOp.
func (a *AML) One() *AML { return a.Op(parser.OpOne) }

// Ones appends OnesOp.
func (a *AML) Ones() *AML { return a.Op(parser.OpOnes) }

// Byte appends a ByteConst.
func (a *AML) Byte(v uint8) *AML {
	a.Op(parser.OpBytePrefix)
	a.buf.WriteByte(v)
	return a
}

// Word appends a WordConst.
func (a *AML) Word(v uint16) *AML {
	a.Op(parser.OpWordPrefix)
	a.buf.Write(binary.LittleEndian.AppendUint16(nil, v))
	return a
}

// DWord appends a DWordConst.
func (a *AML) DWord(v uint32) *AML {
	a.Op(parser.OpDwordPrefix)
	a.buf.Write(binary.LittleEndian.AppendUint32(nil, v))
	return a
}

// QWord appends a QWordConst.
func (a *AML) QWord(v uint64) *AML {
	a.Op(parser.OpQwordPrefix)
	a.buf.Write(binary.LittleEndian.AppendUint64(nil, v))
	return a
}

// Integer appends v using the shortest encoding.
func (a *AML) Integer(v uint64) *AML {
	switch {
	case v == 0:
		return a.Zero()
	case v == 1:
		return a.One()
	case v <= 0xff:
		return a.Byte(uint8(v))
	case v <= 0xffff:
		return a.Word(uint16(v))
	case v <= 0xffffffff:
		return a.DWord(uint32(v))
	default:
		return a.QWord(v)
	}
}

// String appends a NUL terminated String.
func (a *AML) String(s string) *AML {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] > 0x7f {
			return a.fail(errBadString)
		}
	}

	a.Op(parser.OpStringPrefix)
	a.buf.WriteString(s)
	a.buf.WriteByte(0)
	return a
}

// EISAName appends the compressed form of a 7 character EISA id.
func (a *AML) EISAName(id string) *AML {
	v, err := object.EISAIDFromString(id)
	if err != nil {
		return a.fail(err)
	}

	return a.DWord(v)
}

// Buffer appends a DefBuffer with an explicit size term; when size is nil
// the length of data is used.
func (a *AML) Buffer(size *AML, data []byte) *AML {
	if size == nil {
		size = Int(uint64(len(data)))
	}

	return a.pkg(parser.OpBuffer, New().Append(size).Raw(data...))
}

// Package appends a DefPackage holding elems.
func (a *AML) Package(elems ...*AML) *AML {
	if len(elems) > 0xff {
		return a.VarPackage(Int(uint64(len(elems))), elems...)
	}

	return a.pkg(parser.OpPackage, New().Raw(byte(len(elems))).Append(elems...))
}

// VarPackage appends a DefVarPackage whose element count is a term.
func (a *AML) VarPackage(count *AML, elems ...*AML) *AML {
	return a.pkg(parser.OpVarPackage, New().Append(count).Append(elems...))
}

// Local appends LocalN.
func (a *AML) Local(n int) *AML {
	if n < 0 || n > 7 {
		return a.fail(errBadLocal)
	}

	return a.Op(parser.OpLocal0 + parser.Opcode(n))
}

// Arg appends ArgN.
func (a *AML) Arg(n int) *AML {
	if n < 0 || n > 6 {
		return a.fail(errBadArg)
	}

	return a.Op(parser.OpArg0 + parser.Opcode(n))
}

// Debug appends the Debug object.
func (a *AML) Debug() *AML { return a.Op(parser.OpDebug) }

// Expr appends op followed by its operands in order. A nil operand is
// encoded as a NullName.
func (a *AML) Expr(op parser.Opcode, operands ...*AML) *AML {
	return a.Op(op).Append(operands...)
}

// Call appends a method invocation.
func (a *AML) Call(path string, args ...*AML) *AML {
	return a.Path(path).Append(args...)
}

// Table wraps body into a complete, checksummed ACPI table.
func Table(signature string, revision uint8, body *AML) (*table.Table, error) {
	if body.err != nil {
		return nil, body.err
	}

	raw, err := table.Build(signature, revision, table.DefaultOEMInfo, body.Bytes())
	if err != nil {
		return nil, err
	}

	return table.Unmarshal(raw)
}

// Int returns a builder holding an Integer constant.
func Int(v uint64) *AML { return New().Integer(v) }

// Str returns a builder holding a String constant.
func Str(s string) *AML { return New().String(s) }

// Path returns a builder holding a NameString.
func Path(path string) *AML { return New().Path(path) }

// Local returns a builder holding LocalN.
func Local(n int) *AML { return New().Local(n) }

// Arg returns a builder holding ArgN.
func Arg(n int) *AML { return New().Arg(n) }

// Debug returns a builder holding the Debug object.
func Debug() *AML { return New().Debug() }

// Expr returns a builder holding a single expression.
func Expr(op parser.Opcode, operands ...*AML) *AML { return New().Expr(op, operands...) }

// Call returns a builder holding a method invocation.
func Call(path string, args ...*AML) *AML { return New().Call(path, args...) }

// Buf returns a builder holding a Buffer initialized with data.
func Buf(data ...byte) *AML { return New().Buffer(nil, data) }

// Pkg returns a builder holding a Package.
func Pkg(elems ...*AML) *AML { return New().Package(elems...) }
