// Package object implements the AML runtime value model and the ACPI
// namespace tree that binds names to values.
package object

import (
	"gopheraml/kernel"
	"strconv"
	"strings"

	"github.com/google/btree"
)

// Type identifies the variant held by an Object. Types are bit flags so
// that a set of acceptable types can be passed to conversion routines as a
// single mask.
type Type uint32

// TypeUninitialized is the type of a freshly allocated object.
const TypeUninitialized Type = 0

// The list of supported object types.
const (
	TypeBuffer Type = 1 << iota
	TypeBufferField
	TypeDebugObject
	TypeDevice
	TypeEvent
	TypeFieldUnit
	TypeInteger
	TypeMethod
	TypeMutex
	TypeObjectReference
	TypeOperationRegion
	TypePackage
	TypePowerResource
	TypeProcessor
	TypeRawDataBuffer
	TypeString
	TypeThermalZone
	TypeAlias
	TypeUnresolved
	TypePredefinedScope
	TypeDDBHandle
)

// Type groups used by the conversion rules.
const (
	TypeComputationalData = TypeInteger | TypeString | TypeBuffer
	TypeDataObjects       = TypeComputationalData | TypePackage
	TypeDataRefObjects    = TypeDataObjects | TypeObjectReference | TypeDDBHandle
	TypeNamespaceScopes   = TypeDevice | TypeProcessor | TypePowerResource | TypeThermalZone | TypePredefinedScope
	TypeAll               = ^Type(0)
)

var typeNames = []struct {
	t    Type
	name string
}{
	{TypeBuffer, "Buffer"},
	{TypeBufferField, "BufferField"},
	{TypeDebugObject, "DebugObject"},
	{TypeDevice, "Device"},
	{TypeEvent, "Event"},
	{TypeFieldUnit, "FieldUnit"},
	{TypeInteger, "Integer"},
	{TypeMethod, "Method"},
	{TypeMutex, "Mutex"},
	{TypeObjectReference, "ObjectReference"},
	{TypeOperationRegion, "OperationRegion"},
	{TypePackage, "Package"},
	{TypePowerResource, "PowerResource"},
	{TypeProcessor, "Processor"},
	{TypeRawDataBuffer, "RawDataBuffer"},
	{TypeString, "String"},
	{TypeThermalZone, "ThermalZone"},
	{TypeAlias, "Alias"},
	{TypeUnresolved, "Unresolved"},
	{TypePredefinedScope, "PredefinedScope"},
	{TypeDDBHandle, "DDBHandle"},
}

// String implements fmt.Stringer for Type. Masks with more than one bit set
// are rendered as a '|' separated list.
func (t Type) String() string {
	if t == TypeUninitialized {
		return "Uninitialized"
	}

	var names []string
	for _, entry := range typeNames {
		if t&entry.t != 0 {
			names = append(names, entry.name)
		}
	}

	if len(names) == 0 {
		return "Unknown"
	}

	return strings.Join(names, "|")
}

// Flags holds per-object attributes.
type Flags uint8

// The list of supported object flags.
const (
	// FlagNamed is set once the object is bound to a namespace name.
	FlagNamed Flags = 1 << iota

	// FlagExceptionOnUse marks a synthesized value that raises an
	// exception the first time it is read.
	FlagExceptionOnUse
)

var (
	errIncompatibleType = &kernel.Error{Module: "acpi_aml_object", Message: "object already holds an incompatible type", Errno: kernel.EINVAL}
	errExceptionOnUse   = &kernel.Error{Module: "acpi_aml_object", Message: "use of an implicit method return value", Errno: kernel.EILSEQ}
	errAliasLoop        = &kernel.Error{Module: "acpi_aml_object", Message: "alias chain too deep", Errno: kernel.EOVERFLOW}
)

// Object is the universal AML runtime value. The Type field selects which
// of the payload fields are meaningful; setters keep the two in sync.
// Objects bound into the namespace also carry their name, a parent link and
// an ordered set of children.
type Object struct {
	Type  Type
	Flags Flags

	name     string
	parent   *Object
	children *btree.BTreeG[*Object]

	// Integer payload.
	Integer uint64

	// Buffer and String payload. Strings are stored without a trailing NUL.
	Bytes []byte

	// Package payload.
	Elements []*Object

	// ObjectReference and Alias payload. References never own their target.
	Target *Object

	Method        *Method
	Mutex         *Mutex
	Event         *Event
	Region        *Region
	FieldUnit     *FieldUnit
	BufferField   *BufferField
	Processor     *Processor
	PowerResource *PowerResource
	Unresolved    *Unresolved
}

// NativeFunc implements a method in Go rather than AML.
type NativeFunc func(args []*Object) (*Object, error)

// Method describes a control method.
type Method struct {
	ArgCount   uint8
	Serialized bool
	SyncLevel  uint8

	// Body holds the method TermList. It aliases the AML of its table.
	Body []byte

	// Table is the signature of the table defining the method.
	Table string

	// Native, if set, is invoked instead of Body.
	Native NativeFunc

	// Lock is the implicit mutex acquired while a serialized method runs.
	Lock *Object
}

// Mutex holds the bookkeeping for an AML mutex.
type Mutex struct {
	SyncLevel uint8

	// Owner identifies the caller chain holding the mutex; 0 means free.
	Owner uint64
	Depth uint32

	// SavedSyncLevel is the owner's sync level before the acquire.
	SavedSyncLevel uint8
}

// Event holds the signal count of an AML event.
type Event struct {
	Pending uint64
}

// RegionSpace describes the memory space where a region is located.
type RegionSpace uint8

// The list of supported RegionSpace values.
const (
	RegionSpaceSystemMemory RegionSpace = iota
	RegionSpaceSystemIO
	RegionSpacePCIConfig
	RegionSpaceEmbeddedControl
	RegionSpaceSMBus
	RegionSpaceSystemCMOS
	RegionSpacePCIBarTarget
	RegionSpaceIPMI
	RegionSpaceGeneralPurposeIO
	RegionSpaceGenericSerialBus
	RegionSpacePCC
)

var regionSpaceNames = [...]string{
	"SystemMemory", "SystemIO", "PCI_Config", "EmbeddedControl", "SMBus",
	"SystemCMOS", "PciBarTarget", "IPMI", "GeneralPurposeIO",
	"GenericSerialBus", "PCC",
}

// String implements fmt.Stringer for RegionSpace.
func (s RegionSpace) String() string {
	if int(s) < len(regionSpaceNames) {
		return regionSpaceNames[s]
	}

	return "OEMDefined"
}

// Region defines a region located at a particular space (e.g in memory, an
// embedded controller, the SMBus e.t.c).
type Region struct {
	Space  RegionSpace
	Offset uint64
	Length uint64

	// Data, if set, backs the region directly (a DataTableRegion).
	Data []byte
}

// AccessType specifies the type of access (byte, word, e.t.c) used to
// read/write a field unit.
type AccessType uint8

// The list of supported AccessType values.
const (
	AccessAny AccessType = iota
	AccessByte
	AccessWord
	AccessDWord
	AccessQWord
	AccessBuffer
)

// UpdateRule specifies how a field value is updated when a write uses
// a value with a smaller width than the field.
type UpdateRule uint8

// The list of supported UpdateRule values.
const (
	UpdatePreserve UpdateRule = iota
	UpdateWriteAsOnes
	UpdateWriteAsZeros
)

// FieldFlags decodes a FieldFlags byte.
//
// Grammar:
// FieldFlags := ByteData // bit 0-3: AccessType
//                        // bit 4: LockRule
//                        // bit 5-6: UpdateRule
func FieldFlags(b byte) (AccessType, bool, UpdateRule) {
	return AccessType(b & 0x0f), b&0x10 != 0, UpdateRule((b >> 5) & 0x3)
}

// FieldKind distinguishes the three field declarations.
type FieldKind uint8

// The list of supported FieldKind values.
const (
	FieldKindRegion FieldKind = iota
	FieldKindIndex
	FieldKindBank
)

// FieldUnit describes a sub-range of an operation region (or of an
// index/data register pair).
type FieldUnit struct {
	Kind FieldKind

	// Region is set for FieldKindRegion and FieldKindBank.
	Region *Object

	// Index and Data are set for FieldKindIndex.
	Index *Object
	Data  *Object

	// Bank and BankValue are set for FieldKindBank.
	Bank      *Object
	BankValue uint64

	BitOffset uint64
	BitLength uint64

	AccessType   AccessType
	LockRule     bool
	UpdateRule   UpdateRule
	AccessAttrib uint8
	AccessLength uint8
}

// BufferField describes a bit window into a Buffer or String object.
type BufferField struct {
	Source    *Object
	BitOffset uint64
	BitLength uint64
}

// Processor describes a (deprecated) processor declaration.
type Processor struct {
	ID           uint8
	BlockAddress uint32
	BlockLength  uint8
}

// PowerResource describes a power resource declaration.
type PowerResource struct {
	SystemLevel   uint8
	ResourceOrder uint16
}

// Unresolved is a placeholder for a name that could not be looked up when
// it was parsed.
type Unresolved struct {
	Path  string
	Scope *Object
}

// New returns a new Uninitialized object.
func New() *Object {
	return &Object{}
}

// NewInteger returns a new Integer object masked to the active width.
func NewInteger(v uint64) *Object {
	return &Object{Type: TypeInteger, Integer: v & IntegerOnes()}
}

// NewString returns a new String object.
func NewString(s string) *Object {
	return &Object{Type: TypeString, Bytes: []byte(s)}
}

// NewBuffer returns a new Buffer object holding a copy of b.
func NewBuffer(b []byte) *Object {
	return &Object{Type: TypeBuffer, Bytes: append([]byte{}, b...)}
}

// NewPackage returns a new Package object that owns elems.
func NewPackage(elems ...*Object) *Object {
	return &Object{Type: TypePackage, Elements: elems}
}

// NewReference returns a new ObjectReference pointing to target.
func NewReference(target *Object) *Object {
	return &Object{Type: TypeObjectReference, Target: target}
}

// NewAlias returns a new Alias for target.
func NewAlias(target *Object) *Object {
	return &Object{Type: TypeAlias, Target: target}
}

// NewDebugObject returns the Debug pseudo-object.
func NewDebugObject() *Object {
	return &Object{Type: TypeDebugObject}
}

// NewScope returns a predefined scope such as the root or \_SB_.
func NewScope() *Object {
	return &Object{Type: TypePredefinedScope}
}

// NewDevice returns a new Device object.
func NewDevice() *Object {
	return &Object{Type: TypeDevice}
}

// NewThermalZone returns a new ThermalZone object.
func NewThermalZone() *Object {
	return &Object{Type: TypeThermalZone}
}

// NewMethod returns a new Method object.
func NewMethod(m Method) *Object {
	return &Object{Type: TypeMethod, Method: &m}
}

// NewMutex returns a new Mutex declared at syncLevel.
func NewMutex(syncLevel uint8) *Object {
	return &Object{Type: TypeMutex, Mutex: &Mutex{SyncLevel: syncLevel}}
}

// NewEvent returns a new Event object.
func NewEvent() *Object {
	return &Object{Type: TypeEvent, Event: &Event{}}
}

// NewRegion returns a new OperationRegion object.
func NewRegion(r Region) *Object {
	return &Object{Type: TypeOperationRegion, Region: &r}
}

// NewFieldUnit returns a new FieldUnit object.
func NewFieldUnit(f FieldUnit) *Object {
	return &Object{Type: TypeFieldUnit, FieldUnit: &f}
}

// NewBufferField returns a new BufferField over source.
func NewBufferField(source *Object, bitOffset, bitLength uint64) *Object {
	return &Object{Type: TypeBufferField, BufferField: &BufferField{Source: source, BitOffset: bitOffset, BitLength: bitLength}}
}

// NewProcessor returns a new Processor object.
func NewProcessor(p Processor) *Object {
	return &Object{Type: TypeProcessor, Processor: &p}
}

// NewPowerResource returns a new PowerResource object.
func NewPowerResource(p PowerResource) *Object {
	return &Object{Type: TypePowerResource, PowerResource: &p}
}

// NewUnresolved returns a placeholder for path as seen from scope.
func NewUnresolved(path string, scope *Object) *Object {
	return &Object{Type: TypeUnresolved, Unresolved: &Unresolved{Path: path, Scope: scope}}
}

// NewLocal returns the Uninitialized object backing LocalN. It is named
// LOC<n> but never bound to a scope.
func NewLocal(n int) *Object {
	return &Object{name: "LOC" + strconv.Itoa(n)}
}

// NewArg returns an unbound object backing ArgN, named ARG<n>.
func NewArg(n int) *Object {
	return &Object{name: "ARG" + strconv.Itoa(n)}
}

// BindUnresolved turns an Unresolved placeholder into an ObjectReference
// once the name it stands for exists. It returns false if o is not a
// placeholder or the name still cannot be found.
func (o *Object) BindUnresolved() bool {
	if o.Type != TypeUnresolved {
		return false
	}

	target := Find(o.Unresolved.Scope, o.Unresolved.Path)
	if target == nil {
		return false
	}

	o.reset(TypeObjectReference)
	o.Target = target
	return true
}

// reset drops the current payload and switches the object to type t. The
// name, parent and children are kept.
func (o *Object) reset(t Type) {
	*o = Object{
		Type:     t,
		Flags:    o.Flags &^ FlagExceptionOnUse,
		name:     o.name,
		parent:   o.parent,
		children: o.children,
	}
}

func (o *Object) canSet(t Type) error {
	if o.Type != TypeUninitialized && o.Type != t {
		return errIncompatibleType
	}

	return nil
}

// SetInteger stores v (masked to the active width) into an Uninitialized or
// Integer object.
func (o *Object) SetInteger(v uint64) error {
	if err := o.canSet(TypeInteger); err != nil {
		return err
	}

	o.reset(TypeInteger)
	o.Integer = v & IntegerOnes()
	return nil
}

// SetString stores s into an Uninitialized or String object.
func (o *Object) SetString(s string) error {
	if err := o.canSet(TypeString); err != nil {
		return err
	}

	o.reset(TypeString)
	o.Bytes = []byte(s)
	return nil
}

// SetStringEmpty turns the object into a String of n NUL characters.
func (o *Object) SetStringEmpty(n int) error {
	if err := o.canSet(TypeString); err != nil {
		return err
	}

	o.reset(TypeString)
	o.Bytes = make([]byte, n)
	return nil
}

// SetBuffer stores a copy of b into an Uninitialized or Buffer object.
func (o *Object) SetBuffer(b []byte) error {
	if err := o.canSet(TypeBuffer); err != nil {
		return err
	}

	o.reset(TypeBuffer)
	o.Bytes = append([]byte{}, b...)
	return nil
}

// SetBufferEmpty turns the object into a zero-filled Buffer of n bytes.
func (o *Object) SetBufferEmpty(n int) error {
	if err := o.canSet(TypeBuffer); err != nil {
		return err
	}

	o.reset(TypeBuffer)
	o.Bytes = make([]byte, n)
	return nil
}

// SetPackage turns the object into a Package of n Uninitialized elements.
func (o *Object) SetPackage(n int) error {
	if err := o.canSet(TypePackage); err != nil {
		return err
	}

	o.reset(TypePackage)
	o.Elements = make([]*Object, n)
	for i := range o.Elements {
		o.Elements[i] = New()
	}
	return nil
}

// SetReference turns the object into an ObjectReference to target.
func (o *Object) SetReference(target *Object) error {
	if err := o.canSet(TypeObjectReference); err != nil {
		return err
	}

	o.reset(TypeObjectReference)
	o.Target = target
	return nil
}

// SetDebugObject turns the object into the Debug pseudo-object.
func (o *Object) SetDebugObject() error {
	if err := o.canSet(TypeDebugObject); err != nil {
		return err
	}

	o.reset(TypeDebugObject)
	return nil
}

// String returns the String payload as a Go string.
func (o *Object) String() string {
	return string(o.Bytes)
}

// CheckUse reports an error, and clears the flag, if the object was
// produced as a placeholder return value.
func (o *Object) CheckUse() error {
	if o.Flags&FlagExceptionOnUse == 0 {
		return nil
	}

	o.Flags &^= FlagExceptionOnUse
	return errExceptionOnUse
}

// maxAliasDepth bounds alias chains so cyclic aliases cannot hang lookups.
const maxAliasDepth = 32

// Resolve follows Alias objects to their final target.
func (o *Object) Resolve() (*Object, error) {
	for depth := 0; o != nil && o.Type == TypeAlias; depth++ {
		if depth == maxAliasDepth {
			return nil, errAliasLoop
		}
		o = o.Target
	}

	return o, nil
}

// Deref follows Alias objects and ObjectReferences to the referenced
// value. It is the single place implementing the automatic dereference rule
// for Arg and Local reads.
func (o *Object) Deref() (*Object, error) {
	for depth := 0; o != nil && (o.Type == TypeAlias || o.Type == TypeObjectReference); depth++ {
		if depth == maxAliasDepth {
			return nil, errAliasLoop
		}
		o = o.Target
	}

	return o, nil
}
