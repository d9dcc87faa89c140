package vm

import (
	"bytes"
	"fmt"
	"gopheraml/kernel"
)

var (
	errBadOpcode          = &kernel.Error{Module: "acpi_aml_vm", Message: "invalid or unsupported AML opcode", Errno: kernel.EILSEQ}
	errBadTerm            = &kernel.Error{Module: "acpi_aml_vm", Message: "term overruns the enclosing package", Errno: kernel.EILSEQ}
	errNameNotFound       = &kernel.Error{Module: "acpi_aml_vm", Message: "name not found in namespace", Errno: kernel.ENOENT}
	errNameExists         = &kernel.Error{Module: "acpi_aml_vm", Message: "name already defined in scope", Errno: kernel.EEXIST}
	errBadScope           = &kernel.Error{Module: "acpi_aml_vm", Message: "target is not a namespace scope", Errno: kernel.EINVAL}
	errUnboundArg         = &kernel.Error{Module: "acpi_aml_vm", Message: "read of an unbound method arg", Errno: kernel.EILSEQ}
	errUninitializedLocal = &kernel.Error{Module: "acpi_aml_vm", Message: "read of an uninitialized local", Errno: kernel.EILSEQ}
	errArgCount           = &kernel.Error{Module: "acpi_aml_vm", Message: "argument count does not match the method declaration", Errno: kernel.EINVAL}
	errNotMethod          = &kernel.Error{Module: "acpi_aml_vm", Message: "object is not a control method", Errno: kernel.EINVAL}
	errOperandType        = &kernel.Error{Module: "acpi_aml_vm", Message: "operand has an unsupported type", Errno: kernel.EINVAL}
	errBadTarget          = &kernel.Error{Module: "acpi_aml_vm", Message: "operand is not a valid store target", Errno: kernel.EINVAL}
	errDivideByZero       = &kernel.Error{Module: "acpi_aml_vm", Message: "division by zero", Errno: kernel.EINVAL}
	errIndexOutOfRange    = &kernel.Error{Module: "acpi_aml_vm", Message: "index out of range", Errno: kernel.ERANGE}
	errBufferLimit        = &kernel.Error{Module: "acpi_aml_vm", Message: "field exceeds the bounds of its buffer", Errno: kernel.ERANGE}
	errCallDepth          = &kernel.Error{Module: "acpi_aml_vm", Message: "maximum method call depth exceeded", Errno: kernel.EOVERFLOW}
	errNesting            = &kernel.Error{Module: "acpi_aml_vm", Message: "maximum term nesting exceeded", Errno: kernel.EOVERFLOW}
	errLoopLimit          = &kernel.Error{Module: "acpi_aml_vm", Message: "while loop iteration limit exceeded", Errno: kernel.EOVERFLOW}
	errBreakOutsideLoop   = &kernel.Error{Module: "acpi_aml_vm", Message: "break or continue outside of a while loop", Errno: kernel.EILSEQ}
	errNoTables           = &kernel.Error{Module: "acpi_aml_vm", Message: "no DSDT available", Errno: kernel.ENOENT}
	errTableNotFound      = &kernel.Error{Module: "acpi_aml_vm", Message: "no table matches the DataTableRegion arguments", Errno: kernel.ENOENT}
	errNotImplemented     = &kernel.Error{Module: "acpi_aml_vm", Message: "dynamic table loading is not supported", Errno: kernel.ENOSYS}
	errInternal           = &kernel.Error{Module: "acpi_aml_vm", Message: "internal interpreter error", Errno: kernel.EIO}
	errFatal              = &kernel.Error{Module: "acpi_aml_vm", Message: "firmware requested a fatal shutdown", Errno: kernel.EIO}
	errBadHandler         = &kernel.Error{Module: "acpi_aml_vm", Message: "exception handlers must be non-nil comparable values", Errno: kernel.EINVAL}
	errHandlerExists      = &kernel.Error{Module: "acpi_aml_vm", Message: "exception handler already registered", Errno: kernel.EEXIST}

	errMutexOrder       = &kernel.Error{Module: "acpi_aml_mutex", Message: "sync level violation", Errno: kernel.EDEADLK}
	errMutexNotOwner    = &kernel.Error{Module: "acpi_aml_mutex", Message: "mutex is not owned by the caller", Errno: kernel.EPERM}
	errMutexDeadlock    = &kernel.Error{Module: "acpi_aml_mutex", Message: "mutex is held by another caller", Errno: kernel.EDEADLK}
	errMutexReleaseLIFO = &kernel.Error{Module: "acpi_aml_mutex", Message: "mutexes must be released in reverse acquisition order", Errno: kernel.EDEADLK}
	errNotMutex         = &kernel.Error{Module: "acpi_aml_mutex", Message: "object is not a mutex", Errno: kernel.EINVAL}
	errNotEvent         = &kernel.Error{Module: "acpi_aml_mutex", Message: "object is not an event", Errno: kernel.EINVAL}

	errNoRegionHandler = &kernel.Error{Module: "acpi_aml_region", Message: "no handler registered for region space", Errno: kernel.ENOSYS}
	errRegionLimit     = &kernel.Error{Module: "acpi_aml_region", Message: "access outside of the operation region", Errno: kernel.ERANGE}
	errAccessWidth     = &kernel.Error{Module: "acpi_aml_region", Message: "unsupported region access width", Errno: kernel.EINVAL}
	errNotRegion       = &kernel.Error{Module: "acpi_aml_region", Message: "field refers to an object that is not an operation region", Errno: kernel.EINVAL}
	errNotField        = &kernel.Error{Module: "acpi_aml_region", Message: "index, data and bank registers must be field units", Errno: kernel.EINVAL}
	errFieldValue      = &kernel.Error{Module: "acpi_aml_region", Message: "field units accept Integer or Buffer values", Errno: kernel.EINVAL}
)

// frame contains information about the location within a method and the
// actual AML opcode that the VM was processing when an error occurred. It
// also contains the method name and the ACPI table that defined it.
type frame struct {
	table  string
	method string
	offset uint32
	instr  string
}

// Error describes errors that occur while executing AML code. It wraps the
// underlying *kernel.Error so errors.Is keeps working on the error class.
type Error struct {
	Err error

	// trace contains a list of trace entries that correspond to the AML method
	// invocations up to the point where an error occurred. To construct the
	// correct execution tree from a Trace, its entries must be processed in
	// LIFO order.
	trace []*frame
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns a formatted stack trace for this error.
func (e *Error) StackTrace() string {
	if len(e.trace) == 0 {
		return "No stack trace available"
	}

	var buf bytes.Buffer
	buf.WriteString("Stack trace:\n")

	// We need to process the trace list in LIFO order.
	for index, offset := 0, len(e.trace)-1; index < len(e.trace); index, offset = index+1, offset-1 {
		entry := e.trace[offset]
		fmt.Fprintf(&buf, "[%3x] [%s] [%s():0x%x] opcode: %s\n", index, entry.table, entry.method, entry.offset, entry.instr)
	}

	return buf.String()
}

// withFrame appends f to the trace carried by err, wrapping err in an
// *Error first if needed.
func withFrame(err error, f *frame) error {
	vmErr, ok := err.(*Error)
	if !ok {
		vmErr = &Error{Err: err}
	}

	vmErr.trace = append(vmErr.trace, f)
	return vmErr
}

// fillTrace populates missing data in the captured trace till we reach a
// frame that has its table name field populated.
func fillTrace(err error, tableName, method string) {
	vmErr, ok := err.(*Error)
	if !ok {
		return
	}

	for index := len(vmErr.trace) - 1; index >= 0; index-- {
		if vmErr.trace[index].table != "" {
			break
		}

		vmErr.trace[index].table = tableName
		vmErr.trace[index].method = method
	}
}
