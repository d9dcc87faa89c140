package vm

import (
	"fmt"
	"reflect"
)

// Exception is an AML exception code. The numeric values match the ones
// used by ACPICA so that firmware test suites can check them.
type Exception uint32

// The list of supported exception codes.
const (
	ExceptionOK       Exception = 0x0000
	ExceptionError    Exception = 0x0001
	ExceptionNotFound Exception = 0x0005

	// ExceptionParse has no ACPICA counterpart; it takes the base of the
	// AML exception group.
	ExceptionParse Exception = 0x3000

	ExceptionBadOpcode           Exception = 0x3001
	ExceptionNoOperand           Exception = 0x3002
	ExceptionOperandType         Exception = 0x3003
	ExceptionOperandValue        Exception = 0x3004
	ExceptionUninitializedLocal  Exception = 0x3005
	ExceptionUninitializedArg    Exception = 0x3006
	ExceptionUninitializedElem   Exception = 0x3007
	ExceptionNumericOverflow     Exception = 0x3008
	ExceptionRegionLimit         Exception = 0x3009
	ExceptionBufferLimit         Exception = 0x300a
	ExceptionPackageLimit        Exception = 0x300b
	ExceptionDivideByZero        Exception = 0x300c
	ExceptionBadName             Exception = 0x300d
	ExceptionNameNotFound        Exception = 0x300e
	ExceptionInternal            Exception = 0x300f
	ExceptionInvalidSpaceID      Exception = 0x3010
	ExceptionStringLimit         Exception = 0x3011
	ExceptionNoReturnValue       Exception = 0x3012
	ExceptionMethodLimit         Exception = 0x3013
	ExceptionNotOwner            Exception = 0x3014
	ExceptionMutexOrder          Exception = 0x3015
	ExceptionMutexNotAcquired    Exception = 0x3016
	ExceptionInvalidResourceType Exception = 0x3017
	ExceptionInvalidIndex        Exception = 0x3018
	ExceptionRegisterLimit       Exception = 0x3019
	ExceptionNoWhile             Exception = 0x301a
	ExceptionAlignment           Exception = 0x301b
	ExceptionNoResourceEndTag    Exception = 0x301c
	ExceptionBadResourceValue    Exception = 0x301d
	ExceptionCircularReference   Exception = 0x301e
)

var exceptionNames = map[Exception]string{
	ExceptionOK:                  "AE_OK",
	ExceptionError:               "AE_ERROR",
	ExceptionNotFound:            "AE_NOT_FOUND",
	ExceptionParse:               "AE_AML_PARSE",
	ExceptionBadOpcode:           "AE_AML_BAD_OPCODE",
	ExceptionNoOperand:           "AE_AML_NO_OPERAND",
	ExceptionOperandType:         "AE_AML_OPERAND_TYPE",
	ExceptionOperandValue:        "AE_AML_OPERAND_VALUE",
	ExceptionUninitializedLocal:  "AE_AML_UNINITIALIZED_LOCAL",
	ExceptionUninitializedArg:    "AE_AML_UNINITIALIZED_ARG",
	ExceptionUninitializedElem:   "AE_AML_UNINITIALIZED_ELEMENT",
	ExceptionNumericOverflow:     "AE_AML_NUMERIC_OVERFLOW",
	ExceptionRegionLimit:         "AE_AML_REGION_LIMIT",
	ExceptionBufferLimit:         "AE_AML_BUFFER_LIMIT",
	ExceptionPackageLimit:        "AE_AML_PACKAGE_LIMIT",
	ExceptionDivideByZero:        "AE_AML_DIVIDE_BY_ZERO",
	ExceptionBadName:             "AE_AML_BAD_NAME",
	ExceptionNameNotFound:        "AE_AML_NAME_NOT_FOUND",
	ExceptionInternal:            "AE_AML_INTERNAL",
	ExceptionInvalidSpaceID:      "AE_AML_INVALID_SPACE_ID",
	ExceptionStringLimit:         "AE_AML_STRING_LIMIT",
	ExceptionNoReturnValue:       "AE_AML_NO_RETURN_VALUE",
	ExceptionMethodLimit:         "AE_AML_METHOD_LIMIT",
	ExceptionNotOwner:            "AE_AML_NOT_OWNER",
	ExceptionMutexOrder:          "AE_AML_MUTEX_ORDER",
	ExceptionMutexNotAcquired:    "AE_AML_MUTEX_NOT_ACQUIRED",
	ExceptionInvalidResourceType: "AE_AML_INVALID_RESOURCE_TYPE",
	ExceptionInvalidIndex:        "AE_AML_INVALID_INDEX",
	ExceptionRegisterLimit:       "AE_AML_REGISTER_LIMIT",
	ExceptionNoWhile:             "AE_AML_NO_WHILE",
	ExceptionAlignment:           "AE_AML_ALIGNMENT",
	ExceptionNoResourceEndTag:    "AE_AML_NO_RESOURCE_END_TAG",
	ExceptionBadResourceValue:    "AE_AML_BAD_RESOURCE_VALUE",
	ExceptionCircularReference:   "AE_AML_CIRCULAR_REFERENCE",
}

// String implements fmt.Stringer for Exception.
func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}

	return "AE_AML_UNKNOWN_EXCEPTION"
}

// ExceptionHandler receives every exception raised by the interpreter.
// Function names the AML operator or method that raised it. Handlers run
// with the interpreter lock held and must not call back into the VM.
type ExceptionHandler interface {
	HandleException(code Exception, function string)
}

// RegisterExceptionHandler adds h to the list of exception handlers. The
// dynamic type of h must be comparable (e.g a pointer) and h must not be
// registered already.
func (vm *VM) RegisterExceptionHandler(h ExceptionHandler) error {
	if h == nil || !reflect.TypeOf(h).Comparable() {
		return errBadHandler
	}

	vm.excMu.Lock()
	defer vm.excMu.Unlock()

	for _, registered := range vm.exceptionHandlers {
		if registered == h {
			return errHandlerExists
		}
	}

	vm.exceptionHandlers = append(vm.exceptionHandlers, h)
	return nil
}

// UnregisterExceptionHandler removes a previously registered handler.
func (vm *VM) UnregisterExceptionHandler(h ExceptionHandler) {
	if h == nil || !reflect.TypeOf(h).Comparable() {
		return
	}

	vm.excMu.Lock()
	defer vm.excMu.Unlock()

	for i, registered := range vm.exceptionHandlers {
		if registered == h {
			vm.exceptionHandlers = append(vm.exceptionHandlers[:i], vm.exceptionHandlers[i+1:]...)
			return
		}
	}
}

// raise notifies every registered handler about code and logs it.
func (vm *VM) raise(code Exception, function string) {
	vm.excMu.Lock()
	handlers := append([]ExceptionHandler(nil), vm.exceptionHandlers...)
	vm.excMu.Unlock()

	for _, h := range handlers {
		h.HandleException(code, function)
	}

	vm.log.Warn("AML exception", "code", fmt.Sprintf("0x%04x", uint32(code)), "name", code.String(), "function", function)
}
