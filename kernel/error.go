package kernel

// Errno classifies an Error. The values mirror the errno codes that the rest
// of the kernel uses so that callers can react to a failure class without
// comparing against every individual error value.
type Errno uint8

// The list of supported error classes.
const (
	ENONE Errno = iota
	EINVAL
	EILSEQ
	ENOMEM
	ERANGE
	ENOENT
	EEXIST
	EDEADLK
	ETIMEDOUT
	EPERM
	ENOSYS
	EIO
	EOVERFLOW
	ESPIPE
)

var errnoNames = [...]string{
	ENONE:     "ENONE",
	EINVAL:    "EINVAL",
	EILSEQ:    "EILSEQ",
	ENOMEM:    "ENOMEM",
	ERANGE:    "ERANGE",
	ENOENT:    "ENOENT",
	EEXIST:    "EEXIST",
	EDEADLK:   "EDEADLK",
	ETIMEDOUT: "ETIMEDOUT",
	EPERM:     "EPERM",
	ENOSYS:    "ENOSYS",
	EIO:       "EIO",
	EOVERFLOW: "EOVERFLOW",
	ESPIPE:    "ESPIPE",
}

// Error implements the error interface.
func (e Errno) Error() string {
	if int(e) < len(errnoNames) {
		return errnoNames[e]
	}

	return "EUNKNOWN"
}

// Error describes a kernel error. All kernel errors must be defined as global
// variables that are pointers to the Error structure so they can be compared
// by identity.
type Error struct {
	// The module where the error occurred.
	Module string

	// The error message
	Message string

	// The error class.
	Errno Errno
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the error class so errors.Is(err, kernel.EINVAL) works.
func (e *Error) Unwrap() error {
	if e.Errno == ENONE {
		return nil
	}

	return e.Errno
}
