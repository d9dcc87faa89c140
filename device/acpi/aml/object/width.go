package object

import "sync/atomic"

// integerSize holds the process-wide integer width in bytes. It is fixed
// when the DSDT is loaded.
var integerSize atomic.Uint32

func init() {
	integerSize.Store(8)
}

// SetRevision selects the integer width from a DSDT revision: tables with
// a revision lower than 2 use 32-bit integers.
func SetRevision(revision uint8) {
	if revision < 2 {
		integerSize.Store(4)
		return
	}

	integerSize.Store(8)
}

// IntegerSize returns the active integer width in bytes (4 or 8).
func IntegerSize() int {
	return int(integerSize.Load())
}

// IntegerOnes returns an Integer with every bit of the active width set.
func IntegerOnes() uint64 {
	if integerSize.Load() == 4 {
		return 0xffffffff
	}

	return 0xffffffffffffffff
}
