package amlasm

import (
	"encoding/binary"
	"gopheraml/device/acpi/aml/parser"
)

// If appends DefIfElse. A nil elseBody omits the Else clause.
func (a *AML) If(predicate, body, elseBody *AML) *AML {
	a.pkg(parser.OpIf, New().Append(predicate, orEmpty(body)))
	if elseBody != nil {
		a.pkg(parser.OpElse, elseBody)
	}
	return a
}

// While appends DefWhile.
func (a *AML) While(predicate, body *AML) *AML {
	return a.pkg(parser.OpWhile, New().Append(predicate, orEmpty(body)))
}

// Return appends DefReturn.
func (a *AML) Return(value *AML) *AML {
	if value == nil {
		value = Int(0)
	}
	return a.Op(parser.OpReturn).Append(value)
}

// Break appends DefBreak.
func (a *AML) Break() *AML { return a.Op(parser.OpBreak) }

// Continue appends DefContinue.
func (a *AML) Continue() *AML { return a.Op(parser.OpContinue) }

// Noop appends DefNoop.
func (a *AML) Noop() *AML { return a.Op(parser.OpNoop) }

// BreakPoint appends DefBreakPoint.
func (a *AML) BreakPoint() *AML { return a.Op(parser.OpBreakPoint) }

// Store appends DefStore.
func (a *AML) Store(value, target *AML) *AML {
	return a.Op(parser.OpStore).Append(value, target)
}

// Notify appends DefNotify.
func (a *AML) Notify(target, value *AML) *AML {
	return a.Op(parser.OpNotify).Append(target, value)
}

// Sleep appends DefSleep.
func (a *AML) Sleep(msec *AML) *AML { return a.Op(parser.OpSleep).Append(msec) }

// Stall appends DefStall.
func (a *AML) Stall(usec *AML) *AML { return a.Op(parser.OpStall).Append(usec) }

// Signal appends DefSignal.
func (a *AML) Signal(event *AML) *AML { return a.Op(parser.OpSignal).Append(event) }

// Reset appends DefReset.
func (a *AML) Reset(event *AML) *AML { return a.Op(parser.OpReset).Append(event) }

// Wait appends DefWait.
func (a *AML) Wait(event, timeout *AML) *AML { return a.Op(parser.OpWait).Append(event, timeout) }

// Acquire appends DefAcquire.
func (a *AML) Acquire(mutex *AML, timeout uint16) *AML {
	return a.Op(parser.OpAcquire).Append(mutex).Raw(binary.LittleEndian.AppendUint16(nil, timeout)...)
}

// Release appends DefRelease.
func (a *AML) Release(mutex *AML) *AML { return a.Op(parser.OpRelease).Append(mutex) }

// Fatal appends DefFatal.
func (a *AML) Fatal(fatalType uint8, code uint32, arg *AML) *AML {
	return a.Op(parser.OpFatal).Raw(fatalType).Raw(binary.LittleEndian.AppendUint32(nil, code)...).Append(arg)
}
