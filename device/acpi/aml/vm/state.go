package vm

import (
	"context"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
)

const (
	// According to the ACPI spec, methods can use up to 8 local args and
	// can receive up to 7 method args.
	maxLocalArgs  = 8
	maxMethodArgs = 7
)

// ctrlFlowType describes the different ways that the control flow can be altered
// while executing a set of AML opcodes.
type ctrlFlowType uint8

// The list of supported control flows.
const (
	ctrlFlowTypeNextOpcode ctrlFlowType = iota
	ctrlFlowTypeBreak
	ctrlFlowTypeContinue
	ctrlFlowTypeFnReturn
)

// Caller identifies a logical chain of AML execution. Mutex ownership and
// the current sync level are tracked per caller; nested method invocations
// share the caller of the outermost invocation.
type Caller struct {
	id        uint64
	syncLevel uint8

	// held lists the mutexes acquired by this caller in acquisition order.
	held []*object.Object

	// depth is the number of active method invocations.
	depth int
}

// ID returns the identifier stored as the owner of mutexes held by c.
func (c *Caller) ID() uint64 { return c.id }

// SyncLevel returns the current sync level of c.
func (c *Caller) SyncLevel() uint8 { return c.syncLevel }

// Held returns the number of mutexes currently held by c.
func (c *Caller) Held() int { return len(c.held) }

// state is the evaluation frame of a single method invocation.
type state struct {
	method *object.Object

	args   [maxMethodArgs]*object.Object
	locals [maxLocalArgs]*object.Object

	// retVal is set by Return. last tracks the result of the most
	// recently evaluated expression for the implicit return rule.
	retVal *object.Object
	last   *object.Object

	// created lists the names bound while the method runs; they are
	// removed again when it returns.
	created []*object.Object

	ctrlFlow  ctrlFlowType
	loopDepth int
}

// execContext holds the AML interpreter state while a term list executes.
type execContext struct {
	ctx    context.Context
	vm     *VM
	caller *Caller
	state  *state

	r     *parser.Reader
	table string
	scope *object.Object

	nesting int
}

// function returns a label describing what the context is executing. It is
// passed to exception handlers.
func (c *execContext) function() string {
	if c.state.method != nil {
		return c.state.method.Path()
	}

	return c.table
}

// raise reports code to the exception handlers and returns err so call
// sites can write `return nil, c.raise(...)`.
func (c *execContext) raise(code Exception, err error) error {
	c.vm.raise(code, c.function())
	return err
}

// local returns the object bound to LocalN, creating it on first use.
func (c *execContext) local(n int) *object.Object {
	if c.state.locals[n] == nil {
		c.state.locals[n] = object.NewLocal(n)
	}

	return c.state.locals[n]
}

// arg returns the object bound to ArgN.
func (c *execContext) arg(n int) (*object.Object, error) {
	if c.state.args[n] == nil {
		return nil, c.raise(ExceptionUninitializedArg, errUnboundArg)
	}

	return c.state.args[n], nil
}
