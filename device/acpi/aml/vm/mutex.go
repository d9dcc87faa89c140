package vm

import (
	"context"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	ksync "gopheraml/kernel/sync"
	"time"
)

// acquireForever is the AML timeout value that means "wait forever".
const acquireForever = 0xffff

// tryAcquire attempts to acquire an AML mutex on behalf of caller without
// blocking. It enforces the sync level ordering rule.
func (vm *VM) tryAcquire(caller *Caller, obj *object.Object) (bool, error) {
	return vm.acquire(caller, obj, true)
}

func (vm *VM) acquire(caller *Caller, obj *object.Object, checkOrder bool) (bool, error) {
	m := obj.Mutex
	if m.Owner == caller.id {
		m.Depth++
		return true, nil
	}

	if checkOrder && m.SyncLevel < caller.syncLevel {
		vm.log.Warn("mutex acquired out of sync level order", "mutex", obj.Path(), "mutex_level", m.SyncLevel, "caller_level", caller.syncLevel)
		return false, errMutexOrder
	}

	if m.Owner != 0 {
		return false, nil
	}

	m.Owner = caller.id
	m.Depth = 1
	m.SavedSyncLevel = caller.syncLevel
	caller.syncLevel = max(caller.syncLevel, m.SyncLevel)
	caller.held = append(caller.held, obj)
	return true, nil
}

// releaseMutex releases a mutex held by caller. Mutexes must be released in
// the reverse order of acquisition.
func (vm *VM) releaseMutex(caller *Caller, obj *object.Object) error {
	m := obj.Mutex
	if m.Owner != caller.id {
		return errMutexNotOwner
	}

	if m.Depth > 1 {
		m.Depth--
		return nil
	}

	if top := len(caller.held) - 1; top < 0 || caller.held[top] != obj {
		return errMutexReleaseLIFO
	}

	vm.free(caller, obj)
	return nil
}

// free clears the ownership of obj and wakes up any blocked acquirers.
func (vm *VM) free(caller *Caller, obj *object.Object) {
	m := obj.Mutex
	m.Owner, m.Depth = 0, 0
	caller.syncLevel = m.SavedSyncLevel

	for i := len(caller.held) - 1; i >= 0; i-- {
		if caller.held[i] == obj {
			caller.held = append(caller.held[:i], caller.held[i+1:]...)
			break
		}
	}

	close(vm.mutexReleased)
	vm.mutexReleased = make(chan struct{})
}

// releaseAll releases every mutex still held by caller in reverse
// acquisition order.
func (vm *VM) releaseAll(caller *Caller) {
	for len(caller.held) > 0 {
		obj := caller.held[len(caller.held)-1]
		vm.log.Warn("releasing mutex still held at the end of evaluation", "mutex", obj.Path())
		vm.free(caller, obj)
	}
}

// AcquireMutex acquires an AML mutex on behalf of a kernel caller. A
// syncLevel below the level declared by the mutex is rejected without
// blocking. A zero timeout polls and a negative timeout waits until ctx is
// done, or for at most LockTimeout when the config sets one. It returns
// false if the timeout elapsed.
func (vm *VM) AcquireMutex(ctx context.Context, caller *Caller, mutex *object.Object, syncLevel uint8, timeout time.Duration) (bool, error) {
	if mutex == nil || mutex.Type != object.TypeMutex {
		return false, errNotMutex
	}

	if timeout == ksync.Forever && vm.cfg.LockTimeout > 0 {
		timeout = vm.cfg.LockTimeout.Duration()
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		var (
			acquired bool
			wake     <-chan struct{}
		)

		err := vm.enter(ctx, func() error {
			if syncLevel < mutex.Mutex.SyncLevel {
				return errMutexOrder
			}

			var err error
			acquired, err = vm.acquire(caller, mutex, false)
			wake = vm.mutexReleased
			return err
		})

		if err != nil || acquired {
			return acquired, err
		}

		if timeout == 0 {
			return false, nil
		}

		select {
		case <-wake:
		case <-deadline:
			return false, nil
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// ReleaseMutex releases an AML mutex previously acquired by caller.
func (vm *VM) ReleaseMutex(ctx context.Context, caller *Caller, mutex *object.Object) error {
	if mutex == nil || mutex.Type != object.TypeMutex {
		return errNotMutex
	}

	return vm.enter(ctx, func() error {
		return vm.releaseMutex(caller, mutex)
	})
}

// Args: SyncObject Timeout
//
// Acquire returns Ones if the mutex could not be acquired within the
// timeout and Zero otherwise. The interpreter lock is held while AML runs
// so a mutex held by another caller cannot be released while waiting; the
// acquire fails right away instead.
func vmOpAcquire(c *execContext, _ parser.Opcode) (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	timeout, err := c.r.ReadWord()
	if err != nil {
		return nil, c.raise(ExceptionParse, err)
	}

	obj := c.targetObject(t)
	if obj == nil || obj.Type != object.TypeMutex {
		return nil, c.raise(ExceptionOperandType, errNotMutex)
	}

	acquired, err := c.vm.tryAcquire(c.caller, obj)
	if err != nil {
		return nil, c.raise(ExceptionMutexOrder, err)
	}

	if acquired {
		return object.NewInteger(0), nil
	}

	if timeout == acquireForever {
		c.vm.log.Error("deadlock waiting for mutex", "mutex", obj.Path(), "function", c.function())
		return nil, c.raise(ExceptionMutexNotAcquired, errMutexDeadlock)
	}

	return object.NewInteger(object.IntegerOnes()), nil
}

// Args: SyncObject
func vmOpRelease(c *execContext, _ parser.Opcode) (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	obj := c.targetObject(t)
	if obj == nil || obj.Type != object.TypeMutex {
		return nil, c.raise(ExceptionOperandType, errNotMutex)
	}

	switch err = c.vm.releaseMutex(c.caller, obj); err {
	case nil:
		return nil, nil
	case errMutexNotOwner:
		return nil, c.raise(ExceptionNotOwner, err)
	default:
		return nil, c.raise(ExceptionMutexOrder, err)
	}
}

func (c *execContext) evalEvent() (*object.Object, error) {
	t, err := c.evalSuperName()
	if err != nil {
		return nil, err
	}

	obj := c.targetObject(t)
	if obj == nil || obj.Type != object.TypeEvent {
		return nil, c.raise(ExceptionOperandType, errNotEvent)
	}

	return obj, nil
}

// Args: SyncObject
func vmOpSignal(c *execContext, _ parser.Opcode) (*object.Object, error) {
	obj, err := c.evalEvent()
	if err != nil {
		return nil, err
	}

	obj.Event.Pending++
	return nil, nil
}

// Args: SyncObject
func vmOpReset(c *execContext, _ parser.Opcode) (*object.Object, error) {
	obj, err := c.evalEvent()
	if err != nil {
		return nil, err
	}

	obj.Event.Pending = 0
	return nil, nil
}

// Args: SyncObject Timeout
//
// Wait consumes a pending signal and returns Zero, or returns Ones when no
// signal is pending. Signals cannot arrive while AML runs so there is
// nothing to wait for.
func vmOpWait(c *execContext, _ parser.Opcode) (*object.Object, error) {
	obj, err := c.evalEvent()
	if err != nil {
		return nil, err
	}

	timeout, err := c.evalInteger()
	if err != nil {
		return nil, err
	}

	if obj.Event.Pending > 0 {
		obj.Event.Pending--
		return object.NewInteger(0), nil
	}

	if timeout >= acquireForever {
		c.vm.log.Warn("wait forever on an event that is never signaled", "event", obj.Path(), "function", c.function())
	}

	return object.NewInteger(object.IntegerOnes()), nil
}
