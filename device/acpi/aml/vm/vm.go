// Package vm implements the AML interpreter: it executes the term lists of
// DSDT/SSDT tables to populate the ACPI namespace and evaluates control
// methods on behalf of kernel callers.
//
// A single interpreter-wide lock serializes every entry point. Method
// invocations that nest within one entry share the lock and the Caller of
// the outermost invocation.
package vm

import (
	"context"
	"fmt"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"gopheraml/device/acpi/table"
	"gopheraml/kernel/kfmt"
	ksync "gopheraml/kernel/sync"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// NotifyHandler receives Notify() requests issued by AML code.
type NotifyHandler func(target *object.Object, value uint64)

// FatalHandler receives Fatal() requests issued by AML code.
type FatalHandler func(fatalType uint8, code uint32, arg uint64)

// VM stores the ACPI namespace populated from the loaded tables and
// provides methods for interpreting any executable opcode.
type VM struct {
	cfg Config
	log *slog.Logger

	lock *ksync.Lock

	tableResolver table.Resolver

	// rootNS holds a pointer to the root of the ACPI tree.
	rootNS *object.Object

	// globalLock is the \_GL mutex.
	globalLock *object.Object

	jumpTable [numOpcodes]opHandler

	regionHandlers map[object.RegionSpace]RegionHandler
	notifyHandler  NotifyHandler
	fatalHandler   FatalHandler

	excMu             sync.Mutex
	exceptionHandlers []ExceptionHandler

	debugOut io.Writer

	nextCallerID atomic.Uint64

	// mutexReleased is closed and replaced whenever an AML mutex becomes
	// free so that blocked kernel-side acquires can retry.
	mutexReleased chan struct{}

	loadedTables []*table.Table

	// started is the reference point of the Timer operator.
	started time.Time
}

// New creates a new AML VM and initializes it with the default scope
// hierarchy and pre-defined objects contained in the ACPI specification.
func New(cfg Config, resolver table.Resolver) *VM {
	cfg.fillDefaults()

	vm := &VM{
		cfg:            cfg,
		log:            cfg.logger(),
		lock:           ksync.NewLock(),
		tableResolver:  resolver,
		rootNS:         defaultACPIScopes(),
		regionHandlers: make(map[object.RegionSpace]RegionHandler),
		debugOut:       cfg.DebugWriter,
		mutexReleased:  make(chan struct{}),
		started:        timeNow(),
	}

	if vm.debugOut == nil {
		vm.debugOut = kfmt.NewRingBuffer(cfg.DebugBufferSize)
	}

	vm.populateJumpTable()
	vm.installPredefined()
	return vm
}

// Root returns the root of the ACPI namespace. The tree must only be
// inspected while no other goroutine uses the VM.
func (vm *VM) Root() *object.Object {
	return vm.rootNS
}

// DebugOutput returns the writer receiving stores to the Debug object.
func (vm *VM) DebugOutput() io.Writer {
	return vm.debugOut
}

// SetNotifyHandler installs the callback that receives Notify requests.
func (vm *VM) SetNotifyHandler(fn NotifyHandler) {
	vm.notifyHandler = fn
}

// SetFatalHandler installs the callback that receives Fatal requests.
func (vm *VM) SetFatalHandler(fn FatalHandler) {
	vm.fatalHandler = fn
}

// NewCaller returns a Caller with a fresh identity at sync level 0.
func (vm *VM) NewCaller() *Caller {
	return &Caller{id: vm.nextCallerID.Add(1)}
}

// enter runs fn with the interpreter lock held. A panic inside fn is
// converted into errInternal.
func (vm *VM) enter(ctx context.Context, fn func() error) (err error) {
	if err := vm.lock.Acquire(ctx); err != nil {
		return err
	}
	defer vm.lock.Release()

	defer func() {
		if r := recover(); r != nil {
			vm.log.Error("recovered from interpreter panic", "panic", fmt.Sprint(r))
			vm.raise(ExceptionInternal, "vm")
			err = errInternal
		}
	}()

	return fn()
}

// Init attempts to locate and load the AML byte-code contained in the
// system's DSDT and SSDT tables.
func (vm *VM) Init(ctx context.Context) error {
	if vm.tableResolver == nil {
		return errNoTables
	}

	dsdt := vm.tableResolver.LookupTable("DSDT", 0)
	if dsdt == nil {
		return errNoTables
	}

	if err := vm.LoadTable(ctx, dsdt); err != nil {
		return err
	}

	for n := 0; ; n++ {
		ssdt := vm.tableResolver.LookupTable("SSDT", n)
		if ssdt == nil {
			return nil
		}

		if err := vm.LoadTable(ctx, ssdt); err != nil {
			return err
		}
	}
}

// LoadTable executes the top-level term list of a DSDT or SSDT. Loading a
// DSDT fixes the integer width for the lifetime of the process.
func (vm *VM) LoadTable(ctx context.Context, t *table.Table) error {
	return vm.enter(ctx, func() error {
		tableName := t.Signature()
		if tableName == "DSDT" {
			object.SetRevision(t.Header.Revision)
		}

		vm.log.Debug("loading AML table", "table", tableName, "oem_table_id", t.OEMTableID(), "length", len(t.AML()))

		c := &execContext{
			ctx:    ctx,
			vm:     vm,
			caller: vm.NewCaller(),
			state:  &state{},
			r:      parser.NewReader(t.AML()),
			table:  tableName,
			scope:  vm.rootNS,
		}

		err := c.execTermList(c.r.Len())
		vm.releaseAll(c.caller)
		if err != nil {
			fillTrace(err, tableName, `\`)
			vm.log.Error("failed to load AML table", "table", tableName, "offset", c.r.Offset(), "err", err)
			return err
		}

		vm.loadedTables = append(vm.loadedTables, t)
		return nil
	})
}

// Lookup traverses a potentially nested absolute AML path and returns the
// object reachable via that path.
func (vm *VM) Lookup(ctx context.Context, path string) (*object.Object, error) {
	var obj *object.Object
	err := vm.enter(ctx, func() error {
		obj = object.Find(vm.rootNS, path)
		if obj == nil {
			return errNameNotFound
		}
		return nil
	})

	return obj, err
}

// Children returns the children of scope sorted by name.
func (vm *VM) Children(ctx context.Context, scope *object.Object) ([]*object.Object, error) {
	var children []*object.Object
	err := vm.enter(ctx, func() error {
		children = scope.Children()
		return nil
	})

	return children, err
}

// Visit performs a DFS on the AML namespace tree invoking the visitor for
// each object whose type matches typeMask. The visitor runs with the
// interpreter lock held and must not call back into the VM.
func (vm *VM) Visit(ctx context.Context, typeMask object.Type, visitorFn object.Visitor) error {
	return vm.enter(ctx, func() error {
		object.Visit(0, vm.rootNS, typeMask, visitorFn)
		return nil
	})
}

// Evaluate returns obj when it already has one of the allowed types.
// Methods are invoked without arguments and field units are read; the
// result is then converted to one of the allowed types.
func (vm *VM) Evaluate(ctx context.Context, obj *object.Object, allowed object.Type) (*object.Object, error) {
	var out *object.Object
	err := vm.enter(ctx, func() error {
		var err error
		out, err = vm.evaluate(ctx, vm.NewCaller(), obj, allowed)
		return err
	})

	return out, err
}

// EvaluatePath looks up path relative to scope (the root when scope is
// nil) and evaluates the object it names. A single NameSeg names a direct
// child of scope; the upward search rules are not applied.
func (vm *VM) EvaluatePath(ctx context.Context, scope *object.Object, path string, allowed object.Type) (*object.Object, error) {
	var out *object.Object
	err := vm.enter(ctx, func() error {
		if scope == nil {
			scope = vm.rootNS
		}

		var obj *object.Object
		if parser.ValidNameSeg(path) {
			obj = scope.Child(path)
		} else {
			obj = object.Find(scope, path)
		}
		if obj == nil {
			return errNameNotFound
		}

		var err error
		out, err = vm.evaluate(ctx, vm.NewCaller(), obj, allowed)
		return err
	})

	return out, err
}

// Invoke executes method with the supplied args and returns a copy of the
// result. Args are copied into the new frame.
func (vm *VM) Invoke(ctx context.Context, method *object.Object, args ...*object.Object) (*object.Object, error) {
	var out *object.Object
	err := vm.enter(ctx, func() error {
		caller := vm.NewCaller()
		defer vm.releaseAll(caller)

		var err error
		out, err = vm.invokeMethod(ctx, caller, method, args)
		return err
	})

	return out, err
}

func (vm *VM) evaluate(ctx context.Context, caller *Caller, obj *object.Object, allowed object.Type) (*object.Object, error) {
	obj, err := obj.Resolve()
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNameNotFound
	}

	switch obj.Type {
	case object.TypeMethod:
		defer vm.releaseAll(caller)
		if obj, err = vm.invokeMethod(ctx, caller, obj, nil); err != nil {
			return nil, err
		}
	case object.TypeFieldUnit:
		c := vm.kernelContext(ctx, caller)
		if obj, err = c.loadField(obj); err != nil {
			return nil, err
		}
	case object.TypeBufferField:
		if obj, err = obj.BufferField.Load(); err != nil {
			return nil, err
		}
	}

	if obj.Type == object.TypePackage {
		bindPackage(obj, 0)
	}

	if allowed == object.TypeAll || obj.Type&allowed != 0 {
		return obj, nil
	}

	return object.ConvertTo(obj, allowed)
}

// kernelContext returns an execution context for operations issued by the
// kernel outside of any method.
func (vm *VM) kernelContext(ctx context.Context, caller *Caller) *execContext {
	return &execContext{
		ctx:    ctx,
		vm:     vm,
		caller: caller,
		state:  &state{},
		r:      parser.NewReader(nil),
		table:  "kernel",
		scope:  vm.rootNS,
	}
}

// bindPackage resolves the forward references held by pkg and any nested
// packages.
func bindPackage(pkg *object.Object, depth int) {
	if depth > maxPackageDepth {
		return
	}

	for _, elem := range pkg.Elements {
		switch elem.Type {
		case object.TypeUnresolved:
			elem.BindUnresolved()
		case object.TypePackage:
			bindPackage(elem, depth+1)
		}
	}
}

// defaultACPIScopes constructs a tree of scoped entities that correspond to
// the predefined scopes contained in the ACPI specification and returns back
// its root node.
func defaultACPIScopes() *object.Object {
	rootNS := object.NewRoot()
	for _, name := range []string{
		"_GPE", // General events in GPE register block
		"_PR_", // ACPI 1.0 processor namespace
		"_SB_", // System bus with all device objects
		"_SI_", // System indicators
		"_TZ_", // ACPI 1.0 thermal zone namespace
	} {
		_ = rootNS.AddChild(name, object.NewScope())
	}

	return rootNS
}
