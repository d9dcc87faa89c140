package vm

import (
	"context"
	"errors"
	"testing"
	"time"

	"gopheraml/device/acpi/aml/amlasm"
	"gopheraml/device/acpi/aml/object"
	"gopheraml/device/acpi/aml/parser"
	"gopheraml/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupMutex(t *testing.T, vm *VM, path string) *object.Object {
	obj, err := vm.Lookup(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, object.TypeMutex, obj.Type)
	return obj
}

func TestKernelMutexes(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Mutex("MTX0", 0).
		Mutex("MTX5", 5).
		Name("INT_", amlasm.Int(0)))

	var (
		ctx  = context.Background()
		mtx0 = lookupMutex(t, vm, `\MTX0`)
		mtx5 = lookupMutex(t, vm, `\MTX5`)
		c1   = vm.NewCaller()
		c2   = vm.NewCaller()
	)

	acquired, err := vm.AcquireMutex(ctx, c1, mtx5, 5, 0)
	require.NoError(t, err)
	require.True(t, acquired)
	assert.Equal(t, uint8(5), c1.SyncLevel())
	assert.Equal(t, 1, c1.Held())

	// Recursive acquires by the owner nest.
	acquired, err = vm.AcquireMutex(ctx, c1, mtx5, 5, 0)
	require.NoError(t, err)
	require.True(t, acquired)
	assert.Equal(t, uint32(2), mtx5.Mutex.Depth)
	assert.Equal(t, 1, c1.Held())

	acquired, err = vm.AcquireMutex(ctx, c2, mtx5, 5, 0)
	require.NoError(t, err)
	assert.False(t, acquired)

	acquired, err = vm.AcquireMutex(ctx, c2, mtx5, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, acquired)

	assert.Equal(t, errMutexNotOwner, vm.ReleaseMutex(ctx, c2, mtx5))

	// The requested level must cover the level of the mutex.
	_, err = vm.AcquireMutex(ctx, c2, mtx5, 3, 0)
	assert.Equal(t, errMutexOrder, err)

	acquired, err = vm.AcquireMutex(ctx, c1, mtx0, 5, 0)
	require.NoError(t, err)
	require.True(t, acquired)
	assert.Equal(t, 2, c1.Held())

	require.NoError(t, vm.ReleaseMutex(ctx, c1, mtx5))
	assert.Equal(t, errMutexReleaseLIFO, vm.ReleaseMutex(ctx, c1, mtx5))
	require.NoError(t, vm.ReleaseMutex(ctx, c1, mtx0))
	require.NoError(t, vm.ReleaseMutex(ctx, c1, mtx5))
	assert.Equal(t, uint8(0), c1.SyncLevel())
	assert.Equal(t, 0, c1.Held())
	assert.Equal(t, uint64(0), mtx5.Mutex.Owner)

	intObj, err := vm.Lookup(ctx, `\INT_`)
	require.NoError(t, err)
	_, err = vm.AcquireMutex(ctx, c1, intObj, 0, 0)
	assert.Equal(t, errNotMutex, err)
	assert.Equal(t, errNotMutex, vm.ReleaseMutex(ctx, c1, nil))
}

func TestKernelMutexWaitsForRelease(t *testing.T) {
	vm := newTestVM(t, amlasm.New().Mutex("MTX0", 0))

	var (
		ctx   = context.Background()
		mtx0  = lookupMutex(t, vm, `\MTX0`)
		owner = vm.NewCaller()
	)

	acquired, err := vm.AcquireMutex(ctx, owner, mtx0, 0, 0)
	require.NoError(t, err)
	require.True(t, acquired)

	type result struct {
		acquired bool
		err      error
	}
	resCh := make(chan result, 1)

	waiter := vm.NewCaller()
	go func() {
		acquired, err := vm.AcquireMutex(ctx, waiter, mtx0, 0, 5*time.Second)
		resCh <- result{acquired, err}
	}()

	require.NoError(t, vm.ReleaseMutex(ctx, owner, mtx0))

	res := <-resCh
	require.NoError(t, res.err)
	assert.True(t, res.acquired)
	assert.Equal(t, waiter.ID(), mtx0.Mutex.Owner)
}

func TestKernelMutexContextCancel(t *testing.T) {
	vm := newTestVM(t, amlasm.New().Mutex("MTX0", 0))

	mtx0 := lookupMutex(t, vm, `\MTX0`)
	acquired, err := vm.AcquireMutex(context.Background(), vm.NewCaller(), mtx0, 0, 0)
	require.NoError(t, err)
	require.True(t, acquired)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	acquired, err = vm.AcquireMutex(ctx, vm.NewCaller(), mtx0, 0, -1)
	assert.False(t, acquired)
	assert.Error(t, err)
}

func TestAMLMutexes(t *testing.T) {
	specs := []struct {
		body    *amlasm.AML
		exp     uint64
		expCode Exception
		errno   kernel.Errno
	}{
		{
			amlasm.New().
				Store(amlasm.New().Acquire(amlasm.Path("MTXA"), 0xffff), amlasm.Local(0)).
				// Recursive acquire
				Store(amlasm.New().Acquire(amlasm.Path("MTXA"), 0xffff), amlasm.Local(1)).
				Release(amlasm.Path("MTXA")).
				Release(amlasm.Path("MTXA")).
				Return(amlasm.Expr(parser.OpOr, amlasm.Local(0), amlasm.Local(1), nil)),
			0, ExceptionOK, kernel.ENONE,
		},
		// Acquiring a lower level mutex while holding a higher one.
		{
			amlasm.New().
				Acquire(amlasm.Path("MTXA"), 0xffff).
				Acquire(amlasm.Path("MTXB"), 0xffff),
			0, ExceptionMutexOrder, kernel.EDEADLK,
		},
		{
			amlasm.New().Release(amlasm.Path("MTXA")),
			0, ExceptionNotOwner, kernel.EPERM,
		},
		{
			amlasm.New().Acquire(amlasm.Path("INT_"), 0),
			0, ExceptionOperandType, kernel.EINVAL,
		},
	}

	for specIndex, spec := range specs {
		vm := newTestVM(t, amlasm.New().
			Mutex("MTXA", 5).
			Mutex("MTXB", 2).
			Name("INT_", amlasm.Int(0)).
			Append(testMethod(spec.body)))

		h := &recordingHandler{}
		require.NoError(t, vm.RegisterExceptionHandler(h))

		res, err := vm.EvaluatePath(context.Background(), nil, "TEST", object.TypeAll)
		if spec.errno == kernel.ENONE {
			require.NoError(t, err, "[spec %02d]", specIndex)
			assert.Equal(t, spec.exp, res.Integer, "[spec %02d]", specIndex)
		} else {
			assert.True(t, errors.Is(err, spec.errno), "[spec %02d] got %v", specIndex, err)
			assert.Contains(t, h.codes, spec.expCode, "[spec %02d]", specIndex)
		}

		// Mutexes left held by a failed method are released.
		assert.Equal(t, uint64(0), lookupMutex(t, vm, `\MTXA`).Mutex.Owner, "[spec %02d]", specIndex)
	}
}

func TestAMLAcquireHeldByKernel(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Mutex("MTX0", 0).
		Method("POLL", 0, false, 0, ret(amlasm.New().Acquire(amlasm.Path("MTX0"), 10))).
		Method("WAIT", 0, false, 0, ret(amlasm.New().Acquire(amlasm.Path("MTX0"), 0xffff))))

	ctx := context.Background()
	mtx0 := lookupMutex(t, vm, `\MTX0`)
	acquired, err := vm.AcquireMutex(ctx, vm.NewCaller(), mtx0, 0, 0)
	require.NoError(t, err)
	require.True(t, acquired)

	assert.Equal(t, ^uint64(0), evalInteger(t, vm, "POLL"))

	h := &recordingHandler{}
	require.NoError(t, vm.RegisterExceptionHandler(h))

	_, err = vm.EvaluatePath(ctx, nil, "WAIT", object.TypeAll)
	assert.True(t, errors.Is(err, kernel.EDEADLK))
	assert.Contains(t, h.codes, ExceptionMutexNotAcquired)
}

func TestSerializedMethods(t *testing.T) {
	vm := newTestVM(t, amlasm.New().
		Mutex("MTX1", 1).
		Name("CNT_", amlasm.Int(0)).
		Method("RECU", 1, true, 0, amlasm.New().
			Append(increment(amlasm.Path("CNT_"))).
			If(amlasm.Arg(0), amlasm.New().Call("RECU", amlasm.Expr(parser.OpSubtract, amlasm.Arg(0), amlasm.Int(1), nil)), nil).
			Return(amlasm.Path("CNT_"))).
		Method("TOP_", 0, false, 0, ret(amlasm.Call("RECU", amlasm.Int(3)))).
		Method("HIGH", 0, true, 3, ret(amlasm.New().Acquire(amlasm.Path("MTX1"), 0xffff))))

	// A serialized method may call itself.
	assert.Equal(t, uint64(4), evalInteger(t, vm, "TOP_"))

	rec, err := vm.Lookup(context.Background(), `\RECU`)
	require.NoError(t, err)
	require.NotNil(t, rec.Method.Lock)
	assert.Equal(t, uint64(0), rec.Method.Lock.Mutex.Owner)

	// Methods run at their declared sync level.
	_, err = vm.EvaluatePath(context.Background(), nil, "HIGH", object.TypeAll)
	assert.True(t, errors.Is(err, kernel.EDEADLK))
}
