package vm

import (
	"gopheraml/device/acpi/aml/object"
)

// osiSyncLevel is the sync level of the serialized \_OSI method.
const osiSyncLevel = 15

// installPredefined binds the objects that the OS provides to AML code.
func (vm *VM) installPredefined() {
	vm.globalLock = object.NewMutex(0)

	for _, entry := range []struct {
		name string
		obj  *object.Object
	}{
		{"_GL_", vm.globalLock},
		{"_OS_", object.NewString(vm.cfg.OSName)},
		{"_REV", object.NewInteger(vm.cfg.Revision)},
		{"_OSI", object.NewMethod(object.Method{
			ArgCount:   1,
			Serialized: true,
			SyncLevel:  osiSyncLevel,
			Native:     vm.osi,
			Lock:       object.NewMutex(osiSyncLevel),
		})},
	} {
		_ = vm.rootNS.AddChild(entry.name, entry.obj)
	}
}

// osi implements \_OSI. Firmware uses it to query the interfaces the OS
// supports; every query is answered with Ones.
func (vm *VM) osi(args []*object.Object) (*object.Object, error) {
	if len(args) != 1 || args[0].Type != object.TypeString {
		return nil, errOperandType
	}

	vm.log.Debug("_OSI query", "interface", args[0].String())
	return object.NewInteger(object.IntegerOnes()), nil
}
