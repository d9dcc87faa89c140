package vm

import (
	"fmt"
	"gopheraml/device/acpi/aml/object"
)

// debugStore handles a store to the Debug object: a summary of value is
// written to the debug output.
func (c *execContext) debugStore(value *object.Object) {
	msg := object.Format(value)
	if value != nil && value.Type == object.TypeObjectReference && value.Target != nil {
		msg = fmt.Sprintf("Reference(%s)", object.Format(value.Target))
	}

	c.vm.log.Debug("AML debug output", "function", c.function(), "value", msg)
	_, _ = fmt.Fprintln(c.vm.debugOut, msg)
}
