package runtime

import (
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

// call implements OP_CALL: the callee sits paramCount+1 slots below the
// stack top (qcc/vm.c's call()). A Native is invoked immediately and
// inline; anything else pushes a new CallFrame for the interpreter loop to
// keep running.
func (vm *VM) call(paramCount int) error {
	slotsBase := vm.stackTop - paramCount - 1
	callee := vm.stack[slotsBase]
	return vm.callValue(callee, slotsBase, paramCount)
}

// invoke implements OP_INVOKE: resolve `prop` on the receiver sitting
// paramCount+1 slots below the top, then call it exactly like OP_CALL would
// once the method is found (qcc/vm.c's invoke()).
//
// paramCount counts only the explicit call-site arguments, never the
// receiver already sitting at slotsBase; pkg/compiler gives method/init
// Function.Arity the same convention (it excludes the implicit self), so
// the two line up without adjustment here.
func (vm *VM) invoke(propIdx, paramCount int) error {
	slotsBase := vm.stackTop - paramCount - 1
	receiver := vm.stack[slotsBase]
	name := vm.readString(propIdx)

	method, err := vm.getProperty(receiver, name.Bytes)
	if err != nil {
		return err
	}
	return vm.callValue(method, slotsBase, paramCount)
}

// callValue dispatches on the callee's Obj kind: a BindedMethod re-slots
// its receiver in as the implicit first argument before falling into the
// same closure-call path a direct method reference would take.
func (vm *VM) callValue(callee value.Value, slotsBase, paramCount int) error {
	if callee.Kind != value.KindObj || callee.Obj == nil {
		return vm.fault("value is not callable")
	}

	switch obj := callee.Obj.(type) {
	case *value.Native:
		return vm.callNative(obj, slotsBase, paramCount)
	case *value.BindedMethod:
		vm.stack[slotsBase] = value.FromObj(obj.Instance, nil)
		return vm.callClosure(obj.Method, slotsBase, paramCount)
	case *value.Closure:
		return vm.callClosure(obj, slotsBase, paramCount)
	default:
		return vm.fault("value is not callable")
	}
}

func (vm *VM) callClosure(closure *value.Closure, slotsBase, paramCount int) error {
	if vm.frameCount+1 >= FramesMax {
		return vm.fault("frame overflow")
	}
	if paramCount != closure.Fn.Arity {
		return vm.fault("'%s' expects %d arguments, got %d", closure.Fn.Name, closure.Fn.Arity, paramCount)
	}
	vm.frames[vm.frameCount] = CallFrame{closure: closure, pc: 0, slotsBase: slotsBase}
	vm.frameCount++
	return nil
}

// callNative runs a Go-backed native function inline: it never gets its
// own CallFrame, since it can't itself contain Quartz bytecode to step
// through (qcc/vm.c's call_native).
func (vm *VM) callNative(native *value.Native, slotsBase, paramCount int) error {
	if paramCount != native.Arity {
		return vm.fault("'%s' expects %d arguments, got %d", native.Name, native.Arity, paramCount)
	}
	params := make([]value.Value, paramCount)
	copy(params, vm.stack[slotsBase+1:slotsBase+1+paramCount])

	result, err := native.Fn(params)
	if err != nil {
		return vm.fault("%s", err.Error())
	}
	if native.Return != nil && types.Resolve(native.Return).Kind == types.Void {
		result = value.Nil(native.Return)
	}

	vm.stackTop = slotsBase
	return vm.push(result)
}

// getProperty reads a named property off an Object (instance field or
// method) or one of the intrinsic Array/String receivers.
func (vm *VM) getProperty(recv value.Value, name string) (value.Value, error) {
	if recv.Kind != value.KindObj || recv.Obj == nil {
		return value.Value{}, vm.fault("nil pointer dereference reading '%s'", name)
	}
	switch obj := recv.Obj.(type) {
	case *value.Instance:
		if v, ok := obj.Props[name]; ok {
			return v, nil
		}
		if m, ok := obj.Class.Methods[name]; ok {
			return value.FromObj(m, nil), nil
		}
		return value.Value{}, vm.fault("'%s' has no property '%s'", obj.Class.Name, name)
	default:
		return vm.intrinsicProperty(recv, name)
	}
}

func (vm *VM) setProperty(recv value.Value, name string, val value.Value) error {
	if recv.Kind != value.KindObj || recv.Obj == nil {
		return vm.fault("nil pointer dereference writing '%s'", name)
	}
	instance, ok := recv.Obj.(*value.Instance)
	if !ok {
		return vm.fault("cannot assign properties on a non-Object value")
	}
	instance.Props[name] = val
	return nil
}

// readUpvalue/writeUpvalue dereference through Closure.Upvalues, which are
// either still-open slots on some live frame's stack window or already
// boxed into a Closed once their scope ended.
func (vm *VM) readUpvalue(uv *value.Upvalue) value.Value {
	if uv.Closed != nil {
		return *uv.Closed
	}
	return vm.stack[uv.StackIndex]
}

func (vm *VM) writeUpvalue(uv *value.Upvalue, v value.Value) {
	if uv.Closed != nil {
		*uv.Closed = v
		return
	}
	vm.stack[uv.StackIndex] = v
}

func growUpvalues(closure *value.Closure, idx int) {
	for len(closure.Upvalues) <= idx {
		closure.Upvalues = append(closure.Upvalues, nil)
	}
}

// bindUpvalue implements OP_BIND_UPVALUE: the enclosing local at `slot` is
// still live on the stack, so the new closure's upvalue slot shares whatever
// Upvalue box already watches that slot (captureUpvalue), or gets a fresh
// one — shared, so two sibling closures capturing the same local see each
// other's writes.
func (vm *VM) bindUpvalue(closure *value.Closure, upvalIdx, stackIndex int) {
	growUpvalues(closure, upvalIdx)
	closure.Upvalues[upvalIdx] = vm.captureUpvalue(stackIndex)
}

// aliasUpvalue implements OP_BIND_CLOSED: the captured variable is itself
// one of the enclosing function's own upvalues, so the new closure's slot
// just aliases that same Upvalue box — open or already closed — rather than
// snapshotting a copy.
func (vm *VM) aliasUpvalue(closure *value.Closure, destIdx int, src *value.Upvalue) {
	growUpvalues(closure, destIdx)
	closure.Upvalues[destIdx] = src
}

// captureUpvalue returns the Upvalue already watching stackIndex, if any
// closure captured it before, or registers a new open one. Reusing existing
// boxes is what lets two closures created from the same loop iteration (or
// any two nested functions sharing an enclosing local) observe each other's
// writes through that local.
func (vm *VM) captureUpvalue(stackIndex int) *value.Upvalue {
	for _, uv := range vm.openUpvalues {
		if uv.Closed == nil && uv.StackIndex == stackIndex {
			return uv
		}
	}
	uv := &value.Upvalue{StackIndex: stackIndex}
	vm.openUpvalues = append(vm.openUpvalues, uv)
	return uv
}

// closeUpvalue snapshots the open Upvalue watching stackIndex (if one
// exists) into its own Closed box and detaches it from the stack, so it
// keeps working after that slot is reused by an unrelated call or local.
func (vm *VM) closeUpvalue(stackIndex int) {
	for i, uv := range vm.openUpvalues {
		if uv.Closed == nil && uv.StackIndex == stackIndex {
			v := vm.stack[stackIndex]
			uv.Closed = &v
			vm.openUpvalues = append(vm.openUpvalues[:i], vm.openUpvalues[i+1:]...)
			return
		}
	}
}

// closeUpvaluesFrom closes every open upvalue watching a slot at or above
// from — called on OP_RETURN so a closure returned out of a function (or
// stashed into a global before the function exits) keeps working once the
// returning frame's stack window is reclaimed.
func (vm *VM) closeUpvaluesFrom(from int) {
	kept := vm.openUpvalues[:0]
	for _, uv := range vm.openUpvalues {
		if uv.Closed == nil && uv.StackIndex >= from {
			v := vm.stack[uv.StackIndex]
			uv.Closed = &v
			continue
		}
		kept = append(kept, uv)
	}
	vm.openUpvalues = kept
}
