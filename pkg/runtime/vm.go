package runtime

import (
	"fmt"
	"math"

	"quartz.dev/qcc/pkg/bytecode"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

// FramesMax and StackMax mirror qcc/vm.h's FRAMES_MAX / STACK_MAX exactly
// (stack sized at twice the frame count, since every frame needs at least
// one stack slot for its own function/receiver value).
const (
	FramesMax = 64
	StackMax  = FramesMax * 2
)

// CallFrame is one active function invocation: the closure being run, a
// program counter into its Chunk, and the stack index where its
// locals/params begin (qcc/vm.h's CallFrame, slots expressed as an index
// into VM.stack rather than a raw pointer since Go slices can reallocate).
type CallFrame struct {
	closure   *value.Closure
	pc        int
	slotsBase int
}

// RuntimeError is returned by Run when the program faults at runtime
// (stack overflow, nil dereference, frame overflow).
type RuntimeError struct {
	Message string
	Line    int
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at line %d: %s", e.Line, e.Message)
	}
	return "runtime error: " + e.Message
}

// VM is Quartz's stack machine: fixed-size value stack and call-frame
// array, a globals table, and a string-intern table, all per qcc/vm.h's
// QVM struct.
type VM struct {
	stack    [StackMax]value.Value
	stackTop int

	frames     [FramesMax]CallFrame
	frameCount int

	globals *Table
	strings *Table

	gc *gc

	// openUpvalues are Upvalue boxes still reading/writing directly through
	// a live stack slot, ordered by creation. closeUpvalue(s) snapshot and
	// detach them once their backing slot is about to be reused.
	openUpvalues []*value.Upvalue

	// Pool is the same *types.Pool the checker and compiler interned types
	// through, so a type built at runtime (e.g. an ARRAY literal's element
	// type) stays identical-by-pointer to its compile-time counterpart.
	Pool *types.Pool

	Stdout func(string) // where `print`/`println` write; defaults to os.Stdout in cmd/quartz
}

func New(pool *types.Pool) *VM {
	vm := &VM{
		globals: NewTable(),
		strings: NewTable(),
		gc:      newGC(),
		Pool:    pool,
	}
	vm.Stdout = func(s string) { fmt.Print(s) }
	return vm
}

// Intern returns the canonical *value.String for s, allocating one only if
// this exact content hasn't been seen before (qcc/table.c's
// table_find_string path) — the interning point for concatenation
// results, native-call results and global names (via readString). String
// literal constants are not interned; EQUAL compares strings by content.
func (vm *VM) Intern(s string) *value.String {
	hash := fnv1a32(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &value.String{Hash: hash, Bytes: s}
	vm.gc.track(str, len(s))
	vm.strings.Set(str, value.Value{})
	return str
}

// DefineGlobal registers a name (interned) with an initial value — used by
// pkg/stdlib to install native functions and intrinsic classes before
// Run starts, and by Run's DEFINE_GLOBAL handling.
func (vm *VM) DefineGlobal(name string, v value.Value) {
	vm.globals.Set(vm.Intern(name), v)
}

// LookupGlobal returns a previously defined global's current value, without
// interning name if it isn't already present. Used by tests asserting what
// pkg/stdlib.Install wired up, and available for the same reason a REPL
// might want to inspect its own session state.
func (vm *VM) LookupGlobal(name string) (value.Value, bool) {
	existing := vm.strings.FindString(name, fnv1a32(name))
	if existing == nil {
		return value.Value{}, false
	}
	return vm.globals.Get(existing)
}

func (vm *VM) push(v value.Value) error {
	if vm.stackTop+1 >= StackMax {
		return &RuntimeError{Message: "stack overflow"}
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-distance-1]
}

// Run executes fn as the program's entry point (the implicit top-level
// function pkg/compiler.Compile produces).
func (vm *VM) Run(fn *value.Function) error {
	closure := &value.Closure{Fn: fn}
	vm.gc.track(closure, 0)
	if err := vm.push(value.FromObj(closure, nil)); err != nil {
		return err
	}
	vm.frames[0] = CallFrame{closure: closure, pc: 0, slotsBase: 0}
	vm.frameCount = 1
	return vm.run()
}

func (vm *VM) frame() *CallFrame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) readByte() byte {
	f := vm.frame()
	b := f.closure.Fn.Chunk.Code[f.pc]
	f.pc++
	return b
}

func (vm *VM) readU16() uint16 {
	f := vm.frame()
	v := f.closure.Fn.Chunk.ReadU16(f.pc)
	f.pc += 2
	return v
}

func (vm *VM) readConstant(idx int) value.Value {
	return vm.frame().closure.Fn.Chunk.Constants[idx]
}

func (vm *VM) readType(idx int) *types.Type {
	return vm.frame().closure.Fn.Chunk.Types[idx]
}

// readString returns the interned copy of a name constant: the compiler's
// name constants carry no hash, and the globals table probes by hash.
func (vm *VM) readString(idx int) *value.String {
	return vm.Intern(vm.readConstant(idx).Obj.(*value.String).Bytes)
}

func (vm *VM) currentLine() int {
	f := vm.frame()
	if f.pc-1 < 0 || f.pc-1 >= len(f.closure.Fn.Chunk.Lines) {
		return 0
	}
	return int(f.closure.Fn.Chunk.Lines[f.pc-1])
}

func (vm *VM) fault(format string, args ...any) error {
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Line: vm.currentLine()}
}

// run is the dispatch loop: one switch per opcode, exactly the shape of
// qcc/vm.c's run(), translated from the C macros into direct Go.
func (vm *VM) run() error {
	for {
		vm.maybeCollect()

		op := bytecode.OpCode(vm.readByte())
		switch op {
		case bytecode.ADD:
			b, a := vm.peek(0), vm.peek(1)
			if isString(a) && isString(b) {
				bs, as := vm.pop(), vm.pop()
				concat := vm.Intern(as.Obj.(*value.String).Bytes + bs.Obj.(*value.String).Bytes)
				if err := vm.push(value.FromObj(concat, types.StringType())); err != nil {
					return err
				}
				break
			}
			if err := vm.numBinary(func(x, y float64) float64 { return x + y }); err != nil {
				return err
			}
		case bytecode.SUB:
			if err := vm.numBinary(func(x, y float64) float64 { return x - y }); err != nil {
				return err
			}
		case bytecode.MUL:
			if err := vm.numBinary(func(x, y float64) float64 { return x * y }); err != nil {
				return err
			}
		case bytecode.DIV:
			if err := vm.numBinary(func(x, y float64) float64 { return x / y }); err != nil {
				return err
			}
		case bytecode.MOD:
			if err := vm.numBinary(math.Mod); err != nil {
				return err
			}
		case bytecode.NEGATE:
			n := vm.pop().Number
			if err := vm.push(value.Number(-n, types.NumberType())); err != nil {
				return err
			}
		case bytecode.AND:
			b, a := vm.pop().Bool, vm.pop().Bool
			if err := vm.push(value.Bool_(a && b, types.BoolType())); err != nil {
				return err
			}
		case bytecode.OR:
			b, a := vm.pop().Bool, vm.pop().Bool
			if err := vm.push(value.Bool_(a || b, types.BoolType())); err != nil {
				return err
			}
		case bytecode.NOT:
			if err := vm.push(value.Bool_(!vm.pop().Bool, types.BoolType())); err != nil {
				return err
			}
		case bytecode.TRUE:
			if err := vm.push(value.Bool_(true, types.BoolType())); err != nil {
				return err
			}
		case bytecode.FALSE:
			if err := vm.push(value.Bool_(false, types.BoolType())); err != nil {
				return err
			}
		case bytecode.NIL:
			if err := vm.push(value.Nil(types.NilType())); err != nil {
				return err
			}
		case bytecode.NOP:
			// nothing
		case bytecode.EQUAL:
			b, a := vm.pop(), vm.pop()
			if err := vm.push(value.Bool_(value.Equal(a, b), types.BoolType())); err != nil {
				return err
			}
		case bytecode.GREATER:
			b, a := vm.pop().Number, vm.pop().Number
			if err := vm.push(value.Bool_(a > b, types.BoolType())); err != nil {
				return err
			}
		case bytecode.LOWER:
			b, a := vm.pop().Number, vm.pop().Number
			if err := vm.push(value.Bool_(a < b, types.BoolType())); err != nil {
				return err
			}
		case bytecode.CONSTANT:
			idx := int(vm.readByte())
			if err := vm.push(vm.closureConstant(vm.readConstant(idx))); err != nil {
				return err
			}
		case bytecode.CONSTANT_LONG:
			idx := int(vm.readU16())
			if err := vm.push(vm.closureConstant(vm.readConstant(idx))); err != nil {
				return err
			}
		case bytecode.POP:
			vm.pop()
		case bytecode.DEFINE_GLOBAL:
			name := vm.readString(int(vm.readByte()))
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.DEFINE_GLOBAL_LONG:
			name := vm.readString(int(vm.readU16()))
			vm.globals.Set(name, vm.peek(0))
			vm.pop()
		case bytecode.SET_GLOBAL:
			name := vm.readString(int(vm.readByte()))
			vm.globals.Set(name, vm.peek(0))
		case bytecode.SET_GLOBAL_LONG:
			name := vm.readString(int(vm.readU16()))
			vm.globals.Set(name, vm.peek(0))
		case bytecode.GET_GLOBAL:
			name := vm.readString(int(vm.readByte()))
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.fault("undefined global '%s'", name.Bytes)
			}
			if err := vm.push(v); err != nil {
				return err
			}
		case bytecode.GET_GLOBAL_LONG:
			name := vm.readString(int(vm.readU16()))
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.fault("undefined global '%s'", name.Bytes)
			}
			if err := vm.push(v); err != nil {
				return err
			}
		case bytecode.GET_LOCAL:
			slot := int(vm.readByte())
			if err := vm.push(vm.stack[vm.frame().slotsBase+slot]); err != nil {
				return err
			}
		case bytecode.SET_LOCAL:
			slot := int(vm.readByte())
			vm.stack[vm.frame().slotsBase+slot] = vm.peek(0)
		case bytecode.GET_UPVALUE:
			idx := int(vm.readByte())
			uv := vm.frame().closure.Upvalues[idx]
			if err := vm.push(vm.readUpvalue(uv)); err != nil {
				return err
			}
		case bytecode.SET_UPVALUE:
			idx := int(vm.readByte())
			uv := vm.frame().closure.Upvalues[idx]
			vm.writeUpvalue(uv, vm.peek(0))
		case bytecode.CALL:
			paramCount := int(vm.readByte())
			if err := vm.call(paramCount); err != nil {
				return err
			}
		case bytecode.RETURN:
			ret := vm.pop()
			f := vm.frame()
			vm.closeUpvaluesFrom(f.slotsBase)
			vm.stackTop = f.slotsBase
			if err := vm.push(ret); err != nil {
				return err
			}
			vm.frameCount--
		case bytecode.END:
			return nil
		case bytecode.BIND_UPVALUE:
			slot := int(vm.readByte())
			upvalIdx := int(vm.readByte())
			stackIndex := vm.frame().slotsBase + slot
			closure := vm.peek(0).Obj.(*value.Closure)
			vm.bindUpvalue(closure, upvalIdx, stackIndex)
		case bytecode.CLOSE:
			// Scope-exit discard: snapshots the slot into any Upvalue box that
			// still reads through it before the slot itself is reused, then
			// pops it like a plain POP would.
			vm.closeUpvalue(vm.stackTop - 1)
			vm.pop()
		case bytecode.BIND_CLOSED:
			srcIdx := int(vm.readByte())
			destIdx := int(vm.readByte())
			closure := vm.peek(0).Obj.(*value.Closure)
			src := vm.frame().closure.Upvalues[srcIdx]
			vm.aliasUpvalue(closure, destIdx, src)
		case bytecode.JUMP:
			dist := int16(vm.readU16())
			vm.frame().pc += int(dist)
		case bytecode.JUMP_IF_FALSE:
			cond := vm.peek(0) // left on the stack; the compiler emits the POP on both paths
			dist := int16(vm.readU16())
			if !cond.Truthy() {
				vm.frame().pc += int(dist)
			}
		case bytecode.NEW:
			v := vm.pop()
			class, ok := v.Obj.(*value.Class)
			if !ok {
				return vm.fault("'new' requires a class value")
			}
			instance := &value.Instance{Class: class, Props: map[string]value.Value{}}
			vm.gc.track(instance, 0)
			instVal := value.FromObj(instance, types.AnyType())
			if err := vm.push(instVal); err != nil {
				return err
			}
			if err := vm.push(instVal); err != nil {
				return err
			}
		case bytecode.INVOKE:
			propIdx := int(vm.readByte())
			paramCount := int(vm.readByte())
			if err := vm.invoke(propIdx, paramCount); err != nil {
				return err
			}
		case bytecode.GET_PROP:
			v := vm.pop()
			idx := int(vm.readByte())
			name := vm.readString(idx)
			val, err := vm.getProperty(v, name.Bytes)
			if err != nil {
				return err
			}
			if err := vm.push(val); err != nil {
				return err
			}
		case bytecode.SET_PROP:
			val := vm.pop()
			recv := vm.peek(0)
			idx := int(vm.readByte())
			name := vm.readString(idx)
			if err := vm.setProperty(recv, name.Bytes, val); err != nil {
				return err
			}
		case bytecode.BINDED_METHOD:
			recv := vm.peek(0)
			idx := int(vm.readByte())
			name := vm.readString(idx)
			method, err := vm.getProperty(recv, name.Bytes)
			if err != nil {
				return err
			}
			instance, ok := recv.Obj.(*value.Instance)
			if !ok {
				return vm.fault("BINDED_METHOD requires an instance receiver")
			}
			closure, ok := method.Obj.(*value.Closure)
			if !ok {
				return vm.fault("'%s' is not a method", name.Bytes)
			}
			bound := &value.BindedMethod{Instance: instance, Method: closure}
			vm.gc.track(bound, 0)
			vm.pop()
			if err := vm.push(value.FromObj(bound, nil)); err != nil {
				return err
			}
		case bytecode.ARRAY:
			idx := int(vm.readByte())
			inner := vm.readType(idx)
			arr := &value.Array{InnerType: inner}
			vm.gc.track(arr, 0)
			if err := vm.push(value.FromObj(arr, vm.Pool.Array(inner))); err != nil {
				return err
			}
		case bytecode.ARRAY_PUSH:
			v := vm.pop()
			target := vm.peek(0)
			arr := target.Obj.(*value.Array)
			arr.Elements = append(arr.Elements, v)
		case bytecode.CAST:
			v := vm.pop()
			idx := int(vm.readByte())
			target := vm.readType(idx)
			if err := vm.push(vm.cast(v, target)); err != nil {
				return err
			}
		default:
			return vm.fault("unhandled opcode %v", op)
		}
	}
}

func (vm *VM) numBinary(op func(a, b float64) float64) error {
	b := vm.pop().Number
	a := vm.pop().Number
	return vm.push(value.Number(op(a, b), types.NumberType()))
}

// closureConstant wraps a bare *value.Function constant (what
// pkg/compiler.emitClosureConstruction pushes for every function/closure
// declaration) into a freshly allocated *value.Closure. Allocating fresh on
// every CONSTANT execution is what makes two separate calls to the same
// enclosing function produce two independent closures, each with its own
// captured upvalues, instead of silently sharing one mutable closure object.
// Any other constant kind (numbers, strings, classes, ...) passes through
// unchanged.
func (vm *VM) closureConstant(v value.Value) value.Value {
	fn, ok := v.Obj.(*value.Function)
	if !ok {
		return v
	}
	closure := &value.Closure{Fn: fn}
	vm.gc.track(closure, 0)
	return value.FromObj(closure, nil)
}

func isString(v value.Value) bool {
	if v.Kind != value.KindObj {
		return false
	}
	_, ok := v.Obj.(*value.String)
	return ok
}

// cast implements `cast<T>(expr)`: identity casts and widening to Bool
// via Truthy always succeed; casting to/from Any always succeeds (a no-op
// at the value level, since the tagged union already carries its own kind).
func (vm *VM) cast(v value.Value, target *types.Type) value.Value {
	resolved := types.Resolve(target)
	if resolved != nil && resolved.Kind == types.Bool {
		return value.Bool_(v.Truthy(), types.BoolType())
	}
	return value.Value{Type: target, Kind: v.Kind, Number: v.Number, Bool: v.Bool, Obj: v.Obj}
}
