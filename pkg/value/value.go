// Package value implements Quartz's runtime Value representation and the
// heap Obj variants it can carry. Chunk (the compiled per-function code
// container) also lives here: its
// constant pool holds Values, and a Function Obj holds a Chunk, so housing
// both in one package avoids a cycle between "the thing holding bytecode"
// and "the things the bytecode holds".
package value

import (
	"encoding/binary"
	"fmt"
	"strings"

	"quartz.dev/qcc/pkg/bytecode"
	"quartz.dev/qcc/pkg/types"
)

type Kind int

const (
	KindNumber Kind = iota
	KindBool
	KindNil
	KindObj
)

// Value is the tagged union every stack slot, constant, and global holds.
type Value struct {
	Type    *types.Type
	Kind    Kind
	Number  float64
	Bool    bool
	Obj     Obj
}

func Number(n float64, t *types.Type) Value { return Value{Type: t, Kind: KindNumber, Number: n} }
func Bool_(b bool, t *types.Type) Value     { return Value{Type: t, Kind: KindBool, Bool: b} }
func Nil(t *types.Type) Value               { return Value{Type: t, Kind: KindNil} }
func FromObj(o Obj, t *types.Type) Value    { return Value{Type: t, Kind: KindObj, Obj: o} }

// Truthy implements the language's single coercion-to-Bool rule, used by
// JUMP_IF_FALSE and the `cast<Bool>` truthiness widening.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNil:
		return false
	case KindNumber:
		return v.Number != 0
	default:
		return v.Obj != nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindNil:
		return "nil"
	default:
		if v.Obj == nil {
			return "nil"
		}
		return v.Obj.String()
	}
}

// Equal is used by OP_EQUAL: numbers/bools/nil compare by value, objects by
// the Obj variant's own equality (strings compare interned-pointer-equal
// once interning has run; see pkg/runtime).
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumber:
		return a.Number == b.Number
	case KindBool:
		return a.Bool == b.Bool
	case KindNil:
		return true
	default:
		return ObjEqual(a.Obj, b.Obj)
	}
}

// ----------------------------------------------------------------------------
// Obj and its variants

// Obj is the marker interface for every heap object kind. Each concrete
// variant also satisfies the GC's Mark contract (see pkg/runtime/gc.go);
// the shared header fields (kind, type, is-marked, intrusive-next) live on
// GCHeader, embedded by every variant.
type Obj interface {
	String() string
	objNode()
}

// GCHeader is embedded in every Obj implementation; the GC flips Marked
// during the mark phase and walks Next to sweep the whole heap list
// without a second allocation.
type GCHeader struct {
	Marked bool
	Next   Obj
}

type String struct {
	GCHeader
	Hash  uint32
	Bytes string
}

func (s *String) String() string { return s.Bytes }
func (*String) objNode()         {}

// Upvalue is an open/closed union: while Closed is
// nil it reads/writes through Stack at StackIndex; once the enclosing
// scope ends, Closed is allocated and Stack is abandoned.
type Upvalue struct {
	StackIndex int
	Closed     *Value
}

type Function struct {
	GCHeader
	Name     string
	Arity    int
	Chunk    *Chunk
	Upvalues []UpvalueDescriptor
}

// UpvalueDescriptor records, for one upvalue slot of a Function Obj,
// whether the emitter bound it via BIND_UPVALUE (still a live local in the
// enclosing function) or BIND_CLOSED (already boxed).
type UpvalueDescriptor struct {
	FromParentLocal bool
	Index           int
}

func (f *Function) String() string { return "<fn " + f.Name + ">" }
func (*Function) objNode()         {}

// Closure pairs a compiled Function with its captured Upvalues, one per
// UpvalueDescriptor the emitter recorded on Function.
type Closure struct {
	GCHeader
	Fn       *Function
	Upvalues []*Upvalue
}

func (c *Closure) String() string { return c.Fn.String() }
func (*Closure) objNode()         {}

type NativeFn func(args []Value) (Value, error)

type Native struct {
	GCHeader
	Name  string
	Arity int
	Fn    NativeFn
	// Return is the function's declared Quartz return type, used by
	// pkg/runtime's call boundary to coerce a Void-declared native's result
	// to Nil regardless of what its Go implementation actually returned.
	// Nil when not declared
	// (the Array/String intrinsic methods skip it; their Go signatures
	// already return the right Value for every branch).
	Return *types.Type
}

func (n *Native) String() string { return "<native " + n.Name + ">" }
func (*Native) objNode()         {}

type Class struct {
	GCHeader
	Name    string
	Methods map[string]*Closure
	// MethodOrder preserves declaration order for disassembly/debugging.
	MethodOrder []string
}

func (c *Class) String() string { return "<class " + c.Name + ">" }
func (*Class) objNode()         {}

type Instance struct {
	GCHeader
	Class *Class
	Props map[string]Value
}

func (i *Instance) String() string { return "<instance " + i.Class.Name + ">" }
func (*Instance) objNode()         {}

// BindedMethod pairs an instance with one of its methods: the value
// produced by `obj.method` before it is called, carrying its receiver so
// CALL can push it as the implicit first argument.
type BindedMethod struct {
	GCHeader
	Instance *Instance
	Method   *Closure
}

func (b *BindedMethod) String() string { return "<bound " + b.Method.Fn.Name + ">" }
func (*BindedMethod) objNode()         {}

type Array struct {
	GCHeader
	InnerType *types.Type
	Elements  []Value
}

func (a *Array) String() string {
	parts := make([]string, len(a.Elements))
	for i, el := range a.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (*Array) objNode() {}

// ObjEqual implements reference equality for every heap kind except
// String, which compares by content (interning in pkg/runtime then makes
// pointer equality and content equality coincide).
func ObjEqual(a, b Obj) bool {
	if a == nil || b == nil {
		return a == b
	}
	if as, ok := a.(*String); ok {
		bs, ok := b.(*String)
		return ok && as.Bytes == bs.Bytes
	}
	return a == b
}

// ----------------------------------------------------------------------------
// Chunk: one function's compiled code

// Chunk is `{code, lines, constants, types}`: a flat byte stream, a 1:1
// line table, a constant pool, and the resolved type for each constant
// (read back by the VM, e.g. for CAST's runtime check).
type Chunk struct {
	Code      []byte
	Lines     []int32
	Constants []Value
	Types     []*types.Type
}

func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, int32(line))
}

func (c *Chunk) WriteOp(op bytecode.OpCode, line int) { c.Write(byte(op), line) }

func (c *Chunk) WriteU16(v uint16, line int) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	c.Write(buf[0], line)
	c.Write(buf[1], line)
}

func (c *Chunk) ReadU16(offset int) uint16 {
	return binary.BigEndian.Uint16(c.Code[offset : offset+2])
}

// AddConstant appends v (and its resolved type) to the constant pool and
// returns its index.
func (c *Chunk) AddConstant(v Value, t *types.Type) int {
	c.Constants = append(c.Constants, v)
	c.Types = append(c.Types, t)
	return len(c.Constants) - 1
}

// WriteConstant emits the short CONSTANT form for indices <= 255 and the
// long CONSTANT_LONG form otherwise.
func (c *Chunk) WriteConstant(idx int, line int) {
	if idx <= 0xFF {
		c.WriteOp(bytecode.CONSTANT, line)
		c.Write(byte(idx), line)
		return
	}
	c.WriteOp(bytecode.CONSTANT_LONG, line)
	c.WriteU16(uint16(idx), line)
}

// EmitJump writes op followed by a two-byte placeholder operand and
// returns the operand's offset, to be patched later with PatchJump.
func (c *Chunk) EmitJump(op bytecode.OpCode, line int) int {
	c.WriteOp(op, line)
	offset := len(c.Code)
	c.Write(0xFF, line)
	c.Write(0xFF, line)
	return offset
}

// PatchJump backfills a previously emitted placeholder operand with the
// distance from just after the operand to the current end of the code
// stream.
func (c *Chunk) PatchJump(offset int) {
	jump := len(c.Code) - offset - 2
	binary.BigEndian.PutUint16(c.Code[offset:offset+2], uint16(jump))
}
