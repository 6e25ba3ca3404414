// Package compiler is Quartz's bytecode emitter: the second AST visitor,
// walking the tree in lockstep with the scope tree's re-entry order. Its
// DFS-dispatch-per-node-kind shape follows pkg/jack/lowering.go's
// Lowerer.Lowerer/HandleSubroutine pattern, generalized from Jack-to-VM-IR
// text opcodes to Quartz's byte opcodes.
package compiler

import (
	"quartz.dev/qcc/pkg/ast"
	"quartz.dev/qcc/pkg/bytecode"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

// local is one slot of the current function's frame.
type local struct {
	name  string
	depth int
	sym   *symbol.Symbol
}

// funcState is one nested function being emitted into; Compiler keeps a
// stack of these mirroring the call-nest the checker walked.
type funcState struct {
	chunk      *value.Chunk
	locals     []local
	scopeDepth int
	sym        *symbol.Symbol
	upvalues   []value.UpvalueDescriptor
}

// loopFrame holds the offset a continue jumps back to and the break jump
// sites to backfill; pushed/popped around forStmt/whileStmt bodies.
type loopFrame struct {
	continueTarget int
	breakJumps     []int
}

// Compiler emits one value.Chunk per function, resolves locals/globals/
// upvalues, and patches jumps.
type Compiler struct {
	Pool    *types.Pool
	Symbols *symbol.Table

	funcs []*funcState
	loops []*loopFrame

	// Globals is the set of symbols the emitter has already DEFINE_GLOBAL'd,
	// in declaration order.
	Globals []*symbol.Symbol
}

func New(pool *types.Pool, symbols *symbol.Table) *Compiler {
	top := &funcState{chunk: &value.Chunk{}}
	// Slot 0 of every frame holds the callee (vm.go's call/callClosure
	// convention); the script's own entrypoint closure occupies stack[0] the
	// same way, so the top-level funcState reserves it here rather than
	// handing out index 0 to the first top-level local.
	top.locals = append(top.locals, local{})
	return &Compiler{Pool: pool, Symbols: symbols, funcs: []*funcState{top}}
}

func (c *Compiler) current() *funcState { return c.funcs[len(c.funcs)-1] }

// Compile emits the top-level program chunk (the implicit "main" function)
// for stmts and returns it.
func (c *Compiler) Compile(stmts []ast.Stmt) *value.Chunk {
	c.Symbols.ResetScopes()
	for _, stmt := range stmts {
		c.stmt(stmt)
	}
	c.current().chunk.WriteOp(bytecode.END, 0)
	return c.current().chunk
}

func line(e ast.Expr) int {
	type metaHaver interface{ exprNode() *ast.Meta }
	if mh, ok := e.(metaHaver); ok {
		return mh.exprNode().Tok.Line
	}
	return 0
}

// ----------------------------------------------------------------------------
// Scope / local-slot bookkeeping

func (c *Compiler) beginScope() { c.current().scopeDepth++ }

// endScope emits one CLOSE per local that goes out of scope. CLOSE (rather
// than plain POP) is what lets
// a closure that captured one of these locals keep reading/writing it after
// its stack slot is reused — pkg/runtime snapshots the slot into the
// capturing Upvalue's box only if something actually captured it, so this
// costs nothing extra for the common uncaptured-local case.
func (c *Compiler) endScope(l int) {
	fs := c.current()
	fs.scopeDepth--
	for len(fs.locals) > 0 && fs.locals[len(fs.locals)-1].depth > fs.scopeDepth {
		fs.chunk.WriteOp(bytecode.CLOSE, l)
		fs.locals = fs.locals[:len(fs.locals)-1]
	}
}

func (c *Compiler) declareLocal(sym *symbol.Symbol) {
	fs := c.current()
	fs.locals = append(fs.locals, local{name: sym.Name, depth: fs.scopeDepth, sym: sym})
}

func (c *Compiler) resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return -1, false
}

// resolveUpvalue finds (or creates) an upvalue slot in fs for name,
// recursing into enclosing function states exactly as the checker's
// recordUpvalueIfNeeded discovered it.
func (c *Compiler) resolveUpvalue(depth int, name string) (int, bool) {
	if depth == 0 {
		return -1, false
	}
	enclosing := c.funcs[depth-1]
	fs := c.funcs[depth]

	for i, uv := range fs.upvalues {
		if uv.FromParentLocal {
			if idx, ok := c.resolveLocal(enclosing, name); ok && idx == uv.Index {
				return i, true
			}
		}
	}

	if idx, ok := c.resolveLocal(enclosing, name); ok {
		fs.upvalues = append(fs.upvalues, value.UpvalueDescriptor{FromParentLocal: true, Index: idx})
		return len(fs.upvalues) - 1, true
	}
	if idx, ok := c.resolveUpvalue(depth-1, name); ok {
		fs.upvalues = append(fs.upvalues, value.UpvalueDescriptor{FromParentLocal: false, Index: idx})
		return len(fs.upvalues) - 1, true
	}
	return -1, false
}

// ----------------------------------------------------------------------------
// Statements

func (c *Compiler) stmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.ExprStmt:
		c.expr(st.Expr)
		c.current().chunk.WriteOp(bytecode.POP, line(st.Expr))

	case *ast.VarStmt:
		c.varStmt(st)

	case *ast.FunctionStmt:
		c.functionStmt(st)

	case *ast.ListStmt:
		for _, inner := range st.Stmts {
			c.stmt(inner)
		}

	case *ast.BlockStmt:
		c.Symbols.StartScope()
		c.beginScope()
		for _, inner := range st.Stmts {
			c.stmt(inner)
		}
		c.endScope(0)
		c.Symbols.EndScope()

	case *ast.ReturnStmt:
		if st.Expr != nil {
			c.expr(st.Expr)
		} else {
			c.current().chunk.WriteOp(bytecode.NIL, st.Tok.Line)
		}
		c.current().chunk.WriteOp(bytecode.RETURN, st.Tok.Line)

	case *ast.IfStmt:
		c.ifStmt(st)

	case *ast.ForStmt:
		c.forStmt(st)

	case *ast.WhileStmt:
		c.whileStmt(st)

	case *ast.LoopGotoStmt:
		c.loopGotoStmt(st)

	case *ast.TypealiasStmt:
		// no code to emit

	case *ast.ImportStmt:
		if st.ImportedStmts != nil {
			for _, inner := range st.ImportedStmts {
				c.stmt(inner)
			}
		}

	case *ast.NativeFunctionStmt:
		// registered as a global by pkg/runtime at VM bootstrap, not here.

	case *ast.ClassStmt:
		c.classStmt(st)

	case *ast.NativeClassStmt:
		// backed by pkg/stdlib's registry, nothing to emit.
	}
}

func (c *Compiler) loopGotoStmt(s *ast.LoopGotoStmt) {
	if len(c.loops) == 0 {
		return // the parser already rejected this; nothing sane to emit
	}
	ch := c.current().chunk
	frame := c.loops[len(c.loops)-1]

	switch s.Kind {
	case ast.Continue:
		ch.WriteOp(bytecode.JUMP, s.Tok.Line)
		offset := len(ch.Code)
		ch.Write(0, s.Tok.Line)
		ch.Write(0, s.Tok.Line)
		distance := int32(frame.continueTarget) - int32(offset+2)
		ch.Code[offset] = byte(int16(distance) >> 8)
		ch.Code[offset+1] = byte(int16(distance))
	case ast.Break:
		frame.breakJumps = append(frame.breakJumps, ch.EmitJump(bytecode.JUMP, s.Tok.Line))
	}
}

func (c *Compiler) varStmt(s *ast.VarStmt) {
	sym, _ := c.Symbols.Lookup(s.Name.Lexeme)

	if s.Initializer != nil {
		c.expr(s.Initializer)
	} else {
		c.current().chunk.WriteOp(bytecode.NIL, s.Name.Line)
	}

	if c.current().scopeDepth == 0 {
		idx := c.current().chunk.AddConstant(internedName(s.Name.Lexeme), types.StringType())
		c.emitGlobalOp(bytecode.DEFINE_GLOBAL, bytecode.DEFINE_GLOBAL_LONG, idx, s.Name.Line)
		c.Globals = append(c.Globals, sym)
	} else {
		c.declareLocal(sym)
	}
}

func internedName(name string) value.Value {
	return value.FromObj(&value.String{Bytes: name}, types.StringType())
}

func (c *Compiler) emitGlobalOp(short, long bytecode.OpCode, idx int, l int) {
	ch := c.current().chunk
	if idx <= 0xFF {
		ch.WriteOp(short, l)
		ch.Write(byte(idx), l)
		return
	}
	ch.WriteOp(long, l)
	ch.WriteU16(uint16(idx), l)
}

// buildFunction compiles s's body into its own Chunk and returns the
// resulting value.Function, without emitting anything into the enclosing
// chunk. functionStmt wraps this with closure-construction bytecode;
// classStmt instead wires the result directly into a compile-time
// value.Class, since the instruction set has no dedicated "declare a
// class" opcode: the instruction set only has NEW for instantiation.
func (c *Compiler) buildFunction(s *ast.FunctionStmt) (*value.Function, *funcState) {
	sym, _ := c.Symbols.LookupWithClass(s.Name.Lexeme)

	fs := &funcState{chunk: &value.Chunk{}, sym: sym}
	c.funcs = append(c.funcs, fs)
	c.Symbols.StartScope()
	c.beginScope()

	// Slot 0 holds the callee (vm.go's callClosure places it at
	// stack[slotsBase+0] for every call). A method gets this for free since
	// self is always its first declared param; a plain function has no such
	// param, so reserve the slot explicitly before declaring the real ones.
	if !s.IsMethod {
		fs.locals = append(fs.locals, local{depth: fs.scopeDepth})
	}

	for _, param := range s.Params {
		psym, _ := c.Symbols.Lookup(param.Name.Lexeme)
		c.declareLocal(psym)
	}

	c.Symbols.StartScope() // the body block's own scope, created by the parser's blockBody
	for _, bodyStmt := range s.Body {
		c.stmt(bodyStmt)
	}
	c.Symbols.EndScope()

	// Implicit Nil-return fallback, matching RETURN's "pop and push" shape
	// even when a Void function falls off the end of its body.
	fs.chunk.WriteOp(bytecode.NIL, s.Name.Line)
	fs.chunk.WriteOp(bytecode.RETURN, s.Name.Line)

	c.Symbols.EndScope()
	c.funcs = c.funcs[:len(c.funcs)-1]

	// Arity counts only the explicit, user-written parameters: CALL/INVOKE
	// emit their operand from len(e.Args), which never includes the
	// receiver, so a method's self (prepended at parse time) must not be
	// counted here either or every method/init call would fail the arity
	// check the VM runs before dispatch.
	arity := len(s.Params)
	if s.IsMethod {
		arity--
	}
	fn := &value.Function{
		Name: s.Name.Lexeme, Arity: arity, Chunk: fs.chunk, Upvalues: fs.upvalues,
	}
	return fn, fs
}

func (c *Compiler) functionStmt(s *ast.FunctionStmt) *value.Function {
	fn, fs := c.buildFunction(s)
	c.emitClosureConstruction(fn, fs, s.Name.Line)

	if c.current().scopeDepth == 0 && !s.IsMethod {
		idx := c.current().chunk.AddConstant(internedName(s.Name.Lexeme), types.StringType())
		c.emitGlobalOp(bytecode.DEFINE_GLOBAL, bytecode.DEFINE_GLOBAL_LONG, idx, s.Name.Line)
		c.Globals = append(c.Globals, fs.sym)
	} else if !s.IsMethod {
		c.declareLocal(fs.sym)
	}

	return fn
}

// emitClosureConstruction pushes fn's constant — pkg/runtime's CONSTANT
// handler wraps a bare *value.Function into a fresh *value.Closure at push
// time, so every execution of this site produces an independent closure
// with its own upvalue bindings, even if the enclosing function runs more
// than once (a function literal declared inside a loop body, say). For each
// captured variable it then emits BIND_UPVALUE(slot, idx) when the variable
// is still a live local in the enclosing function, or BIND_CLOSED(srcIdx,
// idx) when it is itself one of the enclosing function's own upvalues —
// the new closure's slot just aliases the enclosing closure's existing
// Upvalue box, open or already closed.
func (c *Compiler) emitClosureConstruction(fn *value.Function, fs *funcState, l int) {
	ch := c.current().chunk
	idx := ch.AddConstant(value.FromObj(fn, nil), nil)
	ch.WriteConstant(idx, l)

	for i, uv := range fs.upvalues {
		if uv.FromParentLocal {
			ch.WriteOp(bytecode.BIND_UPVALUE, l)
			ch.Write(byte(uv.Index), l)
			ch.Write(byte(i), l)
		} else {
			ch.WriteOp(bytecode.BIND_CLOSED, l)
			ch.Write(byte(uv.Index), l)
			ch.Write(byte(i), l)
		}
	}
}

func (c *Compiler) ifStmt(s *ast.IfStmt) {
	ch := c.current().chunk
	l := line(s.Condition)
	c.expr(s.Condition)
	thenJump := ch.EmitJump(bytecode.JUMP_IF_FALSE, l)
	ch.WriteOp(bytecode.POP, l)
	c.stmt(s.Then)

	elseJump := ch.EmitJump(bytecode.JUMP, l)
	ch.PatchJump(thenJump)
	ch.WriteOp(bytecode.POP, l)

	if s.Else != nil {
		c.stmt(s.Else)
	}
	ch.PatchJump(elseJump)
}

func (c *Compiler) whileStmt(s *ast.WhileStmt) {
	ch := c.current().chunk
	l := line(s.Condition)
	loopStart := len(ch.Code)
	frame := &loopFrame{continueTarget: loopStart}
	c.loops = append(c.loops, frame)

	c.expr(s.Condition)
	exitJump := ch.EmitJump(bytecode.JUMP_IF_FALSE, l)
	ch.WriteOp(bytecode.POP, l)

	c.stmt(s.Body)
	c.emitLoopBack(loopStart, l)

	ch.PatchJump(exitJump)
	ch.WriteOp(bytecode.POP, l)

	c.loops = c.loops[:len(c.loops)-1]
	for _, j := range frame.breakJumps {
		ch.PatchJump(j)
	}
}

func (c *Compiler) forStmt(s *ast.ForStmt) {
	ch := c.current().chunk
	c.Symbols.StartScope()
	c.beginScope()

	if s.Init != nil {
		c.stmt(s.Init)
	}

	loopStart := len(ch.Code)
	exitJump := -1
	if s.Condition != nil {
		c.expr(s.Condition)
		exitJump = ch.EmitJump(bytecode.JUMP_IF_FALSE, 0)
		ch.WriteOp(bytecode.POP, 0)
	}

	// Post is emitted ahead of the body and jumped over on entry, so that a
	// `continue` in the body (a backward jump) runs Post before the condition.
	frame := &loopFrame{continueTarget: loopStart}
	if s.Post != nil {
		bodyJump := ch.EmitJump(bytecode.JUMP, 0)
		frame.continueTarget = len(ch.Code)
		c.stmt(s.Post)
		c.emitLoopBack(loopStart, 0)
		ch.PatchJump(bodyJump)
	}
	c.loops = append(c.loops, frame)
	c.stmt(s.Body)
	c.emitLoopBack(frame.continueTarget, 0)

	if exitJump >= 0 {
		ch.PatchJump(exitJump)
		ch.WriteOp(bytecode.POP, 0)
	}

	c.loops = c.loops[:len(c.loops)-1]
	for _, j := range frame.breakJumps {
		ch.PatchJump(j)
	}

	c.endScope(0)
	c.Symbols.EndScope()
}

// emitLoopBack emits an unconditional JUMP whose two-byte operand encodes
// a (negative) displacement from just after the operand back to target;
// pkg/runtime's dispatch treats JUMP's operand as signed for this reason:
// there is no separately named backward-only opcode, so one
// signed-operand JUMP covers both forward and backward jumps.
func (c *Compiler) emitLoopBack(target int, l int) {
	ch := c.current().chunk
	ch.WriteOp(bytecode.JUMP, l)
	offset := len(ch.Code)
	ch.Write(0, l)
	ch.Write(0, l)
	distance := int32(target) - int32(offset+2)
	ch.Code[offset] = byte(int16(distance) >> 8)
	ch.Code[offset+1] = byte(int16(distance))
}

// classStmt builds the class's method table entirely at compile time (each
// method becomes a Closure with no captured upvalues — a class body is a
// fixed, non-nested scope) and emits a single CONSTANT+DEFINE_GLOBAL pair
// to bind it, rather than a sequence of per-method bytecode ops.
func (c *Compiler) classStmt(s *ast.ClassStmt) {
	classSym, _ := c.Symbols.LookupWithClass(s.Name.Lexeme)
	ch := c.current().chunk

	class := &value.Class{Name: s.Name.Lexeme, Methods: map[string]*value.Closure{}}

	c.Symbols.StartScope()
	for _, method := range s.Methods {
		fn, _ := c.buildFunction(method.Fn)
		closure := &value.Closure{Fn: fn}
		class.Methods[fn.Name] = closure
		class.MethodOrder = append(class.MethodOrder, fn.Name)
	}
	c.Symbols.EndScope()

	idx := ch.AddConstant(value.FromObj(class, nil), nil)
	ch.WriteConstant(idx, s.Name.Line)

	if c.current().scopeDepth == 0 {
		nameIdx := ch.AddConstant(internedName(s.Name.Lexeme), types.StringType())
		c.emitGlobalOp(bytecode.DEFINE_GLOBAL, bytecode.DEFINE_GLOBAL_LONG, nameIdx, s.Name.Line)
		c.Globals = append(c.Globals, classSym)
	} else {
		c.declareLocal(classSym)
	}
}
