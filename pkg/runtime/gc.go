package runtime

import "quartz.dev/qcc/pkg/value"

// gc tracks every heap Obj the VM has allocated in an intrusive singly
// linked list (GCHeader.Next) and runs a tri-colour mark-sweep pass over it,
// exactly as qcc/vm_memory.c does: mark roots (stack, globals, live call
// frame functions) via a gray-stack worklist, blacken each, then sweep the
// object list freeing anything left unmarked.
//
// Go's own collector already reclaims every Obj's memory once nothing
// references it, so this pass does no allocation bookkeeping of its own;
// its job is purely to mirror the language's mark-sweep semantics and to
// evict collected strings from the intern table, the one place a Quartz
// program could otherwise observe a "leaked" Obj.
type gc struct {
	objects       value.Obj // head of the intrusive list
	grayStack     []value.Obj
	bytesAllocated int
	nextTrigger    int
}

const gcHeapGrowFactor = 2
const initialGCTrigger = 2048

func newGC() *gc {
	return &gc{nextTrigger: initialGCTrigger}
}

// track registers a freshly allocated Obj so the collector can reach it
// during sweep; every constructor in pkg/runtime that builds a heap Obj
// calls this.
func (g *gc) track(obj value.Obj, size int) {
	header := gcHeader(obj)
	header.Next = g.objects
	g.objects = obj
	g.bytesAllocated += size
}

func (vm *VM) maybeCollect() {
	if vm.gc.bytesAllocated <= vm.gc.nextTrigger {
		return
	}
	vm.collectGarbage()
}

func (vm *VM) collectGarbage() {
	vm.gc.nextTrigger = vm.gc.bytesAllocated * gcHeapGrowFactor
	vm.markRoots()
	vm.traceObjects()
	vm.sweep()
}

func (vm *VM) markRoots() {
	for i := 0; i < len(vm.stack); i++ {
		vm.markValue(vm.stack[i])
	}
	vm.globals.Each(func(_ *value.String, v value.Value) { vm.markValue(v) })
	for i := 0; i < vm.frameCount; i++ {
		vm.markObject(vm.frames[i].closure)
	}
}

func (vm *VM) markValue(v value.Value) {
	if v.Kind == value.KindObj {
		vm.markObject(v.Obj)
	}
}

func (vm *VM) markObject(obj value.Obj) {
	if obj == nil {
		return
	}
	header := gcHeader(obj)
	if header.Marked {
		return
	}
	header.Marked = true
	vm.gc.grayStack = append(vm.gc.grayStack, obj)
}

func (vm *VM) traceObjects() {
	for len(vm.gc.grayStack) > 0 {
		n := len(vm.gc.grayStack) - 1
		obj := vm.gc.grayStack[n]
		vm.gc.grayStack = vm.gc.grayStack[:n]
		vm.blacken(obj)
	}
}

func (vm *VM) blacken(obj value.Obj) {
	switch o := obj.(type) {
	case *value.Native, *value.String:
		// leaf objects, nothing further to mark
	case *value.Function:
		for _, v := range o.Chunk.Constants {
			vm.markValue(v)
		}
	case *value.Closure:
		vm.markObject(o.Fn)
		for _, uv := range o.Upvalues {
			if uv.Closed != nil {
				vm.markValue(*uv.Closed)
			}
		}
	case *value.Class:
		for _, m := range o.Methods {
			vm.markObject(m)
		}
	case *value.Instance:
		vm.markObject(o.Class)
		for _, v := range o.Props {
			vm.markValue(v)
		}
	case *value.BindedMethod:
		vm.markObject(o.Instance)
		vm.markObject(o.Method)
	case *value.Array:
		for _, v := range o.Elements {
			vm.markValue(v)
		}
	}
}

// sweep walks the intrusive object list, splicing out (and, for strings,
// evicting from the intern table) everything left unmarked; what survives
// has Marked reset to false for the next cycle, per qcc/vm_memory.c's sweep.
func (vm *VM) sweep() {
	var prev value.Obj
	cur := vm.gc.objects
	for cur != nil {
		header := gcHeader(cur)
		next := header.Next
		if header.Marked {
			header.Marked = false
			prev = cur
			cur = next
			continue
		}
		if s, ok := cur.(*value.String); ok {
			vm.strings.Delete(s)
		}
		if prev == nil {
			vm.gc.objects = next
		} else {
			gcHeader(prev).Next = next
		}
		cur = next
	}
}

// gcHeader extracts the embedded *value.GCHeader from any Obj variant.
func gcHeader(obj value.Obj) *value.GCHeader {
	switch o := obj.(type) {
	case *value.String:
		return &o.GCHeader
	case *value.Function:
		return &o.GCHeader
	case *value.Closure:
		return &o.GCHeader
	case *value.Native:
		return &o.GCHeader
	case *value.Class:
		return &o.GCHeader
	case *value.Instance:
		return &o.GCHeader
	case *value.BindedMethod:
		return &o.GCHeader
	case *value.Array:
		return &o.GCHeader
	default:
		panic("runtime: unknown Obj variant, cannot reach its GCHeader")
	}
}
