package runtime

import (
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

// intrinsicProperty resolves a property access on a receiver that isn't a
// user-defined Object — exactly two such receivers exist, Array
// and String, both with a fixed method set. Everything here corresponds to
// qcc/array.c's and qcc/string.c's native methods, ported from the
// argv-with-trailing-self convention those use to a Go closure bound over
// the receiver at lookup time, so invoke() can call the result through the
// same callNative path any other Native goes through.
func (vm *VM) intrinsicProperty(recv value.Value, name string) (value.Value, error) {
	if recv.Kind != value.KindObj || recv.Obj == nil {
		return value.Value{}, vm.fault("nil pointer dereference reading '%s'", name)
	}
	switch obj := recv.Obj.(type) {
	case *value.Array:
		return vm.arrayMethod(obj, name)
	case *value.String:
		return vm.stringMethod(obj, name)
	default:
		return value.Value{}, vm.fault("value has no property '%s'", name)
	}
}

func nativeValue(n *value.Native) value.Value {
	return value.Value{Kind: value.KindObj, Obj: n}
}

func (vm *VM) arrayMethod(arr *value.Array, name string) (value.Value, error) {
	switch name {
	case "push":
		return nativeValue(&value.Native{Name: "push", Arity: 1, Fn: func(args []value.Value) (value.Value, error) {
			arr.Elements = append(arr.Elements, args[0])
			return value.Nil(types.NilType()), nil
		}}), nil
	case "get":
		return nativeValue(&value.Native{Name: "get", Arity: 1, Fn: func(args []value.Value) (value.Value, error) {
			idx := int(args[0].Number)
			if idx < 0 {
				return value.Value{}, vm.fault("indexing array with negative number")
			}
			if idx >= len(arr.Elements) {
				return value.Value{}, vm.fault("array index out of limits")
			}
			return arr.Elements[idx], nil
		}}), nil
	case "set":
		return nativeValue(&value.Native{Name: "set", Arity: 2, Fn: func(args []value.Value) (value.Value, error) {
			idx := int(args[0].Number)
			if idx < 0 {
				return value.Value{}, vm.fault("indexing array with negative number")
			}
			if idx >= len(arr.Elements) {
				return value.Value{}, vm.fault("array index out of limits")
			}
			arr.Elements[idx] = args[1]
			return args[1], nil
		}}), nil
	case "length":
		return nativeValue(&value.Native{Name: "length", Arity: 0, Fn: func(args []value.Value) (value.Value, error) {
			return value.Number(float64(len(arr.Elements)), types.NumberType()), nil
		}}), nil
	default:
		return value.Value{}, vm.fault("Array has no method '%s'", name)
	}
}

func (vm *VM) stringMethod(str *value.String, name string) (value.Value, error) {
	switch name {
	case "length":
		return nativeValue(&value.Native{Name: "length", Arity: 0, Fn: func(args []value.Value) (value.Value, error) {
			return value.Number(float64(len(str.Bytes)), types.NumberType()), nil
		}}), nil
	case "get_char":
		return nativeValue(&value.Native{Name: "get_char", Arity: 1, Fn: func(args []value.Value) (value.Value, error) {
			idx := int(args[0].Number)
			if idx < 0 || idx >= len(str.Bytes) {
				return value.Value{}, vm.fault("index out of string bounds")
			}
			c := vm.Intern(string(str.Bytes[idx]))
			return value.FromObj(c, types.StringType()), nil
		}}), nil
	case "to_ascii":
		return nativeValue(&value.Native{Name: "to_ascii", Arity: 0, Fn: func(args []value.Value) (value.Value, error) {
			arr := &value.Array{InnerType: types.NumberType()}
			vm.gc.track(arr, 0)
			for i := 0; i < len(str.Bytes); i++ {
				arr.Elements = append(arr.Elements, value.Number(float64(str.Bytes[i]), types.NumberType()))
			}
			return value.FromObj(arr, vm.Pool.Array(types.NumberType())), nil
		}}), nil
	default:
		return value.Value{}, vm.fault("String has no method '%s'", name)
	}
}
