package types_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quartz.dev/qcc/pkg/types"
)

func TestSimpleTypesAreSingletons(t *testing.T) {
	assert.Same(t, types.NumberType(), types.NumberType())
	assert.Same(t, types.AnyType(), types.AnyType())
}

func TestAliasResolvesTransitively(t *testing.T) {
	pool := types.NewPool()
	inner := pool.Alias("Inner", types.NumberType())
	outer := pool.Alias("Outer", inner)

	assert.True(t, types.Equals(outer, types.NumberType()))
	assert.Same(t, types.NumberType(), types.Resolve(outer))
}

func TestFunctionTypeInterning(t *testing.T) {
	pool := types.NewPool()
	a := pool.Function([]*types.Type{types.NumberType()}, types.BoolType())
	b := pool.Function([]*types.Type{types.NumberType()}, types.BoolType())
	c := pool.Function([]*types.Type{types.StringType()}, types.BoolType())

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.True(t, types.Equals(a, b))
	assert.False(t, types.Equals(a, c))
}

func TestClassEqualityByName(t *testing.T) {
	pool := types.NewPool()
	foo1 := pool.Class("Foo")
	foo2 := pool.Class("Foo")
	bar := pool.Class("Bar")

	assert.Same(t, foo1, foo2)
	assert.True(t, types.Equals(foo1, foo2))
	assert.False(t, types.Equals(foo1, bar))
}

func TestAnyIsAssignableBothWays(t *testing.T) {
	assert.True(t, types.AssignableTo(types.AnyType(), types.NumberType()))
	assert.True(t, types.AssignableTo(types.NumberType(), types.AnyType()))
}

func TestUnknownIsBottom(t *testing.T) {
	assert.True(t, types.AssignableTo(types.UnknownType(), types.StringType()))
}

func TestPoolSurvivesBeyondBucketBoundary(t *testing.T) {
	pool := types.NewPool()
	var classTypes []*types.Type
	for i := 0; i < 1000; i++ {
		classTypes = append(classTypes, pool.Class(string(rune('A'+i%26))+"x"))
	}
	// References taken early must still read back correctly after the pool
	// has grown across many bucket boundaries.
	first := classTypes[0]
	assert.Equal(t, "Ax", first.Name)
}

func TestArrayAndObjectInterning(t *testing.T) {
	pool := types.NewPool()
	arr1 := pool.Array(types.NumberType())
	arr2 := pool.Array(types.NumberType())
	assert.Same(t, arr1, arr2)

	class := pool.Class("Point")
	obj1 := pool.Object(class)
	obj2 := pool.Object(class)
	assert.Same(t, obj1, obj2)
}
