package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"quartz.dev/qcc/pkg/bytecode"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

func TestTruthiness(t *testing.T) {
	assert.True(t, value.Number(1, types.NumberType()).Truthy())
	assert.False(t, value.Number(0, types.NumberType()).Truthy())
	assert.False(t, value.Nil(types.NilType()).Truthy())
	assert.True(t, value.Bool_(true, types.BoolType()).Truthy())
	assert.False(t, value.Bool_(false, types.BoolType()).Truthy())
}

func TestStringEqualityIsByContent(t *testing.T) {
	a := &value.String{Bytes: "hi"}
	b := &value.String{Bytes: "hi"}
	assert.True(t, value.ObjEqual(a, b))
}

func TestChunkConstantFormSwitchesOnIndex(t *testing.T) {
	c := &value.Chunk{}
	for i := 0; i < 300; i++ {
		c.AddConstant(value.Number(float64(i), types.NumberType()), types.NumberType())
	}
	c.WriteConstant(0, 1)
	assert.Equal(t, byte(bytecode.CONSTANT), c.Code[0])

	c2 := &value.Chunk{}
	for i := 0; i <= 0xFF; i++ {
		c2.AddConstant(value.Number(float64(i), types.NumberType()), types.NumberType())
	}
	c2.WriteConstant(0x100, 1)
	assert.Equal(t, byte(bytecode.CONSTANT_LONG), c2.Code[0])
}

func TestJumpPatchComputesForwardDistance(t *testing.T) {
	c := &value.Chunk{}
	offset := c.EmitJump(bytecode.JUMP, 1)
	c.WriteOp(bytecode.NOP, 2)
	c.WriteOp(bytecode.NOP, 2)
	c.PatchJump(offset)
	assert.Equal(t, uint16(2), c.ReadU16(offset))
}
