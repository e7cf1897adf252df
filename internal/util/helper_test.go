package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSlice(t *testing.T) {
	src := []byte{1, 2, 3}

	clone := CloneSlice(src, 0)
	assert.Equal(t, src, clone)
	clone[0] = 9
	assert.Equal(t, byte(1), src[0])

	assert.Equal(t, []byte{1, 2, 3, 0}, CloneSlice(src, 4))
	assert.Equal(t, []byte{1}, CloneSlice(src, 1))
}

func TestAppendFloat64Slice(t *testing.T) {
	assert.Equal(t, []float64{1, -2}, AppendFloat64Slice(nil, []int32{1, -2}))
	assert.Equal(t, []float64{0.5, 1.5, 0.25}, AppendFloat64Slice([]float64{0.5}, []float32{1.5, 0.25}))
	assert.Empty(t, AppendFloat64Slice(nil, []float64{}))
}
