package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTransformations(t *testing.T) {
	result, err := ParseTransformations("rotate:degrees=90;zoom:percent=150")
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "rotate", result[0].Name)
	assert.Equal(t, "90", result[0].Arguments["degrees"])
	assert.Equal(t, "zoom", result[1].Name)
	assert.Equal(t, "150", result[1].Arguments["percent"])
}

func TestParseTransformations_Empty(t *testing.T) {
	result, err := ParseTransformations("  ")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestParseTransformations_NoArguments(t *testing.T) {
	result, err := ParseTransformations("flip")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "flip", result[0].Name)
	assert.Nil(t, result[0].Arguments)
}

func TestParseTransformations_MalformedArgument(t *testing.T) {
	_, err := ParseTransformations("rotate:degrees")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
