package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeAndScalarConstructors(t *testing.T) {
	assert.Equal(t, Object{Type: TypeShape, Key: "basins"}, Shape("basins"))
	assert.Equal(t, Object{Type: TypeScalar, ClassID: "3"}, Scalar("3"))
}

func TestValidate(t *testing.T) {
	require.NoError(t, Shape("basins").Validate())
	require.NoError(t, Scalar("1").Validate())

	assert.ErrorIs(t, Shape("").Validate(), ErrMissingKey)
	assert.ErrorIs(t, Scalar("").Validate(), ErrMissingClassID)
	assert.ErrorIs(t, Object{Type: "raster"}.Validate(), ErrUnknownType)
}

func TestWireNames(t *testing.T) {
	b, err := json.Marshal(Scalar("7"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"scalar","classId":"7"}`, string(b))

	b, err = json.Marshal(Shape("basins"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"shape","key":"basins"}`, string(b))
}

func TestString(t *testing.T) {
	assert.Equal(t, "shape:basins", Shape("basins").String())
	assert.Equal(t, "scalar:2", Scalar("2").String())
}
