package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShapeID(t *testing.T) {
	id := NewShapeID()
	assert.True(t, strings.HasPrefix(id, PrefixShape+"_"), id)
	require.NoError(t, Validate(id, PrefixShape))
	assert.NotEqual(t, id, NewShapeID())
}

func TestValidate_WrongPrefix(t *testing.T) {
	err := Validate(NewPlanID(), PrefixUser)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected prefix "user"`)
}

func TestValidate_Garbage(t *testing.T) {
	assert.Error(t, Validate("not an id", PrefixPlan))
}
