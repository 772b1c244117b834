package typeid

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDsCarryPrefix(t *testing.T) {
	id := NewElementID()
	assert.True(t, strings.HasPrefix(id, PrefixElement+"_"), id)
	require.NoError(t, Validate(id, PrefixElement))
	assert.Error(t, Validate(id, PrefixTemplate))
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id := NewTemplateID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	assert.Error(t, Validate("not an id", PrefixAsset))
}
