package memory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-memory/memory"
)

func TestNamespace_Validate(t *testing.T) {
	assert.NoError(t, memory.NewNamespace("user_facts", "user123").Validate())

	for name, ns := range map[string]memory.Namespace{
		"empty":         nil,
		"empty segment": {"episodes", ""},
		"separator":     {"a/b"},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, ns.Validate(), memory.ErrInvalidNamespace)
		})
	}
}

func TestNamespace_HasPrefix(t *testing.T) {
	ns := memory.NewNamespace("user_facts", "user123")

	assert.True(t, ns.HasPrefix(nil))
	assert.True(t, ns.HasPrefix(memory.NewNamespace("user_facts")))
	assert.True(t, ns.HasPrefix(ns))
	assert.False(t, ns.HasPrefix(memory.NewNamespace("user_facts", "user1234")))
	assert.False(t, ns.HasPrefix(memory.NewNamespace("user_facts", "user123", "x")))
	assert.False(t, ns.HasPrefix(memory.NewNamespace("episodes")))
}

func TestNamespace_Resolve(t *testing.T) {
	tmpl := memory.NewNamespace("episodes", "{user_id}")
	require.True(t, tmpl.IsTemplate())

	ns, err := tmpl.Resolve("user123")
	require.NoError(t, err)
	assert.Equal(t, "episodes/user123", ns.String())
	assert.False(t, ns.IsTemplate())

	_, err = tmpl.Resolve("")
	assert.ErrorIs(t, err, memory.ErrInvalidNamespace)

	// Fixed namespaces resolve to themselves regardless of user
	fixed := memory.NewNamespace("memories")
	ns, err = fixed.Resolve("")
	require.NoError(t, err)
	assert.True(t, ns.Equal(fixed))
}

func TestParseNamespace(t *testing.T) {
	assert.Nil(t, memory.ParseNamespace(""))
	assert.Equal(t, memory.Namespace{"user_facts", "user123"}, memory.ParseNamespace("user_facts/user123"))
}
