package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelection(t *testing.T) {
	people := makePeople(5)
	orig := append([]person(nil), people...)
	sel := NewSelection(personKey)

	assert.True(t, sel.Toggle(people[2]))
	assert.True(t, sel.Toggle(people[0]))
	assert.Equal(t, []string{"u03", "u01"}, sel.Keys())

	assert.False(t, sel.Toggle(people[2]))
	assert.False(t, sel.Has("u03"))
	assert.Equal(t, 1, sel.Len())

	sel.SelectAll(people)
	assert.Equal(t, []string{"u01", "u02", "u03", "u04", "u05"}, sel.Keys())
	assert.Len(t, sel.Rows(), 5)

	sel.Retain(people[3:])
	assert.Equal(t, []string{"u04", "u05"}, sel.Keys())
	assert.Equal(t, people[3:], sel.Rows())

	sel.RemoveSelectAll()
	assert.Zero(t, sel.Len())
	assert.Empty(t, sel.Rows())

	assert.Equal(t, orig, people, "rows must not be mutated")
}

func TestSelection_KeysIsCopy(t *testing.T) {
	sel := NewSelection(personKey)
	sel.SelectAll(makePeople(2))
	keys := sel.Keys()
	keys[0] = "zz"
	assert.True(t, sel.Has("u01"))
	assert.Equal(t, "u01", sel.Keys()[0])
}
