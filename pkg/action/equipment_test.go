package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBasicAction(t *testing.T) {
	assert.True(t, isBasicAction("punch the goblin"))
	assert.True(t, isBasicAction("I dodge left"))
	assert.False(t, isBasicAction("slash the goblin"))
	assert.False(t, isBasicAction("ponder the orb"))
}

func TestMatchedVerb(t *testing.T) {
	verb, ok := matchedVerb("I cast a fireball")
	assert.True(t, ok)
	assert.Equal(t, "cast", verb)

	_, ok = matchedVerb("I admire the view")
	assert.False(t, ok)
}

func TestHasAnyCapability(t *testing.T) {
	assert.True(t, hasAnyCapability([]string{"cut", "pry"}, []string{"slash", "cut", "hack", "chop"}))
	assert.False(t, hasAnyCapability([]string{"pry"}, []string{"slash", "cut", "hack", "chop"}))
	assert.False(t, hasAnyCapability(nil, []string{"slash"}))
}
