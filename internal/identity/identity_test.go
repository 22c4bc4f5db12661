package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStaticSignInOut(t *testing.T) {
	p := NewStatic("player-1")
	id, ok := p.Identity()
	assert.True(t, ok)
	assert.Equal(t, "player-1", id)

	p.SignOut()
	_, ok = p.Identity()
	assert.False(t, ok)

	p.SignIn("player-2")
	id, ok = p.Identity()
	assert.True(t, ok)
	assert.Equal(t, "player-2", id)
}

func TestEmptyStaticIsSignedOut(t *testing.T) {
	var p Provider = NewStatic("")
	_, ok := p.Identity()
	assert.False(t, ok)
}
