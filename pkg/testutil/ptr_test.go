package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPtr_Copies(t *testing.T) {
	v := false
	p := Ptr(v)
	v = true

	assert.False(t, *p)
	assert.NotSame(t, Ptr(1), Ptr(1))
}
