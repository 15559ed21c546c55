package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	s := String()
	assert.True(t, strings.HasPrefix(s, "groundcheck "))
	assert.Contains(t, s, "commit:")
	assert.Contains(t, s, "go:")
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}
