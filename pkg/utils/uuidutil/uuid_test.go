package uuidutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUUID(t *testing.T) {
	id := UUID()
	assert.Len(t, id, 32)
	assert.NotEqual(t, id, UUID())
}

func TestShortUUID(t *testing.T) {
	id := ShortUUID()
	assert.GreaterOrEqual(t, len(id), 22)
	assert.False(t, strings.ContainsAny(id, "-_"))
	assert.NotEqual(t, id, ShortUUID())
}
