package fileutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockIsExclusive(t *testing.T) {
	p := filepath.Join(t.TempDir(), "lock")
	f1, err := os.Create(p)
	require.NoError(t, err)
	defer f1.Close()
	f2, err := os.Open(p)
	require.NoError(t, err)
	defer f2.Close()

	l1, err := NewLock(f1)
	require.NoError(t, err)

	_, err = NewLock(f2)
	assert.Error(t, err)

	require.NoError(t, l1.Release())
	l2, err := NewLock(f2)
	assert.NoError(t, err)
	assert.NoError(t, l2.Release())
}
