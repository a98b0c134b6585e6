//go:build linux

package i2cdev

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOpen_Missing reports the device path on failure.
func TestOpen_Missing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "i2c-9")

	_, err := Open(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), path)
}

// TestClosedBus rejects transactions after Close.
func TestClosedBus(t *testing.T) {
	t.Parallel()

	b := &Bus{fd: -1, addr: 0xFFFF, path: "test"}
	require.ErrorIs(t, b.Tx(0x68, []byte{0}, nil), errClosed)
	require.NoError(t, b.Close())
}
