package npyarchive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sbinet/npyio"
	"github.com/stretchr/testify/require"
)

func TestWriteBuffer(t *testing.T) {
	dir := t.TempDir()
	a, err := New(filepath.Join(dir, "captures"))
	require.NoError(t, err)

	data := []uint16{1, 2, 3, 4095}
	fname, err := a.WriteBuffer("01JTESTSESSIONID", 0, data)
	require.NoError(t, err)

	f, err := os.Open(fname)
	require.NoError(t, err)
	defer f.Close()

	var back []uint16
	require.NoError(t, npyio.Read(f, &back))
	require.Equal(t, data, back)
}
