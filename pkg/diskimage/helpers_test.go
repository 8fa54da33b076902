package diskimage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// toolDir makes an empty directory the test's entire PATH and returns it.
func toolDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PATH", dir)
	return dir
}

// fakeTool drops an executable shell script named like a real tool into dir.
func fakeTool(t *testing.T, dir, name, script string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nPATH=\"$PATH:/usr/bin:/bin\"\n"+script+"\n"), 0o755))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

// newTestImage returns a builder whose destination lives in a fresh temp
// directory.
func newTestImage(t *testing.T, table TableType) *DiskImage {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "disk.img"), table)
	require.NoError(t, err)
	return d
}
