package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopulateFATCommands(t *testing.T) {
	dir := toolDir(t)
	mmdLog := filepath.Join(dir, "mmd.log")
	mcopyLog := filepath.Join(dir, "mcopy.log")
	fakeTool(t, dir, "mmd", `printf '%s\n' "$@" >> "`+mmdLog+`"`)
	fakeTool(t, dir, "mcopy", `printf '%s\n' "$@" >> "`+mcopyLog+`"`)

	work := t.TempDir()
	file := filepath.Join(work, "boot.img")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	tree := filepath.Join(work, "configs")
	require.NoError(t, os.Mkdir(tree, 0o755))

	p := newPopulateFAT()
	require.True(t, p.Check())
	require.NoError(t, p.Populate("fat.img", []Action{
		MkdirAction{Dirs: []string{"boot", "data"}},
		CopyAction{Sources: []string{file}, Destination: "/boot"},
		CopyTreeAction{Sources: []string{tree}, Destination: "/"},
	}))

	assert.Equal(t, "-i\nfat.img\n::boot\n::data\n", readFile(t, mmdLog))

	want := "-i\nfat.img\n-bQ\n" + file + "\n::boot\n" +
		"-i\nfat.img\n-bsQ\n" + tree + "\n::\n"
	assert.Equal(t, want, readFile(t, mcopyLog))
}

func TestPopulateFATSkipsEmptyActions(t *testing.T) {
	dir := toolDir(t)
	mmdLog := argvRecorder(t, dir, "mmd")
	mcopyLog := argvRecorder(t, dir, "mcopy")

	p := newPopulateFAT()
	require.NoError(t, p.Populate("fat.img", []Action{
		MkdirAction{},
		CopyAction{Destination: "/"},
		CopyTreeAction{Destination: "/"},
	}))

	assert.NoFileExists(t, mmdLog)
	assert.NoFileExists(t, mcopyLog)
}

func TestPopulateFATPropagatesToolFailure(t *testing.T) {
	dir := toolDir(t)
	fakeTool(t, dir, "mmd", `exit 0`)
	fakeTool(t, dir, "mcopy", `echo "Cannot initialize drive"; exit 1`)

	p := newPopulateFAT()
	err := p.Populate("fat.img", []Action{
		CopyAction{Sources: []string{"/no/such.img"}, Destination: "/"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot initialize drive")
}

func TestPopulateFATCheckNeedsBothTools(t *testing.T) {
	dir := toolDir(t)
	fakeTool(t, dir, "mmd", `exit 0`)

	p := newPopulateFAT()
	assert.False(t, p.Check(), "mcopy is missing")
}
