package diskimage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSfdiskScript(t *testing.T) {
	s, err := NewSfdisk("/tmp/disk.img", TT_MSDOS)
	require.NoError(t, err)
	require.NoError(t, s.NewPartition(32, 98304, FS_FAT16, "", []Flag{FlagBoot}))
	require.NoError(t, s.NewPartition(98336, 32768, FS_EXT4, "", nil))

	want := "unit: sectors\n" +
		"label: dos\n" +
		"grain: 512\n" +
		"start=32, size=98304, type=6, bootable\n" +
		"start=98336, size=32768, type=83"
	assert.Equal(t, want, s.(*Sfdisk).script())
}

func TestSfdiskOnlyMSDOS(t *testing.T) {
	_, err := NewSfdisk("/tmp/disk.img", TT_GPT)
	assert.ErrorIs(t, err, ErrInvalidArguments)
	_, err = NewSfdisk("/tmp/disk.img", TT_NULL)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestSfdiskRejections(t *testing.T) {
	s, err := NewSfdisk("/tmp/disk.img", TT_MSDOS)
	require.NoError(t, err)
	assert.ErrorIs(t, s.NewPartition(32, 2048, FS_EXT4, "root", nil), ErrInvalidArguments)
	assert.ErrorIs(t, s.NewPartition(32, 2048, FS_EXT4, "", []Flag{FlagSwap}), ErrInvalidArguments)
	assert.ErrorIs(t, s.NewPartition(32, 2048, FS_NONE, "", nil), ErrInvalidArguments)
}

func TestSfdiskCommitPipesScript(t *testing.T) {
	dir := toolDir(t)
	log := filepath.Join(dir, "sfdisk.argv")
	captured := filepath.Join(dir, "sfdisk.stdin")
	fakeTool(t, dir, "sfdisk", `cat > "`+captured+`"; printf '%s\n' "$@" > "`+log+`"`)

	s, err := NewSfdisk("disk.img", TT_MSDOS)
	require.NoError(t, err)
	require.NoError(t, s.NewPartition(32, 2048, FS_FAT16, "", nil))
	require.NoError(t, s.Commit())

	assert.Equal(t, "disk.img\n--no-reread\n--no-tell-kernel\n", readFile(t, log))
	assert.Equal(t, "unit: sectors\nlabel: dos\ngrain: 512\nstart=32, size=2048, type=4", readFile(t, captured))
}
