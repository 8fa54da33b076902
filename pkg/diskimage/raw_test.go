package diskimage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osbuild/diskimage/pkg/copyrange"
)

func TestRawPartitionSingleCopy(t *testing.T) {
	d := newTestImage(t, TT_GPT)
	r, err := d.NewRawPartition(FS_EXT4)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Check(), ErrCheckFailed, "no content yet")

	src := filepath.Join(t.TempDir(), "rootfs.img")
	require.NoError(t, os.WriteFile(src, make([]byte, 1000), 0o644))
	require.NoError(t, r.Copy(src))
	assert.ErrorIs(t, r.Copy(src), ErrInvalidArguments)
}

func TestRawPartitionCopyValidation(t *testing.T) {
	d := newTestImage(t, TT_GPT)
	r, err := d.NewRawPartition(FS_FAT16)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Copy(filepath.Join(t.TempDir(), "nope")), ErrInvalidArguments)
	assert.ErrorIs(t, r.Copy(t.TempDir()), ErrInvalidArguments)
}

func TestRawPartitionSizes(t *testing.T) {
	d := newTestImage(t, TT_GPT)
	r, err := d.NewRawPartition(FS_EXT4)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "rootfs.img")
	require.NoError(t, os.WriteFile(src, make([]byte, 1000), 0o644))
	require.NoError(t, r.Copy(src))

	assert.Equal(t, uint64(1024), r.TotalSizeBytes(), "raw content carries no filesystem reserve")

	r.SetExtraBytes(24)
	assert.Equal(t, uint64(1024), r.TotalSizeBytes())

	r.SetFixedSizeBytes(100)
	assert.ErrorIs(t, r.Check(), ErrCheckFailed)

	r.SetFixedSizeBytes(2048)
	assert.Equal(t, uint64(2048), r.TotalSizeBytes())
	assert.NoError(t, r.Check())
}

func TestRawPartitionStaging(t *testing.T) {
	d := newTestImage(t, TT_GPT)
	r, err := d.NewRawPartition(FS_EXT4)
	require.NoError(t, err)

	content := bytes.Repeat([]byte("ab"), 500)
	src := filepath.Join(t.TempDir(), "rootfs.img")
	require.NoError(t, os.WriteFile(src, content, 0o644))
	require.NoError(t, r.Copy(src))
	r.SetFixedSizeBytes(2048)

	require.NoError(t, r.build())

	assert.Equal(t, r.tempPath, r.mergePath())
	staged, err := os.ReadFile(r.tempPath)
	require.NoError(t, err)
	require.Len(t, staged, 2048)
	assert.Equal(t, content, staged[:1000])
	assert.Equal(t, make([]byte, 1048), staged[1000:], "the reservation tail stays zero")

	r.clean()
	assert.NoFileExists(t, r.tempPath)
	assert.FileExists(t, src, "the source belongs to the caller")
}

func TestRawPartitionMergesSourceDirectly(t *testing.T) {
	d := newTestImage(t, TT_GPT)
	r, err := d.NewRawPartition(FS_EXT4)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "rootfs.img")
	require.NoError(t, os.WriteFile(src, make([]byte, 1024), 0o644))
	require.NoError(t, r.Copy(src))

	require.NoError(t, r.build())
	assert.Equal(t, src, r.mergePath())
	assert.NoFileExists(t, r.tempPath, "a block sized source needs no staging file")
}

func TestRawPartitionStagingStalls(t *testing.T) {
	d := newTestImage(t, TT_GPT)
	r, err := d.NewRawPartition(FS_EXT4)
	require.NoError(t, err)
	r.copier = copyrange.NewResolver("stuck", func(src *os.File, srcOff int64, dst *os.File, dstOff int64, length int64) (int64, error) {
		return 0, nil
	})

	src := filepath.Join(t.TempDir(), "rootfs.img")
	require.NoError(t, os.WriteFile(src, make([]byte, 1000), 0o644))
	require.NoError(t, r.Copy(src))
	r.SetFixedSizeBytes(2048)

	err = r.build()
	r.clean()
	assert.ErrorIs(t, err, ErrUnknown)
}
