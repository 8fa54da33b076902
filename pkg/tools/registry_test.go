package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCachesInstances(t *testing.T) {
	a, err := Mkfs("ext4")
	require.NoError(t, err)
	b, err := Mkfs("ext4")
	require.NoError(t, err)
	assert.Same(t, a, b)

	pa, err := Populate("fat16")
	require.NoError(t, err)
	pb, err := Populate("fat16")
	require.NoError(t, err)
	assert.Same(t, pa, pb)

	assert.Same(t, Sfdisk(), Sfdisk())
}

func TestRegistryKnowsEveryFilesystem(t *testing.T) {
	for _, fs := range []string{"ext2", "ext3", "ext4", "fat12", "fat16", "fat32"} {
		t.Run(fs, func(t *testing.T) {
			_, err := Mkfs(fs)
			assert.NoError(t, err)
			_, err = Populate(fs)
			assert.NoError(t, err)
		})
	}
}

func TestRegistryUnknownFilesystem(t *testing.T) {
	_, err := Mkfs("zfs")
	assert.ErrorIs(t, err, ErrToolNotFound)

	_, err = Populate("btrfs")
	assert.ErrorIs(t, err, ErrToolNotFound)
}
