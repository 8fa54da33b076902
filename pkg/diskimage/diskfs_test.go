package diskimage

import (
	"path/filepath"
	"testing"

	"github.com/diskfs/go-diskfs"
	"github.com/diskfs/go-diskfs/partition/gpt"
	"github.com/diskfs/go-diskfs/partition/mbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskfsOnlyRealTables(t *testing.T) {
	_, err := NewDiskfs("/tmp/disk.img", TT_NULL)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDiskfsWritesGPT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, createSparseFile(path, (64+16384+64)*BlockSize))

	s, err := NewDiskfs(path, TT_GPT)
	require.NoError(t, err)
	require.NoError(t, s.NewPartition(64, 16384, FS_EXT4, "root", []Flag{FlagLegacyBoot}))
	require.NoError(t, s.Commit())

	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	require.NoError(t, err)
	defer d.Close()
	table, err := d.GetPartitionTable()
	require.NoError(t, err)

	gptTable, ok := table.(*gpt.Table)
	require.True(t, ok, "expected a gpt table, got %T", table)
	require.NotEmpty(t, gptTable.Partitions)
	part := gptTable.Partitions[0]
	assert.Equal(t, uint64(64), part.Start)
	assert.Equal(t, uint64(64+16384-1), part.End)
	assert.Equal(t, "root", part.Name)
	assert.Equal(t, gpt.Type(FilesystemDataGUID), part.Type)
	assert.NotZero(t, part.Attributes&gptAttrLegacyBIOSBootable)
}

func TestDiskfsWritesMBR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, createSparseFile(path, (32+98304+32768)*BlockSize))

	s, err := NewDiskfs(path, TT_MSDOS)
	require.NoError(t, err)
	require.NoError(t, s.NewPartition(32, 98304, FS_FAT16, "", []Flag{FlagBoot}))
	require.NoError(t, s.NewPartition(98336, 32768, FS_EXT4, "", nil))
	require.NoError(t, s.Commit())

	d, err := diskfs.Open(path, diskfs.WithOpenMode(diskfs.ReadOnly))
	require.NoError(t, err)
	defer d.Close()
	table, err := d.GetPartitionTable()
	require.NoError(t, err)

	mbrTable, ok := table.(*mbr.Table)
	require.True(t, ok, "expected an mbr table, got %T", table)
	require.GreaterOrEqual(t, len(mbrTable.Partitions), 2)
	assert.Equal(t, uint32(32), mbrTable.Partitions[0].Start)
	assert.Equal(t, uint32(98304), mbrTable.Partitions[0].Size)
	assert.Equal(t, mbr.Type(0x06), mbrTable.Partitions[0].Type)
	assert.True(t, mbrTable.Partitions[0].Bootable)
	assert.Equal(t, uint32(98336), mbrTable.Partitions[1].Start)
	assert.Equal(t, mbr.Type(0x83), mbrTable.Partitions[1].Type)
	assert.False(t, mbrTable.Partitions[1].Bootable)
}

func TestDiskfsVerifyCatchesDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.img")
	require.NoError(t, createSparseFile(path, (64+2048+64)*BlockSize))

	s, err := NewDiskfs(path, TT_GPT)
	require.NoError(t, err)
	require.NoError(t, s.NewPartition(64, 2048, FS_EXT4, "", nil))
	require.NoError(t, s.Commit())

	ghost := &Diskfs{imagePath: path, table: TT_GPT, requests: []segment{{startBlocks: 96, sizeBlocks: 2048}}}
	assert.ErrorIs(t, ghost.verify(), ErrUnknown)
}

func TestDiskfsGPTFlagTypes(t *testing.T) {
	s, err := NewDiskfs("/tmp/disk.img", TT_GPT)
	require.NoError(t, err)
	impl := s.(*Diskfs)

	require.NoError(t, s.NewPartition(64, 2048, FS_FAT32, "", []Flag{FlagBoot}))
	require.NoError(t, s.NewPartition(2112, 2048, FS_EXT4, "", []Flag{FlagSwap}))
	require.NoError(t, s.NewPartition(4160, 2048, FS_FAT16, "", nil))
	require.NoError(t, s.NewPartition(6208, 2048, FS_EXT4, "", []Flag{FlagHidden}))

	assert.Equal(t, gpt.Type(EFISystemPartitionGUID), impl.gptParts[0].Type)
	assert.Equal(t, gpt.Type(SwapPartitionGUID), impl.gptParts[1].Type)
	assert.Equal(t, gpt.Type(MicrosoftBasicDataGUID), impl.gptParts[2].Type, "plain FAT stores as basic data")
	assert.Equal(t, gpt.Type(FilesystemDataGUID), impl.gptParts[3].Type)
	assert.NotZero(t, impl.gptParts[3].Attributes&gptAttrHidden)

	err = s.NewPartition(8256, 2048, FS_EXT4, "", []Flag{FlagPalo})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	err = s.NewPartition(8256, 2048, FS_EXT4, "", []Flag{FlagRoot})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	err = s.NewPartition(8256, 2048, FS_FAT32, "", []Flag{FlagLBA})
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDiskfsMBRFlagTypes(t *testing.T) {
	s, err := NewDiskfs("/tmp/disk.img", TT_MSDOS)
	require.NoError(t, err)
	impl := s.(*Diskfs)

	require.NoError(t, s.NewPartition(32, 2048, FS_FAT16, "", []Flag{FlagHidden}))
	require.NoError(t, s.NewPartition(2080, 98304, FS_FAT16, "", []Flag{FlagLBA}))
	require.NoError(t, s.NewPartition(100384, 2048, FS_EXT4, "", []Flag{FlagSwap}))

	assert.Equal(t, mbr.Type(0x14), impl.mbrParts[0].Type, "hidden shifts the FAT type byte")
	assert.Equal(t, mbr.Type(0x0e), impl.mbrParts[1].Type)
	assert.Equal(t, mbr.Type(0x82), impl.mbrParts[2].Type)

	err = s.NewPartition(102432, 2048, FS_EXT4, "", []Flag{FlagLBA})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	err = s.NewPartition(102432, 2048, FS_EXT4, "", []Flag{FlagHidden})
	assert.ErrorIs(t, err, ErrInvalidArguments)
	err = s.NewPartition(102432, 2048, FS_EXT4, "root", nil)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestDiskfsMBRLimit(t *testing.T) {
	s, err := NewDiskfs("/tmp/disk.img", TT_MSDOS)
	require.NoError(t, err)
	err = s.NewPartition(32, 1<<32, FS_EXT4, "", nil)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}
