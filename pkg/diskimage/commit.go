package diskimage

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// commitState tracks where in the pipeline a commit is, mostly for logs and
// failure diagnostics.
type commitState uint64

const (
	stateInit commitState = iota
	stateSparseAlloc
	stateTableWrite
	statePartitionBuild
	stateSizeVerify
	stateMergeCopy
	statePublish
	stateCleanup
	stateCleanupOnError
)

func (s commitState) String() string {
	switch s {
	case stateInit:
		return "INIT"
	case stateSparseAlloc:
		return "SPARSE_ALLOC"
	case stateTableWrite:
		return "TABLE_WRITE"
	case statePartitionBuild:
		return "PER_PARTITION_BUILD"
	case stateSizeVerify:
		return "SIZE_VERIFY"
	case stateMergeCopy:
		return "MERGE_COPY"
	case statePublish:
		return "PUBLISH"
	case stateCleanup:
		return "CLEANUP"
	case stateCleanupOnError:
		return "CLEANUP_ON_ERROR"
	default:
		panic(fmt.Sprintf("unknown commit state with enum value %d", uint64(s)))
	}
}

func (d *DiskImage) transition(s commitState) {
	d.state = s
	logrus.Debugf("commit %s: %s", d.path, s)
}

// Commit assembles the image and moves it to the destination path. On
// failure the destination is left untouched and the error is returned as it
// occurred, after the cleanup policy has been applied. A DiskImage commits
// at most once.
func (d *DiskImage) Commit() error {
	if d.committed {
		return fmt.Errorf("%w: the image is already committed", ErrInvalidArguments)
	}

	err := d.commit()
	if err == nil {
		d.committed = true
		d.transition(stateCleanup)
		if d.cleanup != CleanupNever {
			d.cleanPartitions()
		}
		return nil
	}

	failedIn := d.state
	d.transition(stateCleanupOnError)
	logrus.Errorf("commit %s failed in state %s: %v", d.path, failedIn, err)
	if d.cleanup == CleanupAlways {
		d.cleanPartitions()
		removeIfExists(d.tempPath("image"))
	}
	return err
}

func (d *DiskImage) commit() error {
	d.transition(stateInit)
	segs := d.planLayout()
	tempImage := d.tempPath("image")

	d.transition(stateSparseAlloc)
	if err := createSparseFile(tempImage, d.SizeBytes()); err != nil {
		return err
	}

	d.transition(stateTableWrite)
	strategy, err := d.newPart(tempImage, d.table)
	if err != nil {
		return err
	}
	for i, part := range d.partitions {
		label, flags := part.tableEntry()
		if err := strategy.NewPartition(segs[i].startBlocks, segs[i].sizeBlocks, part.filesystem(), label, flags); err != nil {
			return err
		}
	}
	if err := strategy.Commit(); err != nil {
		return err
	}

	d.transition(statePartitionBuild)
	if err := d.Check(); err != nil {
		return err
	}
	for _, part := range d.partitions {
		if err := part.build(); err != nil {
			return err
		}
	}

	// The build tools got free rein on the partition temp files; make sure
	// none outgrew the space the layout reserved before bytes start moving.
	d.transition(stateSizeVerify)
	for i, part := range d.partitions {
		fi, err := os.Stat(part.mergePath())
		if err != nil {
			return err
		}
		if reserved := int64(segs[i].sizeBlocks) * BlockSize; fi.Size() > reserved {
			return fmt.Errorf("%w: partition %d grew to %d bytes, beyond its reserved %d",
				ErrUnknown, i+1, fi.Size(), reserved)
		}
	}

	d.transition(stateMergeCopy)
	img, err := os.OpenFile(tempImage, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer img.Close()
	for i, part := range d.partitions {
		if err := d.mergePartition(img, part, segs[i]); err != nil {
			return err
		}
	}
	if err := img.Close(); err != nil {
		return err
	}

	d.transition(statePublish)
	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Rename(tempImage, d.path)
}

// mergePartition copies a partition's content to its place in the image.
// Only the bytes the content file really has move; the sparse tail of the
// reservation stays holes.
func (d *DiskImage) mergePartition(img *os.File, part member, seg segment) error {
	source := part.mergePath()
	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return err
	}
	length := fi.Size()
	offset := int64(seg.startBlocks) * BlockSize

	var copied int64
	for copied < length {
		n, err := d.copier.Copy(src, copied, img, offset+copied, length-copied)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no copy progress merging %s at byte %d", ErrUnknown, source, copied)
		}
		copied += n
	}
	return nil
}

func (d *DiskImage) cleanPartitions() {
	for _, part := range d.partitions {
		part.clean()
	}
}

// createSparseFile makes path a hole-only file of exactly size bytes,
// replacing previous content.
func createSparseFile(path string, size uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func removeIfExists(path string) {
	if err := os.Remove(path); err == nil {
		logrus.Debugf("removed %s", path)
	} else if !os.IsNotExist(err) {
		logrus.Warnf("could not remove %s: %v", path, err)
	}
}
