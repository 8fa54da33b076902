package diskimage

import (
	"fmt"
	"os"

	"github.com/osbuild/diskimage/pkg/copyrange"
)

// RawPartition places a prebuilt filesystem image into the layout as-is.
// It has no populate surface: a single Copy sets its entire content, and
// the filesystem kind only informs the partition table entry. No formatting
// tool ever runs for it.
type RawPartition struct {
	fs    FSType
	label string
	flags []Flag

	tempPath string
	copier   *copyrange.Resolver

	source      string
	sourceBytes uint64
	extraBytes  uint64
	fixedBytes  uint64 // 0 means grow to fit

	staged bool
}

// Copy sets the partition's content to the given file. A second call is
// rejected: a raw partition holds exactly one image.
func (r *RawPartition) Copy(source string) error {
	if r.source != "" {
		return fmt.Errorf("%w: raw partition content is already set", ErrInvalidArguments)
	}
	fi, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: raw partition content %s is not a regular file", ErrInvalidArguments, source)
	}
	r.source = source
	r.sourceBytes = uint64(fi.Size())
	return nil
}

// SetExtraBytes reserves free space behind the content. The gap is zero
// filled when the image is assembled.
func (r *RawPartition) SetExtraBytes(n uint64) {
	r.extraBytes = n
}

// SetFixedSizeBytes pins the partition size, rounded up to a whole block.
func (r *RawPartition) SetFixedSizeBytes(n uint64) {
	r.fixedBytes = bytesToBlocks(n, false) * BlockSize
}

// TotalSizeBytes returns the reserved size: the fixed size when one is set,
// otherwise the source size plus extra, rounded up to whole blocks. Raw
// content carries no filesystem overhead.
func (r *RawPartition) TotalSizeBytes() uint64 {
	if r.fixedBytes != 0 {
		return r.fixedBytes
	}
	return r.neededBytes()
}

func (r *RawPartition) neededBytes() uint64 {
	return bytesToBlocks(r.sourceBytes+r.extraBytes, false) * BlockSize
}

// Check verifies content has been set and still fits a fixed size.
func (r *RawPartition) Check() error {
	if r.source == "" {
		return fmt.Errorf("%w: raw partition has no content", ErrCheckFailed)
	}
	if r.fixedBytes != 0 && r.fixedBytes < r.neededBytes() {
		return fmt.Errorf("%w: fixed size %d is below the %d bytes the content needs",
			ErrCheckFailed, r.fixedBytes, r.neededBytes())
	}
	return nil
}

// build stages the source into a temp file when the reserved size differs
// from the source size, so the merge finds content followed by zeroes.
// When the sizes match the source is merged directly and no temp file
// exists at all.
func (r *RawPartition) build() error {
	r.clean()
	reserved := r.TotalSizeBytes()
	if reserved == r.sourceBytes {
		r.staged = false
		return nil
	}
	r.staged = true
	if err := createSparseFile(r.tempPath, reserved); err != nil {
		return err
	}

	src, err := os.Open(r.source)
	if err != nil {
		return err
	}
	defer src.Close()
	fi, err := src.Stat()
	if err != nil {
		return err
	}
	dst, err := os.OpenFile(r.tempPath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer dst.Close()

	length := fi.Size()
	var copied int64
	for copied < length {
		n, err := r.copier.Copy(src, copied, dst, copied, length-copied)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no copy progress staging %s at byte %d", ErrUnknown, r.source, copied)
		}
		copied += n
	}
	return dst.Close()
}

// clean removes the staging file. The source is the caller's and is never
// touched.
func (r *RawPartition) clean() {
	removeIfExists(r.tempPath)
}

func (r *RawPartition) mergePath() string {
	if r.staged {
		return r.tempPath
	}
	return r.source
}

func (r *RawPartition) filesystem() FSType {
	return r.fs
}

func (r *RawPartition) tableEntry() (string, []Flag) {
	return r.label, r.flags
}
