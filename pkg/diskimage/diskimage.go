// Package diskimage assembles bootable disk images from declarative
// partition descriptions.
//
// A DiskImage collects partitions, each accounting for the size its content
// will need, and lays them out on a fixed 512 byte block grid. Commit then
// builds every partition in its own temp file next to the destination,
// writes the partition table, merges everything into a sparse image and
// moves it into place in one rename. A failed commit never leaves a partial
// file at the destination path.
//
// The partition table itself is written by a pluggable strategy: an
// in-process one built on go-diskfs (GPT and MSDOS), a script based one
// driving sfdisk (MSDOS), and a no-op one for images without a table.
// Filesystems are created and filled by external tools, see pkg/tools.
package diskimage

import (
	"fmt"

	"github.com/osbuild/diskimage/pkg/copyrange"
)

// member is the capability surface the commit pipeline needs from both
// partition variants.
type member interface {
	TotalSizeBytes() uint64
	Check() error
	build() error
	clean()
	mergePath() string
	filesystem() FSType
	tableEntry() (label string, flags []Flag)
}

// DiskImage assembles a disk image at a destination path. Declare
// partitions, add content, then Commit exactly once.
type DiskImage struct {
	path        string
	table       TableType
	tempPattern string
	cleanup     CleanupPolicy
	newPart     NewPartitionerFunc
	copier      *copyrange.Resolver

	partitions []member
	state      commitState
	committed  bool

	leadingPaddingBytes  uint64
	trailingPaddingBytes uint64
}

// Option adjusts a DiskImage at construction time.
type Option func(*DiskImage)

// WithPartitioner selects the strategy writing the partition table. The
// default is the go-diskfs strategy, or the null strategy for table-less
// images.
func WithPartitioner(f NewPartitionerFunc) Option {
	return func(d *DiskImage) { d.newPart = f }
}

// WithTempPattern sets the fmt pattern for temp artifact names. It is given
// the destination path and a per artifact suffix ("p1", "p2", ...,
// "image"); the default is "%s-%s.tmp".
func WithTempPattern(pattern string) Option {
	return func(d *DiskImage) { d.tempPattern = pattern }
}

// WithCleanupPolicy controls which temp artifacts a commit removes.
func WithCleanupPolicy(p CleanupPolicy) Option {
	return func(d *DiskImage) { d.cleanup = p }
}

// WithCopyResolver overrides the mechanism merging partition content into
// the image.
func WithCopyResolver(r *copyrange.Resolver) Option {
	return func(d *DiskImage) { d.copier = r }
}

// New returns a builder for an image at path with the given partition table
// type.
func New(path string, table TableType, opts ...Option) (*DiskImage, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: image path must not be empty", ErrInvalidArguments)
	}
	switch table {
	case TT_GPT, TT_MSDOS, TT_NULL:
	default:
		return nil, fmt.Errorf("%w: unknown partition table type with enum value %d", ErrInvalidArguments, uint64(table))
	}

	d := &DiskImage{
		path:        path,
		table:       table,
		tempPattern: "%s-%s.tmp",
		cleanup:     CleanupAlways,
		copier:      copyrange.Default(),
	}
	d.leadingPaddingBytes, d.trailingPaddingBytes = tablePadding(table)
	for _, opt := range opts {
		opt(d)
	}
	if d.newPart == nil {
		if table == TT_NULL {
			d.newPart = NewNull
		} else {
			d.newPart = NewDiskfs
		}
	}
	return d, nil
}

// Path returns the destination the image will be committed to.
func (d *DiskImage) Path() string {
	return d.path
}

func (d *DiskImage) tempPath(suffix string) string {
	return fmt.Sprintf(d.tempPattern, d.path, suffix)
}

// PartitionOption adjusts a partition at creation time.
type PartitionOption func(*partitionConfig)

type partitionConfig struct {
	label   string
	fsLabel string
	flags   []Flag
}

// WithPartitionLabel names the partition in the table. Only GPT stores
// labels.
func WithPartitionLabel(label string) PartitionOption {
	return func(c *partitionConfig) { c.label = label }
}

// WithPartitionFlags marks the partition's roles in the table.
func WithPartitionFlags(flags ...Flag) PartitionOption {
	return func(c *partitionConfig) { c.flags = append(c.flags, flags...) }
}

// WithFilesystemLabel passes a volume label to the formatting tool.
func WithFilesystemLabel(label string) PartitionOption {
	return func(c *partitionConfig) { c.fsLabel = label }
}

func (d *DiskImage) newPartitionConfig(fs FSType, opts ...PartitionOption) (*partitionConfig, error) {
	if d.committed {
		return nil, fmt.Errorf("%w: the image is already committed", ErrInvalidArguments)
	}
	if fs == FS_NONE {
		return nil, fmt.Errorf("%w: a partition needs a filesystem type", ErrInvalidArguments)
	}
	if d.table == TT_NULL && len(d.partitions) > 0 {
		return nil, fmt.Errorf("%w: a table-less image holds a single partition", ErrInvalidArguments)
	}

	c := &partitionConfig{}
	for _, opt := range opts {
		opt(c)
	}
	if c.label != "" && d.table != TT_GPT {
		return nil, fmt.Errorf("%w: partition labels need a gpt table", ErrInvalidArguments)
	}
	for _, f := range c.flags {
		if !knownFlags[f] {
			return nil, fmt.Errorf("%w: unknown partition flag %q", ErrInvalidArguments, string(f))
		}
	}
	return c, nil
}

// NewPartition appends a partition that will be formatted with the given
// filesystem and filled through its Mkdir, Copy and SetInitialDataRoot.
func (d *DiskImage) NewPartition(fs FSType, opts ...PartitionOption) (*Partition, error) {
	c, err := d.newPartitionConfig(fs, opts...)
	if err != nil {
		return nil, err
	}
	p := &Partition{
		fs:       fs,
		label:    c.label,
		fsLabel:  c.fsLabel,
		flags:    c.flags,
		tempPath: d.tempPath(fmt.Sprintf("p%d", len(d.partitions)+1)),
	}
	d.partitions = append(d.partitions, p)
	return p, nil
}

// NewRawPartition appends a partition whose entire content is one prebuilt
// filesystem image.
func (d *DiskImage) NewRawPartition(fs FSType, opts ...PartitionOption) (*RawPartition, error) {
	c, err := d.newPartitionConfig(fs, opts...)
	if err != nil {
		return nil, err
	}
	if c.fsLabel != "" {
		return nil, fmt.Errorf("%w: a raw partition is never formatted, it cannot take a filesystem label", ErrInvalidArguments)
	}
	r := &RawPartition{
		fs:       fs,
		label:    c.label,
		flags:    c.flags,
		tempPath: d.tempPath(fmt.Sprintf("p%d", len(d.partitions)+1)),
		copier:   d.copier,
	}
	d.partitions = append(d.partitions, r)
	return r, nil
}

// Check verifies every partition can be built as declared, without touching
// any file.
func (d *DiskImage) Check() error {
	for i, p := range d.partitions {
		if err := p.Check(); err != nil {
			return fmt.Errorf("partition %d: %w", i+1, err)
		}
	}
	return nil
}
