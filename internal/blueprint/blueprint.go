// Package blueprint contains primitives for representing disk image
// blueprints and translating them to image builds.
package blueprint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobwas/glob"

	"github.com/osbuild/diskimage/pkg/datasizes"
	"github.com/osbuild/diskimage/pkg/diskimage"
)

// A Blueprint is a declarative description of a partitioned disk image.
type Blueprint struct {
	Path        string                  `toml:"path"`
	Table       diskimage.TableType     `toml:"partition_table,omitempty"`
	Partitioner string                  `toml:"partitioner,omitempty"`
	Cleanup     diskimage.CleanupPolicy `toml:"cleanup,omitempty"`
	Partitions  []Partition             `toml:"partition"`
}

// A Partition describes one partition of the image. Formatted partitions
// take a filesystem tree through data_root, mkdirs and copy sections; raw
// partitions take a prebuilt filesystem image through source instead.
type Partition struct {
	Filesystem      diskimage.FSType `toml:"filesystem"`
	Label           string           `toml:"partition_label,omitempty"`
	Flags           []diskimage.Flag `toml:"partition_flags,omitempty"`
	FilesystemLabel string           `toml:"filesystem_label,omitempty"`
	FixedSize       datasizes.Size   `toml:"fixed_size,omitempty"`
	ExtraSpace      datasizes.Size   `toml:"extra_space,omitempty"`
	DataRoot        string           `toml:"data_root,omitempty"`
	Mkdirs          []string         `toml:"mkdirs,omitempty"`
	Copies          []Copy           `toml:"copy,omitempty"`
	Raw             bool             `toml:"raw,omitempty"`
	Source          string           `toml:"source,omitempty"`
}

// A Copy places files into a directory of a formatted partition. Sources may
// use glob patterns in their final path element.
type Copy struct {
	Sources     []string `toml:"sources"`
	Destination string   `toml:"destination"`
}

// Load reads a blueprint from a TOML file.
func Load(path string) (*Blueprint, error) {
	var b Blueprint
	_, err := toml.DecodeFile(path, &b)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Image translates the blueprint to a disk image builder, ready to be
// committed. Relative content paths are resolved against the working
// directory.
func (b *Blueprint) Image() (*diskimage.DiskImage, error) {
	if b.Path == "" {
		return nil, fmt.Errorf("the blueprint names no image path")
	}
	if len(b.Partitions) == 0 {
		return nil, fmt.Errorf("the blueprint holds no partitions")
	}

	opts := []diskimage.Option{diskimage.WithCleanupPolicy(b.Cleanup)}
	switch b.Partitioner {
	case "":
	case "sfdisk":
		opts = append(opts, diskimage.WithPartitioner(diskimage.NewSfdisk))
	case "diskfs":
		opts = append(opts, diskimage.WithPartitioner(diskimage.NewDiskfs))
	default:
		return nil, fmt.Errorf("unknown partitioner %q", b.Partitioner)
	}

	d, err := diskimage.New(b.Path, b.Table, opts...)
	if err != nil {
		return nil, err
	}
	for i := range b.Partitions {
		if err := b.Partitions[i].apply(d); err != nil {
			return nil, fmt.Errorf("partition %d: %w", i+1, err)
		}
	}
	return d, nil
}

func (p *Partition) options() []diskimage.PartitionOption {
	var opts []diskimage.PartitionOption
	if p.Label != "" {
		opts = append(opts, diskimage.WithPartitionLabel(p.Label))
	}
	if len(p.Flags) > 0 {
		opts = append(opts, diskimage.WithPartitionFlags(p.Flags...))
	}
	if p.FilesystemLabel != "" {
		opts = append(opts, diskimage.WithFilesystemLabel(p.FilesystemLabel))
	}
	return opts
}

func (p *Partition) apply(d *diskimage.DiskImage) error {
	if p.Raw {
		return p.applyRaw(d)
	}
	if p.Source != "" {
		return fmt.Errorf("source only applies to raw partitions")
	}

	part, err := d.NewPartition(p.Filesystem, p.options()...)
	if err != nil {
		return err
	}
	if p.DataRoot != "" {
		if err := part.SetInitialDataRoot(p.DataRoot); err != nil {
			return err
		}
	}
	for _, dir := range p.Mkdirs {
		if err := part.Mkdir(dir); err != nil {
			return err
		}
	}
	for _, c := range p.Copies {
		sources, err := expandSources(c.Sources)
		if err != nil {
			return err
		}
		if err := part.CopyTo(c.Destination, sources...); err != nil {
			return err
		}
	}
	if p.FixedSize > 0 {
		part.SetFixedSizeBytes(p.FixedSize.Uint64())
	}
	if p.ExtraSpace > 0 {
		part.SetExtraBytes(p.ExtraSpace.Uint64())
	}
	return nil
}

func (p *Partition) applyRaw(d *diskimage.DiskImage) error {
	if p.Source == "" {
		return fmt.Errorf("a raw partition needs a source image")
	}
	if p.DataRoot != "" || len(p.Mkdirs) > 0 || len(p.Copies) > 0 {
		return fmt.Errorf("a raw partition takes its content from source alone")
	}

	part, err := d.NewRawPartition(p.Filesystem, p.options()...)
	if err != nil {
		return err
	}
	if err := part.Copy(p.Source); err != nil {
		return err
	}
	if p.FixedSize > 0 {
		part.SetFixedSizeBytes(p.FixedSize.Uint64())
	}
	if p.ExtraSpace > 0 {
		part.SetExtraBytes(p.ExtraSpace.Uint64())
	}
	return nil
}

// expandSources resolves glob patterns in the final path element of each
// source. A pattern matching nothing is an error, a silently empty copy
// would hide a typo.
func expandSources(patterns []string) ([]string, error) {
	var out []string
	for _, pattern := range patterns {
		base := filepath.Base(pattern)
		if !strings.ContainsAny(base, "*?[{") {
			out = append(out, pattern)
			continue
		}
		dir := filepath.Dir(pattern)
		if strings.ContainsAny(dir, "*?[{") {
			return nil, fmt.Errorf("glob patterns only work in the final path element: %q", pattern)
		}
		g, err := glob.Compile(base)
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern %q: %w", pattern, err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, e := range entries {
			if g.Match(e.Name()) {
				out = append(out, filepath.Join(dir, e.Name()))
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no files match %q", pattern)
		}
	}
	return out, nil
}
