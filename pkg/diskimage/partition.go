package diskimage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/osbuild/diskimage/pkg/tools"
)

// Partition accumulates content for one formatted filesystem inside the
// image and accounts for the size it will need. All accounting happens when
// content is added, so the partition's size is known before anything is
// built.
type Partition struct {
	fs      FSType
	label   string
	fsLabel string
	flags   []Flag

	tempPath string

	contentBytes uint64
	extraBytes   uint64
	fixedBytes   uint64 // 0 means grow to fit

	dataRoot string
	actions  []tools.Action
}

// Mkdir schedules directories to be created inside the filesystem. Parent
// directories are not created implicitly.
func (p *Partition) Mkdir(dirs ...string) error {
	for _, dir := range dirs {
		if err := checkQuote(dir); err != nil {
			return err
		}
	}
	p.actions = append(p.actions, tools.MkdirAction{Dirs: dirs})
	return nil
}

// Copy schedules sources to be copied to the filesystem root.
func (p *Partition) Copy(sources ...string) error {
	return p.CopyTo("/", sources...)
}

// CopyTo schedules sources to be copied into the destination directory
// inside the filesystem. Directory sources are copied recursively. The
// space the sources need is added to the content size now, so they must
// exist.
func (p *Partition) CopyTo(destination string, sources ...string) error {
	if err := checkQuote(destination); err != nil {
		return err
	}
	var files, trees []string
	var added uint64
	for _, source := range sources {
		if err := checkQuote(source); err != nil {
			return err
		}
		fi, err := os.Stat(source)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
		switch {
		case fi.IsDir():
			size, err := walkSize(source, nil)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
			}
			added += size
			trees = append(trees, source)
		case fi.Mode().IsRegular():
			added += uint64(fi.Size())
			files = append(files, source)
		default:
			return fmt.Errorf("%w: unsupported file type: %s", ErrInvalidArguments, source)
		}
	}
	p.contentBytes += added
	if len(trees) > 0 {
		p.actions = append(p.actions, tools.CopyTreeAction{Sources: trees, Destination: destination})
	}
	if len(files) > 0 {
		p.actions = append(p.actions, tools.CopyAction{Sources: files, Destination: destination})
	}
	return nil
}

// SetInitialDataRoot seeds the whole filesystem from a directory tree at
// format time instead of per-file copy actions, preserving ownership and
// modes. Only the ext family supports it, through mkfs -d.
func (p *Partition) SetInitialDataRoot(root string) error {
	if !p.fs.IsExt() {
		return fmt.Errorf("%w: an initial data root needs an ext filesystem, not %s", ErrInvalidArguments, p.fs)
	}
	if p.dataRoot != "" {
		return fmt.Errorf("%w: the initial data root is already set", ErrInvalidArguments)
	}
	fi, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("%w: initial data root %s is not a directory", ErrInvalidArguments, root)
	}
	size, err := treeSize(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	p.dataRoot = root
	p.contentBytes += size
	return nil
}

// SetExtraBytes reserves free space on top of the accounted content.
func (p *Partition) SetExtraBytes(n uint64) {
	p.extraBytes = n
}

// SetFixedSizeBytes pins the partition size, rounded up to a whole block.
// Content outgrowing a fixed size fails the pre-commit check.
func (p *Partition) SetFixedSizeBytes(n uint64) {
	p.fixedBytes = bytesToBlocks(n, false) * BlockSize
}

// ContentSizeBytes returns the bytes accounted for content so far.
func (p *Partition) ContentSizeBytes() uint64 {
	return p.contentBytes
}

// TotalSizeBytes returns the size the layout reserves for the partition:
// the fixed size when one is set, otherwise content plus filesystem
// overhead plus extra, rounded up to whole blocks.
func (p *Partition) TotalSizeBytes() uint64 {
	if p.fixedBytes != 0 {
		return p.fixedBytes
	}
	return p.neededBytes()
}

func (p *Partition) neededBytes() uint64 {
	return bytesToBlocks(p.contentBytes+p.fs.metadataBytes()+p.extraBytes, false) * BlockSize
}

// Check verifies the partition can be built as declared: a fixed size still
// fits the content and the needed external tools are installed.
func (p *Partition) Check() error {
	if p.fixedBytes != 0 && p.fixedBytes < p.neededBytes() {
		return fmt.Errorf("%w: fixed size %d is below the %d bytes the content needs",
			ErrCheckFailed, p.fixedBytes, p.neededBytes())
	}
	mkfs, err := tools.Mkfs(p.fs.String())
	if err != nil {
		return err
	}
	if !mkfs.Check() {
		return fmt.Errorf("%w: no tool to format %s available", ErrCheckFailed, p.fs)
	}
	if len(p.actions) > 0 {
		populate, err := tools.Populate(p.fs.String())
		if err != nil {
			return err
		}
		if !populate.Check() {
			return fmt.Errorf("%w: no tool to populate %s available", ErrCheckFailed, p.fs)
		}
	}
	return nil
}

// build creates the partition's temp file, formats it and populates it.
func (p *Partition) build() error {
	p.clean()
	if err := createSparseFile(p.tempPath, p.TotalSizeBytes()); err != nil {
		return err
	}
	mkfs, err := tools.Mkfs(p.fs.String())
	if err != nil {
		return err
	}
	if err := mkfs.Format(p.tempPath, p.fsLabel, p.dataRoot); err != nil {
		return err
	}
	if len(p.actions) == 0 {
		return nil
	}
	populate, err := tools.Populate(p.fs.String())
	if err != nil {
		return err
	}
	return populate.Populate(p.tempPath, p.actions)
}

func (p *Partition) clean() {
	removeIfExists(p.tempPath)
}

func (p *Partition) mergePath() string {
	return p.tempPath
}

func (p *Partition) filesystem() FSType {
	return p.fs
}

func (p *Partition) tableEntry() (string, []Flag) {
	return p.label, p.flags
}

// checkQuote rejects names the debugfs populate path cannot quote.
func checkQuote(s string) error {
	if strings.Contains(s, `"`) {
		return fmt.Errorf("%w: %s contains a double quote", ErrInvalidArguments, s)
	}
	return nil
}

// treeSize accounts an initial data root. Hard linked files share their
// blocks in the filesystem, so every inode counts once.
func treeSize(root string) (uint64, error) {
	return walkSize(root, map[fileID]bool{})
}

type fileID struct {
	dev uint64
	ino uint64
}

func walkSize(root string, seen map[fileID]bool) (uint64, error) {
	var total uint64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if seen != nil {
			if st, ok := fi.Sys().(*syscall.Stat_t); ok {
				id := fileID{dev: uint64(st.Dev), ino: uint64(st.Ino)}
				if seen[id] {
					return nil
				}
				seen[id] = true
			}
		}
		total += uint64(fi.Size())
		return nil
	})
	return total, err
}
