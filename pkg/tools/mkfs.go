package tools

import (
	"fmt"
	"strconv"
)

// FormatTool creates a filesystem inside a device or image file.
type FormatTool interface {
	// Check reports whether the underlying program is available.
	Check() bool
	// Format creates the filesystem. label may be empty. dataRoot, when not
	// empty, names a directory tree to seed the filesystem with; only the
	// ext family supports it.
	Format(device, label, dataRoot string) error
}

// mkfsExt drives mkfs.ext2, mkfs.ext3 or mkfs.ext4.
type mkfsExt struct {
	tool *Tool
}

func newMkfsExt(command string) *mkfsExt {
	return &mkfsExt{tool: New(command)}
}

func (m *mkfsExt) Check() bool {
	return m.tool.Check()
}

func (m *mkfsExt) Format(device, label, dataRoot string) error {
	var args []string
	if label != "" {
		args = append(args, "-L", label)
	}
	if dataRoot != "" {
		args = append(args, "-d", dataRoot)
	}
	args = append(args, device)
	return m.tool.Run(args...)
}

// mkfsFAT drives mkfs.fat with a fixed FAT size.
type mkfsFAT struct {
	tool *Tool
	size int
}

func newMkfsFAT(size int) *mkfsFAT {
	return &mkfsFAT{tool: New("mkfs.fat"), size: size}
}

func (m *mkfsFAT) Check() bool {
	return m.tool.Check()
}

func (m *mkfsFAT) Format(device, label, dataRoot string) error {
	if dataRoot != "" {
		return fmt.Errorf("mkfs.fat cannot seed a filesystem from a directory")
	}
	args := []string{"-F", strconv.Itoa(m.size)}
	if label != "" {
		args = append(args, "-n", label)
	}
	args = append(args, device)
	return m.tool.Run(args...)
}
