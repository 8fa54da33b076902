package tools

import (
	"fmt"
	"sync"
)

// The registry hands out one shared instance per (filesystem, role) so the
// executable lookup cost is paid once per process.
var (
	regMu         sync.Mutex
	formatTools   = map[string]FormatTool{}
	populateTools = map[string]PopulateTool{}
	sfdiskTool    *Tool
)

// Mkfs returns the format tool for the named filesystem, such as "ext4" or
// "fat32".
func Mkfs(filesystem string) (FormatTool, error) {
	regMu.Lock()
	defer regMu.Unlock()

	if t, ok := formatTools[filesystem]; ok {
		return t, nil
	}
	var t FormatTool
	switch filesystem {
	case "ext2", "ext3", "ext4":
		t = newMkfsExt("mkfs." + filesystem)
	case "fat12":
		t = newMkfsFAT(12)
	case "fat16":
		t = newMkfsFAT(16)
	case "fat32":
		t = newMkfsFAT(32)
	default:
		return nil, fmt.Errorf("%w: no format tool for filesystem %q", ErrToolNotFound, filesystem)
	}
	formatTools[filesystem] = t
	return t, nil
}

// Populate returns the populate tool for the named filesystem.
func Populate(filesystem string) (PopulateTool, error) {
	regMu.Lock()
	defer regMu.Unlock()

	if t, ok := populateTools[filesystem]; ok {
		return t, nil
	}
	var t PopulateTool
	switch filesystem {
	case "ext2", "ext3", "ext4":
		t = newPopulateExt()
	case "fat12", "fat16", "fat32":
		t = newPopulateFAT()
	default:
		return nil, fmt.Errorf("%w: no populate tool for filesystem %q", ErrToolNotFound, filesystem)
	}
	populateTools[filesystem] = t
	return t, nil
}

// Sfdisk returns the shared handle for the sfdisk partitioning tool.
func Sfdisk() *Tool {
	regMu.Lock()
	defer regMu.Unlock()

	if sfdiskTool == nil {
		sfdiskTool = New("sfdisk")
	}
	return sfdiskTool
}
