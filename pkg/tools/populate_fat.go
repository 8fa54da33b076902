package tools

import (
	"fmt"
	"strings"
)

// populateFAT writes into FAT filesystems with GNU mtools. mcopy recurses on
// its own with -s, so tree copies need no walking here.
type populateFAT struct {
	mmd   *Tool
	mcopy *Tool
}

func newPopulateFAT() *populateFAT {
	return &populateFAT{mmd: New("mmd"), mcopy: New("mcopy")}
}

func (p *populateFAT) Check() bool {
	return p.mmd.Check() && p.mcopy.Check()
}

func (p *populateFAT) Populate(device string, actions []Action) error {
	for _, action := range actions {
		switch a := action.(type) {
		case MkdirAction:
			if len(a.Dirs) == 0 {
				continue
			}
			args := []string{"-i", device}
			for _, dir := range a.Dirs {
				args = append(args, fatDest(dir))
			}
			if err := p.mmd.Run(args...); err != nil {
				return err
			}
		case CopyAction:
			if err := p.copySources(device, "-bQ", a.Sources, a.Destination); err != nil {
				return err
			}
		case CopyTreeAction:
			if err := p.copySources(device, "-bsQ", a.Sources, a.Destination); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown populate action %T", action)
		}
	}
	return nil
}

func (p *populateFAT) copySources(device, flags string, sources []string, destination string) error {
	if len(sources) == 0 {
		return nil
	}
	args := append([]string{"-i", device, flags}, sources...)
	args = append(args, fatDest(destination))
	return p.mcopy.Run(args...)
}

// fatDest renders a path inside the image the way mtools expects: the drive
// prefix with no leading slash.
func fatDest(p string) string {
	return "::" + strings.TrimPrefix(cleanImagePath(p), "/")
}
