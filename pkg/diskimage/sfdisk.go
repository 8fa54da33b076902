package diskimage

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/diskimage/pkg/tools"
)

// Sfdisk writes MSDOS partition tables by piping a dump-format script to
// sfdisk(8). It cannot express GPT specifics, so it stays MSDOS only, and
// the only flag an MSDOS script line can carry is the bootable marker.
type Sfdisk struct {
	imagePath string
	lines     []string
}

// NewSfdisk returns the script based strategy.
func NewSfdisk(imagePath string, table TableType) (Partitioner, error) {
	if table != TT_MSDOS {
		return nil, fmt.Errorf("%w: the sfdisk strategy supports msdos tables, not %s", ErrInvalidArguments, table)
	}
	return &Sfdisk{imagePath: imagePath}, nil
}

func (s *Sfdisk) NewPartition(offsetBlocks, sizeBlocks uint64, fs FSType, label string, flags []Flag) error {
	if label != "" {
		return fmt.Errorf("%w: msdos tables cannot store partition labels", ErrInvalidArguments)
	}
	code, err := dosTypeCode(fs, sizeBlocks*BlockSize)
	if err != nil {
		return err
	}

	line := fmt.Sprintf("start=%d, size=%d, type=%x", offsetBlocks, sizeBlocks, code)
	for _, flag := range flags {
		if flag != FlagBoot {
			return fmt.Errorf("%w: the sfdisk strategy cannot apply flag %s", ErrInvalidArguments, string(flag))
		}
		line += ", bootable"
	}
	s.lines = append(s.lines, line)
	return nil
}

// script renders the sfdisk input for the recorded partitions. Alignment is
// handled by the layout, so the grain stays at one sector.
func (s *Sfdisk) script() string {
	header := []string{
		"unit: sectors",
		"label: dos",
		"grain: 512",
	}
	return strings.Join(append(header, s.lines...), "\n")
}

func (s *Sfdisk) Commit() error {
	script := s.script()
	logrus.Debugf("sfdisk script for %s:\n%s", s.imagePath, script)
	return tools.Sfdisk().RunInput([]byte(script), s.imagePath, "--no-reread", "--no-tell-kernel")
}
