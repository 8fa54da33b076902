package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// populateExt writes into ext2/3/4 filesystems by feeding a command file to
// debugfs.
type populateExt struct {
	tool *Tool
}

func newPopulateExt() *populateExt {
	return &populateExt{tool: New("debugfs")}
}

func (p *populateExt) Check() bool {
	return p.tool.Check()
}

func (p *populateExt) Populate(device string, actions []Action) error {
	script, err := debugfsScript(actions)
	if err != nil {
		return err
	}

	f, err := os.CreateTemp("", "debugfs-")
	if err != nil {
		return fmt.Errorf("error creating debugfs command file: %v", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return fmt.Errorf("error writing debugfs command file: %v", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing debugfs command file: %v", err)
	}

	return p.tool.Run("-w", "-f", f.Name(), device)
}

// debugfsScript renders populate actions as debugfs commands. debugfs has
// no escape syntax inside double quotes, so paths containing one are
// rejected.
func debugfsScript(actions []Action) (string, error) {
	var cmds []string
	for _, action := range actions {
		switch a := action.(type) {
		case MkdirAction:
			for _, dir := range a.Dirs {
				cmd, err := mkdirCmd(cleanImagePath(dir))
				if err != nil {
					return "", err
				}
				cmds = append(cmds, cmd)
			}
		case CopyAction:
			writes, err := writeCmds(a.Sources, cleanImagePath(a.Destination))
			if err != nil {
				return "", err
			}
			cmds = append(cmds, writes...)
		case CopyTreeAction:
			dest := cleanImagePath(a.Destination)
			for _, source := range a.Sources {
				tree, err := treeCmds(source, path.Join(dest, filepath.Base(source)))
				if err != nil {
					return "", err
				}
				cmds = append(cmds, tree...)
			}
		default:
			return "", fmt.Errorf("unknown populate action %T", action)
		}
	}
	return strings.Join(cmds, "\n"), nil
}

func mkdirCmd(dir string) (string, error) {
	if err := quoteGuard(dir); err != nil {
		return "", err
	}
	return fmt.Sprintf(`mkdir "%s"`, dir), nil
}

// writeCmds enters the destination directory once and writes every source
// under its base name.
func writeCmds(sources []string, destDir string) ([]string, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	if err := quoteGuard(destDir); err != nil {
		return nil, err
	}
	cmds := []string{fmt.Sprintf(`cd "%s"`, destDir)}
	for _, source := range sources {
		if err := quoteGuard(source); err != nil {
			return nil, err
		}
		cmds = append(cmds, fmt.Sprintf(`write "%s" "%s"`, source, filepath.Base(source)))
	}
	return cmds, nil
}

func symlinkCmd(source, target string) (string, error) {
	linked, err := os.Readlink(source)
	if err != nil {
		return "", err
	}
	if err := quoteGuard(target); err != nil {
		return "", err
	}
	if err := quoteGuard(linked); err != nil {
		return "", err
	}
	return fmt.Sprintf(`symlink "%s" "%s"`, target, linked), nil
}

// treeCmds mirrors the host directory root at dest inside the image, parents
// before children.
func treeCmds(root, dest string) ([]string, error) {
	cmd, err := mkdirCmd(dest)
	if err != nil {
		return nil, err
	}
	level, err := treeLevelCmds(root, dest)
	if err != nil {
		return nil, err
	}
	return append([]string{cmd}, level...), nil
}

func treeLevelCmds(dir, dest string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var cmds []string
	var files, subdirs, symlinks []string
	for _, entry := range entries {
		switch {
		case entry.IsDir():
			subdirs = append(subdirs, entry.Name())
			cmd, err := mkdirCmd(path.Join(dest, entry.Name()))
			if err != nil {
				return nil, err
			}
			cmds = append(cmds, cmd)
		case entry.Type().IsRegular():
			files = append(files, filepath.Join(dir, entry.Name()))
		case entry.Type()&fs.ModeSymlink != 0:
			cmd, err := symlinkCmd(filepath.Join(dir, entry.Name()), path.Join(dest, entry.Name()))
			if err != nil {
				return nil, err
			}
			symlinks = append(symlinks, cmd)
		default:
			return nil, fmt.Errorf("cannot copy %s: unsupported file type", filepath.Join(dir, entry.Name()))
		}
	}

	writes, err := writeCmds(files, dest)
	if err != nil {
		return nil, err
	}
	cmds = append(cmds, writes...)
	cmds = append(cmds, symlinks...)

	for _, subdir := range subdirs {
		sub, err := treeLevelCmds(filepath.Join(dir, subdir), path.Join(dest, subdir))
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, sub...)
	}
	return cmds, nil
}

func quoteGuard(s string) error {
	if strings.Contains(s, `"`) {
		return fmt.Errorf("path %s contains a double quote", s)
	}
	return nil
}
