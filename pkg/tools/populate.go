package tools

import "path"

// Action is one populate step applied to a freshly formatted filesystem.
type Action interface {
	isAction()
}

// MkdirAction creates directories inside the filesystem. Parent directories
// are not created implicitly.
type MkdirAction struct {
	Dirs []string
}

// CopyAction copies host files into a directory inside the filesystem.
type CopyAction struct {
	Sources     []string
	Destination string
}

// CopyTreeAction copies host directories into the filesystem recursively,
// like cp -r.
type CopyTreeAction struct {
	Sources     []string
	Destination string
}

func (MkdirAction) isAction()    {}
func (CopyAction) isAction()     {}
func (CopyTreeAction) isAction() {}

// PopulateTool writes directories and files into a filesystem image without
// mounting it.
type PopulateTool interface {
	Check() bool
	Populate(device string, actions []Action) error
}

// cleanImagePath normalizes a path inside the image to an absolute slash
// separated one.
func cleanImagePath(p string) string {
	return path.Clean("/" + p)
}
