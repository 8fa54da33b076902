// Package tools wraps the external programs that format, populate and
// partition disk images: mkfs, debugfs, mtools and sfdisk.
//
// Every wrapper can report whether its program is installed before anything
// touches the disk, so a missing tool surfaces as a check failure instead of
// a half-written image.
package tools

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrToolNotFound means a required external program is not installed or not
// on PATH.
var ErrToolNotFound = errors.New("tool not found")

// Tool is a handle to one external program. The executable lookup happens
// at most once per handle and the result is cached.
type Tool struct {
	command string

	mu     sync.Mutex
	looked bool
	path   string
}

// New returns a handle for the named command. Nothing is looked up until
// Check or a run.
func New(command string) *Tool {
	return &Tool{command: command}
}

// Command returns the program name the handle was created with.
func (t *Tool) Command() string {
	return t.command
}

// Check reports whether the executable exists on PATH.
func (t *Tool) Check() bool {
	_, err := t.lookup()
	return err == nil
}

func (t *Tool) lookup() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.looked {
		t.looked = true
		path, err := exec.LookPath(t.command)
		if err != nil {
			logrus.Debugf("tools: %s not found: %v", t.command, err)
		} else {
			t.path = path
		}
	}
	if t.path == "" {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, t.command)
	}
	return t.path, nil
}

// Run executes the tool with the given arguments. Stdout and stderr are
// captured together; a non-zero exit returns an error carrying that output.
func (t *Tool) Run(args ...string) error {
	return t.RunInput(nil, args...)
}

// RunInput is Run with input fed to the program's stdin.
func (t *Tool) RunInput(input []byte, args ...string) error {
	path, err := t.lookup()
	if err != nil {
		return err
	}

	var output bytes.Buffer
	cmd := exec.Command(path, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("error setting up stdin for %s: %v", t.command, err)
	}

	logrus.Debugf("tools: running %s %v", t.command, args)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting %s: %v", t.command, err)
	}
	if _, err := stdin.Write(input); err != nil {
		return fmt.Errorf("error writing stdin of %s: %v", t.command, err)
	}
	if err := stdin.Close(); err != nil {
		return fmt.Errorf("error closing stdin of %s: %v", t.command, err)
	}

	err = cmd.Wait()
	if out := output.String(); out != "" {
		logrus.Debugf("tools: %s output:\n%s", t.command, out)
	}
	if err != nil {
		if _, isExitError := err.(*exec.ExitError); isExitError {
			return fmt.Errorf("%s %v failed: %v\noutput:\n%s", t.command, args, err, output.String())
		}
		return fmt.Errorf("running %s failed: %v", t.command, err)
	}
	return nil
}
