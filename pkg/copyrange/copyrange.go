// Package copyrange copies byte ranges between open files using the fastest
// mechanism the running system offers.
//
// On Linux the copy_file_range(2) syscall moves bytes without a round trip
// through user space; elsewhere, and on kernels predating it, a chunked
// read/write loop does the job. The selection happens once per process and
// is memoized by a Resolver.
package copyrange

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/osbuild/diskimage/pkg/datasizes"
)

// Func copies up to length bytes from src at offset srcOff into dst at
// offset dstOff and returns the count actually copied. A count short of
// length with a nil error means the mechanism stopped early and should be
// called again; a zero count means the source is exhausted.
type Func func(src *os.File, srcOff int64, dst *os.File, dstOff int64, length int64) (int64, error)

// chunkBytes bounds the buffer of the generic copy and the per call request
// of the syscall tiers.
const chunkBytes = 16 * datasizes.MiB

// Generic is the portable tier: positioned reads and writes through a user
// space buffer, at most chunkBytes per call.
func Generic(src *os.File, srcOff int64, dst *os.File, dstOff int64, length int64) (int64, error) {
	if length <= 0 {
		return 0, nil
	}
	if length > chunkBytes {
		length = chunkBytes
	}

	buf := make([]byte, length)
	n, rerr := src.ReadAt(buf, srcOff)
	if n > 0 {
		if _, werr := dst.WriteAt(buf[:n], dstOff); werr != nil {
			return 0, werr
		}
	}
	if rerr != nil && rerr != io.EOF {
		return int64(n), rerr
	}
	return int64(n), nil
}

// Resolver lazily picks a copy Func and memoizes the pick for the process
// lifetime.
type Resolver struct {
	once sync.Once
	fn   Func
	name string
}

var defaultResolver Resolver

// Default returns the shared process wide resolver.
func Default() *Resolver {
	return &defaultResolver
}

// NewResolver returns a resolver pinned to fn instead of detecting a
// mechanism. Tests use it to force a tier.
func NewResolver(name string, fn Func) *Resolver {
	return &Resolver{name: name, fn: fn}
}

func (r *Resolver) init() {
	if r.fn != nil {
		return
	}
	r.fn, r.name = resolve()
	logrus.Debugf("copyrange: selected %s copy", r.name)
}

// Name reports the mechanism the resolver picked, forcing resolution.
func (r *Resolver) Name() string {
	r.once.Do(r.init)
	return r.name
}

// Copy invokes the resolved mechanism once. Callers needing an exact total
// loop over it and must treat a zero count before completion as fatal.
func (r *Resolver) Copy(src *os.File, srcOff int64, dst *os.File, dstOff int64, length int64) (int64, error) {
	r.once.Do(r.init)
	return r.fn(src, srcOff, dst, dstOff, length)
}
