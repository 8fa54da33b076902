//go:build linux

package copyrange

import (
	"fmt"
	"os"
	"runtime"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// copy_file_range(2) appeared in Linux 4.5.
const (
	minKernelMajor = 4
	minKernelMinor = 5
)

// Syscall numbers for the raw tier, by GOARCH. Architectures missing here
// fall through to the generic copy.
var copyFileRangeSyscall = map[string]uintptr{
	"386":     377,
	"amd64":   326,
	"arm":     391,
	"arm64":   285,
	"ppc64":   379,
	"ppc64le": 379,
	"riscv64": 285,
	"s390x":   375,
}

var runtimeGOARCH = runtime.GOARCH

func resolve() (Func, string) {
	if !kernelAtLeast(minKernelMajor, minKernelMinor) {
		logrus.Warnf("copyrange: kernel predates copy_file_range, using generic copy")
		return Generic, "generic"
	}
	if probe(wrapped) == nil {
		return wrapped, "copy_file_range"
	}
	if num, ok := copyFileRangeSyscall[runtimeGOARCH]; ok {
		fn := rawSyscall(num)
		if probe(fn) == nil {
			logrus.Warnf("copyrange: wrapper unavailable, using raw copy_file_range syscall")
			return fn, "copy_file_range-syscall"
		}
	}
	logrus.Warnf("copyrange: copy_file_range unavailable, using generic copy")
	return Generic, "generic"
}

// wrapped is the x/sys wrapper around copy_file_range(2).
func wrapped(src *os.File, srcOff int64, dst *os.File, dstOff int64, length int64) (int64, error) {
	if length > chunkBytes {
		length = chunkBytes
	}
	n, err := unix.CopyFileRange(int(src.Fd()), &srcOff, int(dst.Fd()), &dstOff, int(length), 0)
	if err != nil {
		return 0, err
	}
	return int64(n), nil
}

// rawSyscall builds the tier that invokes copy_file_range by number, for
// environments where the wrapper reports ENOSYS.
func rawSyscall(num uintptr) Func {
	return func(src *os.File, srcOff int64, dst *os.File, dstOff int64, length int64) (int64, error) {
		if length > chunkBytes {
			length = chunkBytes
		}
		n, _, errno := unix.Syscall6(num,
			src.Fd(),
			uintptr(unsafe.Pointer(&srcOff)),
			dst.Fd(),
			uintptr(unsafe.Pointer(&dstOff)),
			uintptr(length),
			0)
		if errno != 0 {
			return 0, errno
		}
		return int64(n), nil
	}
}

// probe runs a zero length copy between two scratch files so that ENOSYS
// shows up during resolution rather than halfway through an image merge.
func probe(fn Func) error {
	src, err := os.CreateTemp("", "copyrange-probe-")
	if err != nil {
		return err
	}
	defer os.Remove(src.Name())
	defer src.Close()

	dst, err := os.CreateTemp("", "copyrange-probe-")
	if err != nil {
		return err
	}
	defer os.Remove(dst.Name())
	defer dst.Close()

	_, err = fn(src, 0, dst, 0, 0)
	return err
}

func kernelAtLeast(major, minor int) bool {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return false
	}
	release := unix.ByteSliceToString(uts.Release[:])

	var maj, min int
	if n, _ := fmt.Sscanf(release, "%d.%d", &maj, &min); n < 2 {
		return false
	}
	return maj > major || (maj == major && min >= minor)
}
