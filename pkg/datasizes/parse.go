package datasizes

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var sizePattern = regexp.MustCompile(`^([[:digit:]]+)\s*([[:alpha:]]*)$`)

var unitMultiple = map[string]uint64{
	"":    1,
	"kB":  KiloByte,
	"KiB": KibiByte,
	"MB":  MegaByte,
	"MiB": MebiByte,
	"GB":  GigaByte,
	"GiB": GibiByte,
	"TB":  TeraByte,
	"TiB": TebiByte,
}

// Parse converts a size specified as a string in kB/KiB/MB/etc. to a number
// of bytes. A bare number is taken as bytes. Units are case sensitive:
// kB/MB/... are decimal multiples, KiB/MiB/... binary ones. Unknown units
// are rejected rather than ignored.
func Parse(size string) (uint64, error) {
	m := sizePattern.FindStringSubmatch(strings.TrimSpace(size))
	if m == nil {
		return 0, fmt.Errorf("invalid data size: %q", size)
	}

	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid data size %q: %w", size, err)
	}

	mult, ok := unitMultiple[m[2]]
	if !ok {
		return 0, fmt.Errorf("unknown data size unit in %q", size)
	}
	return n * mult, nil
}
