// Package datasizes provides byte size multipliers and helpers for reading
// human readable size expressions such as "48 MiB".
package datasizes

const (
	KiloByte = 1000    // kB
	KibiByte = 1024    // KiB
	MegaByte = 1000 * KiloByte
	MebiByte = 1024 * KibiByte
	GigaByte = 1000 * MegaByte
	GibiByte = 1024 * MebiByte
	TeraByte = 1000 * GigaByte
	TebiByte = 1024 * GibiByte

	// shorthands
	KiB = KibiByte
	MB  = MegaByte
	MiB = MebiByte
	GB  = GigaByte
	GiB = GibiByte
	TiB = TebiByte
)
