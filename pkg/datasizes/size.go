package datasizes

import "fmt"

// Size is a uint64 byte count with support for reading from string TOML
// values, so size = 123, size = "1234" and size = "1 GiB" all work.
type Size uint64

// Uint64 returns the size as uint64. This is a convenience function, it is
// strictly equivalent to uint64(Size(1)).
func (si Size) Uint64() uint64 {
	return uint64(si)
}

func (si *Size) UnmarshalTOML(data interface{}) error {
	switch v := data.(type) {
	case string:
		n, err := Parse(v)
		if err != nil {
			return fmt.Errorf("error decoding TOML size: %w", err)
		}
		*si = Size(n)
	case int64:
		if v < 0 {
			return fmt.Errorf("error decoding TOML size: cannot be negative")
		}
		*si = Size(v)
	case uint64:
		*si = Size(v)
	default:
		return fmt.Errorf("error decoding TOML size: cannot convert %v to a byte count", data)
	}
	return nil
}
