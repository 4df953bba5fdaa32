package shadow

import (
	"fmt"
	"strconv"
	"strings"
)

// hexU64 round-trips a uint64 through a "0x<hex>" YAML scalar, the
// unsuffixed hex format spec.md §4.F requires for every extent offset and
// length.
type hexU64 uint64

func (v hexU64) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("0x%x", uint64(v)), nil
}

func (v *hexU64) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return fmt.Errorf("parsing hex value %q: %w", s, err)
	}

	*v = hexU64(n)
	return nil
}

// octalU32 round-trips a uint32 mode through a "0<octal>" YAML scalar.
type octalU32 uint32

func (v octalU32) MarshalYAML() (interface{}, error) {
	return fmt.Sprintf("%#o", uint32(v)), nil
}

func (v *octalU32) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		var n uint64
		if err2 := unmarshal(&n); err2 != nil {
			return err
		}
		*v = octalU32(n)
		return nil
	}

	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return fmt.Errorf("parsing octal mode %q: %w", s, err)
	}

	*v = octalU32(n)
	return nil
}
