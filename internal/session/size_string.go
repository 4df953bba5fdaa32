package session

import (
	"fmt"
	"strconv"
	"strings"
)

// sizeString decodes a YAML scalar like "2M", "1G" or a bare integer into a
// byte count. Only the K/M/G (binary, 1024-based) suffixes are recognized;
// .alloc.cfg is the only document that uses this shorthand.
type sizeString uint64

func (s *sizeString) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		var n uint64
		if err2 := unmarshal(&n); err2 != nil {
			return err
		}
		*s = sizeString(n)
		return nil
	}

	n, err := parseSizeString(raw)
	if err != nil {
		return err
	}
	*s = sizeString(n)
	return nil
}

func parseSizeString(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty size string")
	}

	mult := uint64(1)
	suffix := raw[len(raw)-1]
	switch suffix {
	case 'k', 'K':
		mult = 1 << 10
	case 'm', 'M':
		mult = 1 << 20
	case 'g', 'G':
		mult = 1 << 30
	}

	numPart := raw
	if mult != 1 {
		numPart = raw[:len(raw)-1]
	}

	n, err := strconv.ParseUint(strings.TrimSpace(numPart), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing size %q: %w", raw, err)
	}

	return n * mult, nil
}
