// Package sysid resolves the host's famfs system UUID: the identifier a
// superblock's system_uuid field is compared against to decide master vs.
// client role (internal/onmedia.IsMaster).
package sysid

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

var errMalformed = errors.New("sysid: system uuid file is malformed")

// DefaultPath is where a host's system UUID is created/read on first use.
const DefaultPath = "/opt/famfs/system_uuid"

// Resolve reads the system UUID at path, creating it with a freshly
// generated UUID if absent. Once created, the value is immutable for the
// host's life — a second call to Resolve on the same path always returns
// the same UUID.
func Resolve(path string) ([16]byte, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, not user input
	if err == nil {
		return parse(data)
	}

	if !os.IsNotExist(err) {
		return [16]byte{}, fmt.Errorf("reading system uuid: %w", err)
	}

	return create(path)
}

func create(path string) ([16]byte, error) {
	id := uuid.New()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return [16]byte{}, fmt.Errorf("creating system uuid dir: %w", err)
	}

	if err := atomic.WriteFile(path, strings.NewReader(id.String()+"\n")); err != nil {
		return [16]byte{}, fmt.Errorf("writing system uuid: %w", err)
	}

	var out [16]byte
	copy(out[:], id[:])
	return out, nil
}

func parse(data []byte) ([16]byte, error) {
	s := strings.TrimSpace(string(bytes.TrimSpace(data)))

	id, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, fmt.Errorf("%w: %w", errMalformed, err)
	}

	var out [16]byte
	copy(out[:], id[:])
	return out, nil
}
