// Package fsconfig loads the host-level famfs daemon configuration: mount
// defaults, worker-pool sizing, and kernel-mapping probe overrides. It does
// not configure any individual filesystem (that lives in the superblock);
// it configures this host's famfs tooling.
package fsconfig

import "errors"

var (
	errConfigFileNotFound = errors.New("fsconfig: explicit config file not found")
	errConfigFileRead     = errors.New("fsconfig: config file unreadable")
	errConfigInvalid      = errors.New("fsconfig: invalid config")
	errThreadPoolNegative = errors.New("fsconfig: thread_pool_size must not be negative")
)
