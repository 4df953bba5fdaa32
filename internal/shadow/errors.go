// Package shadow implements the shadow-file YAML codec spec.md §4.F
// describes: the out-of-band carrier the FUSE variant uses to hand a
// file's on-media metadata to the FUSE server, since a shadow mount has no
// real DAX-backed data to read mode/extents from directly.
//
// Every emitted document is self-tested for round-trip identity
// (parse(emit(meta)) == meta) before being written, the way spec.md
// requires; a divergence is reported to the caller as a yaml error rather
// than panicking, since the codec choosing to surface corruption is part
// of its contract.
package shadow

import "errors"

var errRoundTripMismatch = errors.New("shadow: emitted document does not parse back to the same metadata")
