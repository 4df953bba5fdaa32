// Package pcq implements the producer/consumer queue primitive spec.md
// §4.I describes: a fixed-size ring of CRC-checked buckets spread across two
// famfs-backed files (a producer file holding the bucket array and producer
// cursor, a consumer file holding the consumer cursor), with an explicit
// invalidate-before-read / flush-after-write discipline so the ring survives
// weak cache coherence between hosts.
package pcq

import "errors"

var (
	errBucketSizeNotPowerOfTwo = errors.New("pcq: bucket size must be a power of two")
	errQueueAlreadyExists      = errors.New("pcq: producer or consumer file already exists")
	errBadProducerMagic        = errors.New("pcq: bad producer queue magic")
	errBadConsumerMagic        = errors.New("pcq: bad consumer queue magic")
	errPayloadTooLarge         = errors.New("pcq: payload larger than a bucket's payload capacity")
	errWrongRole               = errors.New("pcq: operation not valid for this queue's role")
	errQueueFull               = errors.New("pcq: queue full")
	errQueueEmpty              = errors.New("pcq: queue empty")
	errCacheCoherenceViolation = errors.New("pcq: bucket crc still bad after invalidate-retry; cache incoherent")
)
