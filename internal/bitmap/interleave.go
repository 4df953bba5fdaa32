package bitmap

import (
	"math/rand/v2"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

// MaxNBuckets bounds interleave_param.nbuckets. Not pinned down by a
// recovered constant in the retrieved source, so it is set generously above
// any bucket count a real device partitions into at the 1 GiB-per-bucket
// minimum below.
const MaxNBuckets = 64

// MinBucketSize is the minimum bucket size enforced unless relaxed for
// tests.
const MinBucketSize = 1 << 30

// InterleaveParams is the .alloc.cfg interleaved_alloc stanza.
type InterleaveParams struct {
	NBuckets  uint64
	NStrips   uint64
	ChunkSize uint64

	// RelaxBucketMinimum disables the 1 GiB-per-bucket minimum, mirroring
	// famfs_alloc.c's mock_stripe test escape hatch.
	RelaxBucketMinimum bool
}

// IsZero reports whether params is the all-zero "no interleaving" value,
// which spec.md treats as valid (meaning: use contiguous allocation).
func (p InterleaveParams) IsZero() bool {
	return p.NBuckets == 0 && p.NStrips == 0 && p.ChunkSize == 0
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// Validate checks params against a device of devSize bytes at allocUnit
// granularity, per spec.md §4.B.
func (p InterleaveParams) Validate(allocUnit, devSize uint64) error {
	if p.IsZero() {
		return nil
	}

	if !isPowerOfTwo(p.ChunkSize) || p.ChunkSize%allocUnit != 0 {
		return errBadChunkSize
	}

	if p.NBuckets == 0 {
		return errZeroBuckets
	}

	if p.NBuckets > MaxNBuckets {
		return errTooManyBuckets
	}

	if p.NStrips > p.NBuckets {
		return errTooManyStrips
	}

	bucketSize := devSize / p.NBuckets
	if bucketSize < MinBucketSize && !p.RelaxBucketMinimum {
		return errBucketTooSmall
	}

	return nil
}

// bucketRange returns the [offset, offset+bucketSize) byte range of bucket
// index idx.
func bucketRange(idx, nbuckets, devSize uint64) (offset, length uint64) {
	bucketSize := devSize / nbuckets
	return idx * bucketSize, bucketSize
}

// shuffledBuckets returns a Fisher-Yates permutation of [0, nbuckets).
func shuffledBuckets(nbuckets uint64) []uint64 {
	buckets := make([]uint64, nbuckets)
	for i := range buckets {
		buckets[i] = uint64(i)
	}

	for i := len(buckets) - 1; i > 0; i-- {
		j := rand.IntN(i + 1)
		buckets[i], buckets[j] = buckets[j], buckets[i]
	}

	return buckets
}

// AllocInterleaved implements spec.md's alloc_interleaved. If size is
// smaller than a single chunk, it degrades to a contiguous allocation using
// cursor (the Open Question decision to over-cover a strip with
// strip_size = nstripes*chunk_size, rather than trim to the logical size,
// is deliberate — see SPEC_FULL.md).
func AllocInterleaved(bm *Bitmap, params InterleaveParams, size uint64, devSize uint64, cursor *uint64) (onmedia.FileMap, error) {
	if size < params.ChunkSize {
		offset, err := bm.AllocContiguous(size, cursor, 0)
		if err != nil {
			return onmedia.FileMap{}, err
		}

		return onmedia.FileMap{
			ExtType: onmedia.ExtSimple,
			Simple: []onmedia.SimpleExtent{
				{DevIndex: 0, Offset: offset, Length: roundUp(size, bm.allocUnit)},
			},
		}, nil
	}

	stripeSize := params.NStrips * params.ChunkSize
	nstripes := (size + stripeSize - 1) / stripeSize
	stripSize := nstripes * params.ChunkSize

	permuted := shuffledBuckets(params.NBuckets)

	var strips []onmedia.SimpleExtent

	for _, bucketIdx := range permuted {
		if uint64(len(strips)) >= params.NStrips {
			break
		}

		bucketOffset, bucketLen := bucketRange(bucketIdx, params.NBuckets, devSize)
		bucketCursor := bucketOffset

		offset, err := bm.AllocContiguous(stripSize, &bucketCursor, bucketLen)
		if err != nil {
			continue
		}

		strips = append(strips, onmedia.SimpleExtent{
			DevIndex: 0,
			Offset:   offset,
			Length:   stripSize,
		})
	}

	if uint64(len(strips)) < params.NStrips {
		for _, s := range strips {
			_ = bm.Free(s.Offset, s.Length)
		}
		return onmedia.FileMap{}, errNoSpace
	}

	return onmedia.FileMap{
		ExtType: onmedia.ExtInterleave,
		Interleaved: onmedia.InterleavedExt{
			NStrips:   params.NStrips,
			ChunkSize: params.ChunkSize,
			Strips:    strips,
		},
	}, nil
}

func roundUp(v, unit uint64) uint64 {
	return ((v + unit - 1) / unit) * unit
}
