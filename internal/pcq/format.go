package pcq

import "encoding/binary"

// On-media layout, grounded on pcq.h's struct pcq/struct pcq_consumer.
//
// Unlike the original's `unsigned long` (8-byte) crc field, the bucket
// trailer here stores the CRC32 in its natural 4-byte width; nothing reads
// more than 32 bits of it. The producer/consumer index fields are separated
// from their respective next_seq fields by cacheLinePad bytes, matching
// spec.md §4.I's "≥ 1 KiB of padding to avoid false sharing" (the original's
// pad2[1048576] reserves far more than that ever requires).
const (
	producerMagic uint64 = 0xBEEBEE3
	consumerMagic uint32 = 0xBEEBEE4

	// headerRegion is the fixed reservation at the start of the producer
	// file before the bucket array begins, matching pcq_lib.c's "two_mb"
	// bucket_array_offset.
	headerRegion = 2 << 20

	// consumerFileSize is the fixed size of the consumer file.
	consumerFileSize = 2 << 20

	cacheLinePad = 1024

	producerIndexOffset   = 32 // magic(8) + nbuckets(8) + bucketsize(8) + bucketarrayoffset(8)
	producerNextSeqOffset = producerIndexOffset + 8 + cacheLinePad
	producerSizeOffset    = producerNextSeqOffset + 8
	producerHeaderSize    = producerSizeOffset + 8

	consumerIndexOffset   = 8 // magic(4) + pad(4)
	consumerNextSeqOffset = consumerIndexOffset + 8 + cacheLinePad
	consumerSizeOffset    = consumerNextSeqOffset + 8
	consumerHeaderSize    = consumerSizeOffset + 8

	seqFieldSize       = 8
	crcFieldSize       = 4
	bucketTrailerSize  = seqFieldSize + crcFieldSize
	consumerNumRetries = 2
)

type producerHeader struct {
	Magic             uint64
	NBuckets          uint64
	BucketSize        uint64
	BucketArrayOffset uint64
	ProducerIndex     uint64
	NextSeq           uint64
	Size              uint64
}

func encodeProducerHeader(buf []byte, h producerHeader) {
	binary.LittleEndian.PutUint64(buf[0:], h.Magic)
	binary.LittleEndian.PutUint64(buf[8:], h.NBuckets)
	binary.LittleEndian.PutUint64(buf[16:], h.BucketSize)
	binary.LittleEndian.PutUint64(buf[24:], h.BucketArrayOffset)
	binary.LittleEndian.PutUint64(buf[producerIndexOffset:], h.ProducerIndex)
	binary.LittleEndian.PutUint64(buf[producerNextSeqOffset:], h.NextSeq)
	binary.LittleEndian.PutUint64(buf[producerSizeOffset:], h.Size)
}

func decodeProducerHeader(buf []byte) producerHeader {
	return producerHeader{
		Magic:             binary.LittleEndian.Uint64(buf[0:]),
		NBuckets:          binary.LittleEndian.Uint64(buf[8:]),
		BucketSize:        binary.LittleEndian.Uint64(buf[16:]),
		BucketArrayOffset: binary.LittleEndian.Uint64(buf[24:]),
		ProducerIndex:     binary.LittleEndian.Uint64(buf[producerIndexOffset:]),
		NextSeq:           binary.LittleEndian.Uint64(buf[producerNextSeqOffset:]),
		Size:              binary.LittleEndian.Uint64(buf[producerSizeOffset:]),
	}
}

func readProducerIndex(region []byte) uint64 {
	return binary.LittleEndian.Uint64(region[producerIndexOffset:])
}

func writeProducerIndex(region []byte, v uint64) {
	binary.LittleEndian.PutUint64(region[producerIndexOffset:], v)
}

func readProducerNextSeq(region []byte) uint64 {
	return binary.LittleEndian.Uint64(region[producerNextSeqOffset:])
}

func writeProducerNextSeq(region []byte, v uint64) {
	binary.LittleEndian.PutUint64(region[producerNextSeqOffset:], v)
}

type consumerHeader struct {
	Magic         uint32
	ConsumerIndex uint64
	NextSeq       uint64
	Size          uint64
}

func encodeConsumerHeader(buf []byte, h consumerHeader) {
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint64(buf[consumerIndexOffset:], h.ConsumerIndex)
	binary.LittleEndian.PutUint64(buf[consumerNextSeqOffset:], h.NextSeq)
	binary.LittleEndian.PutUint64(buf[consumerSizeOffset:], h.Size)
}

func decodeConsumerHeader(buf []byte) consumerHeader {
	return consumerHeader{
		Magic:         binary.LittleEndian.Uint32(buf[0:]),
		ConsumerIndex: binary.LittleEndian.Uint64(buf[consumerIndexOffset:]),
		NextSeq:       binary.LittleEndian.Uint64(buf[consumerNextSeqOffset:]),
		Size:          binary.LittleEndian.Uint64(buf[consumerSizeOffset:]),
	}
}

func readConsumerIndex(region []byte) uint64 {
	return binary.LittleEndian.Uint64(region[consumerIndexOffset:])
}

func writeConsumerIndex(region []byte, v uint64) {
	binary.LittleEndian.PutUint64(region[consumerIndexOffset:], v)
}

func readConsumerNextSeq(region []byte) uint64 {
	return binary.LittleEndian.Uint64(region[consumerNextSeqOffset:])
}

func writeConsumerNextSeq(region []byte, v uint64) {
	binary.LittleEndian.PutUint64(region[consumerNextSeqOffset:], v)
}

func isPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
