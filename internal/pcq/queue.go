package pcq

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/createfile"
	"github.com/cxl-micron-reskit/famfs-sub000/internal/session"
)

// Role is which side of the queue a Queue handle was opened for.
type Role int

const (
	RoleProducer Role = iota
	RoleConsumer
	RoleReadOnly
)

func consumerFname(fname string) string { return fname + ".consumer" }

// Stats reports queue depth and the running counters spec.md §4.I's
// supplemented status-reporting feature (grounded on pcq_lib.c's
// get_queue_info/status_worker) needs for a monitoring loop.
type Stats struct {
	Depth         uint64
	ProducerIndex uint64
	ConsumerIndex uint64
	Sent          uint64
	Received      uint64
	Errors        uint64
	Full          uint64
	Empty         uint64
	Retries       uint64
}

// Queue is one open handle on a producer/consumer ring. A handle is valid
// for exactly one role and must not be used for Put/Get calls from more
// than one goroutine at a time, per spec.md §4.I's single-producer/
// single-consumer contract.
type Queue struct {
	role Role

	producerFile   *os.File
	producerRegion []byte

	consumerFile   *os.File
	consumerRegion []byte

	nbuckets          uint64
	bucketSize        uint64
	bucketArrayOffset uint64

	sent, received, errs, full, empty, retries atomic.Uint64
}

// Create provisions a new queue as a pair of famfs files rooted at sess's
// mount point: fname (the producer/bucket file) and fname+".consumer".
// Grounded on pcq_create: the consumer file is created and stamped first
// (the producer always opens it before the producer file), then the
// producer file.
func Create(sess *session.Session, fname string, nbuckets, bucketSize uint64, uid, gid uint32) error {
	if !isPowerOfTwo(bucketSize) {
		return errBucketSizeNotPowerOfTwo
	}

	cname := consumerFname(fname)
	if _, err := os.Stat(cname); err == nil {
		return errQueueAlreadyExists
	}
	if _, err := os.Stat(fname); err == nil {
		return errQueueAlreadyExists
	}

	cf, _, err := createfile.Mkfile(sess, createfile.Request{
		FullPath: cname,
		Mode:     0644,
		UID:      uid,
		GID:      gid,
		Size:     consumerFileSize,
	})
	if err != nil {
		return fmt.Errorf("pcq: creating consumer file: %w", err)
	}
	defer cf.Close()

	cregion, err := mapFile(int(cf.Fd()), consumerFileSize, true)
	if err != nil {
		return fmt.Errorf("pcq: mapping consumer file: %w", err)
	}
	defer unmapFile(cregion)

	cbuf := make([]byte, consumerHeaderSize)
	encodeConsumerHeader(cbuf, consumerHeader{
		Magic: consumerMagic,
		Size:  consumerFileSize,
	})
	copy(cregion, cbuf)
	if err := flush(cregion); err != nil {
		return err
	}

	producerSize := headerRegion + nbuckets*bucketSize
	pf, _, err := createfile.Mkfile(sess, createfile.Request{
		FullPath: fname,
		Mode:     0644,
		UID:      uid,
		GID:      gid,
		Size:     producerSize,
	})
	if err != nil {
		return fmt.Errorf("pcq: creating producer file: %w", err)
	}
	defer pf.Close()

	pregion, err := mapFile(int(pf.Fd()), int(producerSize), true)
	if err != nil {
		return fmt.Errorf("pcq: mapping producer file: %w", err)
	}
	defer unmapFile(pregion)

	pbuf := make([]byte, producerHeaderSize)
	encodeProducerHeader(pbuf, producerHeader{
		Magic:             producerMagic,
		NBuckets:          nbuckets,
		BucketSize:        bucketSize,
		BucketArrayOffset: headerRegion,
		Size:              producerSize,
	})
	copy(pregion, pbuf)
	return flush(pregion)
}

// Open maps an existing queue's files for the given role, mapping each
// file read-write only on the side permitted to mutate it.
func Open(fname string, role Role) (*Queue, error) {
	cname := consumerFname(fname)

	pf, err := os.OpenFile(fname, openFlagsFor(role == RoleProducer), 0)
	if err != nil {
		return nil, fmt.Errorf("pcq: opening producer file: %w", err)
	}

	cf, err := os.OpenFile(cname, openFlagsFor(role == RoleConsumer), 0)
	if err != nil {
		pf.Close()
		return nil, fmt.Errorf("pcq: opening consumer file: %w", err)
	}

	pinfo, err := pf.Stat()
	if err != nil {
		pf.Close()
		cf.Close()
		return nil, err
	}
	cinfo, err := cf.Stat()
	if err != nil {
		pf.Close()
		cf.Close()
		return nil, err
	}

	pregion, err := mapFile(int(pf.Fd()), int(pinfo.Size()), role == RoleProducer)
	if err != nil {
		pf.Close()
		cf.Close()
		return nil, fmt.Errorf("pcq: mapping producer file: %w", err)
	}

	cregion, err := mapFile(int(cf.Fd()), int(cinfo.Size()), role == RoleConsumer)
	if err != nil {
		unmapFile(pregion)
		pf.Close()
		cf.Close()
		return nil, fmt.Errorf("pcq: mapping consumer file: %w", err)
	}

	ph := decodeProducerHeader(pregion)
	if ph.Magic != producerMagic {
		unmapFile(pregion)
		unmapFile(cregion)
		pf.Close()
		cf.Close()
		return nil, errBadProducerMagic
	}

	ch := decodeConsumerHeader(cregion)
	if ch.Magic != consumerMagic {
		unmapFile(pregion)
		unmapFile(cregion)
		pf.Close()
		cf.Close()
		return nil, errBadConsumerMagic
	}

	return &Queue{
		role:              role,
		producerFile:      pf,
		producerRegion:    pregion,
		consumerFile:      cf,
		consumerRegion:    cregion,
		nbuckets:          ph.NBuckets,
		bucketSize:        ph.BucketSize,
		bucketArrayOffset: ph.BucketArrayOffset,
	}, nil
}

func openFlagsFor(writable bool) int {
	if writable {
		return os.O_RDWR
	}
	return os.O_RDONLY
}

// Close unmaps and closes both of the queue's files.
func (q *Queue) Close() error {
	err1 := unmapFile(q.producerRegion)
	err2 := unmapFile(q.consumerRegion)
	err3 := q.producerFile.Close()
	err4 := q.consumerFile.Close()

	for _, err := range []error{err1, err2, err3, err4} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) bucketSlice(index uint64) []byte {
	off := q.bucketArrayOffset + index*q.bucketSize
	return q.producerRegion[off : off+q.bucketSize]
}

// Put appends payload to the queue, per spec.md §4.I's Put. In non-waiting
// mode a full queue returns errQueueFull immediately; in waiting mode Put
// yields cooperatively, invalidating the consumer index before each
// re-check, until room opens up or ctx is done.
func (q *Queue) Put(ctx context.Context, payload []byte, wait bool) (uint64, error) {
	if q.role != RoleProducer {
		return 0, errWrongRole
	}
	if uint64(len(payload)) > bucketPayloadSize(q.bucketSize) {
		return 0, errPayloadTooLarge
	}

	countedFull := false
	var putIndex uint64

	for {
		putIndex = readProducerIndex(q.producerRegion)

		if err := invalidate(q.consumerRegion); err != nil {
			return 0, err
		}
		consumerIdx := readConsumerIndex(q.consumerRegion)

		if (putIndex+1)%q.nbuckets != consumerIdx {
			break
		}

		if !countedFull {
			countedFull = true
			q.full.Add(1)
		}
		if !wait {
			return 0, errQueueFull
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		runtime.Gosched()
	}

	seq := readProducerNextSeq(q.producerRegion)
	writeProducerNextSeq(q.producerRegion, seq+1)

	bucket := q.bucketSlice(putIndex)
	encodeBucket(bucket, payload, seq)
	// msync requires a page-aligned address; bucket and the index field
	// are each sub-slices of producerRegion that may not start on a page
	// boundary, so flush the whole mapping (as fslog does for the log)
	// rather than the individual sub-ranges spec.md §4.I names.
	if err := flush(q.producerRegion); err != nil {
		return 0, err
	}

	writeProducerIndex(q.producerRegion, (putIndex+1)%q.nbuckets)
	if err := flush(q.producerRegion); err != nil {
		return 0, err
	}

	q.sent.Add(1)
	return seq, nil
}

// Get retrieves the next message from the queue, per spec.md §4.I's Get. A
// CRC mismatch is retried up to 2 times after invalidating the bucket's
// cache line (a producer-side flush that has not yet propagated); if it is
// still bad after that, the mismatch is a cache-coherence violation and Get
// returns errCacheCoherenceViolation rather than delivering a corrupt
// payload.
func (q *Queue) Get(ctx context.Context, wait bool) ([]byte, uint64, error) {
	if q.role != RoleConsumer {
		return nil, 0, errWrongRole
	}

	countedEmpty := false
	var getIndex uint64

	for {
		getIndex = readConsumerIndex(q.consumerRegion)

		if err := invalidate(q.producerRegion); err != nil {
			return nil, 0, err
		}
		producerIdx := readProducerIndex(q.producerRegion)

		if getIndex != producerIdx {
			break
		}

		if !countedEmpty {
			countedEmpty = true
			q.empty.Add(1)
		}
		if !wait {
			return nil, 0, errQueueEmpty
		}
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}
		runtime.Gosched()
	}

	bucket := q.bucketSlice(getIndex)

	var payload []byte
	var seq uint64
	var ok bool
	retriesLeft := consumerNumRetries
	retryCounted := false

	for {
		// Same page-alignment constraint as Put: invalidate the whole
		// mapping rather than just this bucket's sub-slice.
		if err := invalidate(q.producerRegion); err != nil {
			return nil, 0, err
		}

		local := make([]byte, len(bucket))
		copy(local, bucket)
		payload, seq, ok = decodeBucket(local)
		if ok {
			break
		}

		if !retryCounted {
			retryCounted = true
			q.retries.Add(1)
		}
		if retriesLeft == 0 {
			q.errs.Add(1)
			return nil, 0, errCacheCoherenceViolation
		}
		retriesLeft--
	}

	expectSeq := readConsumerNextSeq(q.consumerRegion)
	writeConsumerNextSeq(q.consumerRegion, expectSeq+1)
	if seq != expectSeq {
		q.errs.Add(1)
	}

	writeConsumerIndex(q.consumerRegion, (getIndex+1)%q.nbuckets)
	if err := flush(q.consumerRegion); err != nil {
		return nil, 0, err
	}

	q.received.Add(1)
	return payload, seq, nil
}

// Stats reports the queue's current depth and running counters.
func (q *Queue) Stats() Stats {
	pidx := readProducerIndex(q.producerRegion)
	cidx := readConsumerIndex(q.consumerRegion)

	depth := pidx - cidx
	if pidx < cidx {
		depth = pidx + q.nbuckets - cidx
	}

	return Stats{
		Depth:         depth,
		ProducerIndex: pidx,
		ConsumerIndex: cidx,
		Sent:          q.sent.Load(),
		Received:      q.received.Load(),
		Errors:        q.errs.Load(),
		Full:          q.full.Load(),
		Empty:         q.empty.Load(),
		Retries:       q.retries.Load(),
	}
}

// Perm is the file-permission gating pcq_set_perm applies to a queue's two
// files, per spec.md §4.I's "file-permission bits ... gate who may open
// which side writable".
type Perm int

const (
	PermNone Perm = iota
	PermBoth
	PermProducer
	PermConsumer
)

// SetPerm chmods fname and its consumer sidecar to gate producer/consumer
// write access, without requiring the queue to be open.
func SetPerm(fname string, perm Perm) error {
	cname := consumerFname(fname)

	var pmode, cmode os.FileMode
	switch perm {
	case PermNone:
		pmode, cmode = 0444, 0444
	case PermBoth:
		pmode, cmode = 0644, 0644
	case PermProducer:
		pmode, cmode = 0644, 0444
	case PermConsumer:
		pmode, cmode = 0444, 0644
	default:
		return fmt.Errorf("pcq: unknown perm %d", perm)
	}

	if err := os.Chmod(fname, pmode); err != nil {
		return err
	}
	return os.Chmod(cname, cmode)
}
