package fslog

import "github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"

// Log is a view over a memory-mapped byte region laid out as a LogHeader
// followed by a contiguous array of LogEntry slots. It holds no state of
// its own beyond the region slice — the header and every entry live in the
// caller's mapped memory, so Append's effects are visible to every other
// mapper of the same file as soon as Flush runs.
type Log struct {
	region []byte
}

// Wrap views an already-mapped region as a Log. It does not validate the
// header; callers check CheckHeader themselves, since an invalid header
// (e.g. during mkfs, before Init runs) is not always an error condition.
func Wrap(region []byte) (*Log, error) {
	if len(region) < onmedia.LogHeaderEncodedSize {
		return nil, errRegionTooSmall
	}
	return &Log{region: region}, nil
}

// Init formats a freshly allocated region as an empty log with capacity for
// lastIndex+1 entries, derived from len(region).
func Init(region []byte, lastIndex uint64) (*Log, error) {
	l, err := Wrap(region)
	if err != nil {
		return nil, err
	}

	h := onmedia.LogHeader{
		Magic:     onmedia.LogMagic,
		Len:       uint64(len(region)),
		LastIndex: lastIndex,
	}
	l.writeHeader(&h)

	return l, nil
}

// Header decodes the current header from the mapped region.
func (l *Log) Header() onmedia.LogHeader {
	h, _ := onmedia.DecodeHeader(l.region[:onmedia.LogHeaderEncodedSize])
	return h
}

// CheckHeader reports whether the mapped region's header is self-consistent.
func (l *Log) CheckHeader() bool {
	h := l.Header()
	return onmedia.CheckLogHeader(&h)
}

func (l *Log) writeHeader(h *onmedia.LogHeader) {
	buf := onmedia.EncodeHeader(h)
	copy(l.region[:onmedia.LogHeaderEncodedSize], buf)
}

func (l *Log) entryOffset(i uint64) int {
	return onmedia.LogHeaderEncodedSize + int(i)*onmedia.LogEntryEncodedSize
}

// NEntries reports how many entry slots the mapped region has room for,
// independent of how many are currently in use (NextIndex).
func (l *Log) NEntries() uint64 {
	return uint64((len(l.region) - onmedia.LogHeaderEncodedSize) / onmedia.LogEntryEncodedSize)
}

// Entry decodes the entry at slot i.
func (l *Log) Entry(i uint64) (onmedia.LogEntry, error) {
	if i >= l.NEntries() {
		return onmedia.LogEntry{}, errIndexOutOfRange
	}

	off := l.entryOffset(i)
	return onmedia.DecodeEntry(l.region[off : off+onmedia.LogEntryEncodedSize])
}

// Append implements spec.md §4.C: stamps seqnum from the header's
// next_seqnum cursor, computes the entry CRC, writes the entry into its
// slot, then advances next_seqnum/next_index. It does not flush — callers
// flush once after Append returns, per the "flush the whole log on every
// append" ordering note.
//
// Not re-entrant: callers must hold the session lock (internal/session).
func (l *Log) Append(entry onmedia.LogEntry) (onmedia.LogEntry, error) {
	h := l.Header()

	if h.NextIndex > h.LastIndex {
		return onmedia.LogEntry{}, errLogFull
	}

	entry.Seqnum = h.NextSeqnum
	buf := onmedia.EncodeEntry(&entry)

	off := l.entryOffset(h.NextIndex)
	copy(l.region[off:off+onmedia.LogEntryEncodedSize], buf)

	h.NextSeqnum++
	h.NextIndex++
	l.writeHeader(&h)

	return entry, nil
}

// Flush makes this process's writes to the mapped region visible to other
// mappers. Callers invoke it once after Append (or a batch of appends)
// rather than per field write.
func (l *Log) Flush() error {
	return Flush(l.region)
}

// Invalidate discards this process's cached view of the region, so the next
// Header/Entry read observes another host's writes.
func (l *Log) Invalidate() error {
	return Invalidate(l.region)
}
