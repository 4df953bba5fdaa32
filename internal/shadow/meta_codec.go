package shadow

import (
	"encoding/hex"

	"gopkg.in/yaml.v3"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

// superblockDoc is the shadow tree's read-only stub for the mount's
// superblock: enough to identify which filesystem a shadow tree mirrors,
// not a wire-compatible re-encoding (a shadow mount has no DAX device to
// read the real superblock back from).
type superblockDoc struct {
	Superblock superblockBody `yaml:"superblock"`
}

type superblockBody struct {
	Magic      uint64 `yaml:"magic"`
	Version    uint64 `yaml:"version"`
	LogLen     uint64 `yaml:"log_len"`
	AllocUnit  uint64 `yaml:"alloc_unit"`
	SystemUUID string `yaml:"system_uuid"`
}

// EmitSuperblockStub serializes the informational subset of sb the shadow
// tree carries.
func EmitSuperblockStub(sb onmedia.Superblock) ([]byte, error) {
	return yaml.Marshal(superblockDoc{Superblock: superblockBody{
		Magic:      sb.Magic,
		Version:    sb.Version,
		LogLen:     sb.LogLen,
		AllocUnit:  sb.AllocUnit,
		SystemUUID: hex.EncodeToString(sb.SystemUUID[:]),
	}})
}

// logDoc is the shadow tree's read-only stub for the log header.
type logDoc struct {
	Log logBody `yaml:"log"`
}

type logBody struct {
	Magic      uint64 `yaml:"magic"`
	Len        uint64 `yaml:"len"`
	LastIndex  uint64 `yaml:"last_index"`
	NextSeqnum uint64 `yaml:"next_seqnum"`
	NextIndex  uint64 `yaml:"next_index"`
}

// EmitLogStub serializes the informational subset of a log header the
// shadow tree carries.
func EmitLogStub(h onmedia.LogHeader) ([]byte, error) {
	return yaml.Marshal(logDoc{Log: logBody{
		Magic:      h.Magic,
		Len:        h.Len,
		LastIndex:  h.LastIndex,
		NextSeqnum: h.NextSeqnum,
		NextIndex:  h.NextIndex,
	}})
}
