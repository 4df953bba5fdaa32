package shadow

import (
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/cxl-micron-reskit/famfs-sub000/internal/onmedia"
)

type fileDoc struct {
	File fileBody `yaml:"file"`
}

type fileBody struct {
	Path           string           `yaml:"path"`
	Size           uint64           `yaml:"size"`
	Flags          uint32           `yaml:"flags"`
	Mode           octalU32         `yaml:"mode"`
	UID            uint32           `yaml:"uid"`
	GID            uint32           `yaml:"gid"`
	NExtents       uint64           `yaml:"nextents"`
	SimpleExtList  []simpleExtYAML  `yaml:"simple_ext_list,omitempty"`
	StripedExtList []stripedExtYAML `yaml:"striped_ext_list,omitempty"`
}

type simpleExtYAML struct {
	DevIndex uint64 `yaml:"devindex"`
	Offset   hexU64 `yaml:"offset"`
	Length   hexU64 `yaml:"length"`
}

type stripedExtYAML struct {
	NStrips       uint64          `yaml:"nstrips"`
	ChunkSize     hexU64          `yaml:"chunk_size"`
	SimpleExtList []simpleExtYAML `yaml:"simple_ext_list"`
}

// EmitFile serializes meta as the YAML document spec.md §4.F specifies.
func EmitFile(meta onmedia.FileMeta) ([]byte, error) {
	return yaml.Marshal(toFileDoc(meta))
}

// ParseFile parses a shadow file YAML document back into its metadata.
func ParseFile(data []byte) (onmedia.FileMeta, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return onmedia.FileMeta{}, err
	}

	return fromFileDoc(doc), nil
}

// selfTestRoundTrip implements spec.md §4.F's codec self-test:
// parse(emit(meta)) == meta. It is called by Writer.WriteFile before a
// document is committed to the shadow tree.
func selfTestRoundTrip(meta onmedia.FileMeta, emitted []byte) bool {
	got, err := ParseFile(emitted)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(got, meta)
}

func toFileDoc(meta onmedia.FileMeta) fileDoc {
	body := fileBody{
		Path:  meta.RelPath,
		Size:  meta.Size,
		Flags: meta.Flags,
		Mode:  octalU32(meta.Mode),
		UID:   meta.UID,
		GID:   meta.GID,
	}

	switch meta.FMap.ExtType {
	case onmedia.ExtSimple:
		body.NExtents = uint64(len(meta.FMap.Simple))
		body.SimpleExtList = toSimpleExtYAML(meta.FMap.Simple)
	case onmedia.ExtInterleave:
		body.NExtents = meta.FMap.Interleaved.NStrips
		body.StripedExtList = []stripedExtYAML{{
			NStrips:       meta.FMap.Interleaved.NStrips,
			ChunkSize:     hexU64(meta.FMap.Interleaved.ChunkSize),
			SimpleExtList: toSimpleExtYAML(meta.FMap.Interleaved.Strips),
		}}
	}

	return fileDoc{File: body}
}

func fromFileDoc(doc fileDoc) onmedia.FileMeta {
	b := doc.File

	meta := onmedia.FileMeta{
		Size:    b.Size,
		Flags:   b.Flags,
		UID:     b.UID,
		GID:     b.GID,
		Mode:    uint32(b.Mode),
		RelPath: b.Path,
	}

	switch {
	case len(b.StripedExtList) > 0:
		strip := b.StripedExtList[0]
		meta.FMap = onmedia.FileMap{
			ExtType: onmedia.ExtInterleave,
			Interleaved: onmedia.InterleavedExt{
				NStrips:   strip.NStrips,
				ChunkSize: uint64(strip.ChunkSize),
				Strips:    fromSimpleExtYAML(strip.SimpleExtList),
			},
		}
	default:
		meta.FMap = onmedia.FileMap{
			ExtType: onmedia.ExtSimple,
			Simple:  fromSimpleExtYAML(b.SimpleExtList),
		}
	}

	return meta
}

func toSimpleExtYAML(extents []onmedia.SimpleExtent) []simpleExtYAML {
	out := make([]simpleExtYAML, len(extents))
	for i, e := range extents {
		out[i] = simpleExtYAML{DevIndex: e.DevIndex, Offset: hexU64(e.Offset), Length: hexU64(e.Length)}
	}
	return out
}

func fromSimpleExtYAML(extents []simpleExtYAML) []onmedia.SimpleExtent {
	out := make([]onmedia.SimpleExtent, len(extents))
	for i, e := range extents {
		out[i] = onmedia.SimpleExtent{DevIndex: e.DevIndex, Offset: uint64(e.Offset), Length: uint64(e.Length)}
	}
	return out
}
