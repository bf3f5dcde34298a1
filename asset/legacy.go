// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tenfyzhong/cityhash"
	"golang.org/x/text/encoding/unicode"
)

// legacyHeader is the fixed-width preamble of a legacy-PAK .uasset
// header that LegacyReader understands: offsets and counts into the
// three variable-length tables that follow it (names, imports,
// exports), plus the bulk-data scalar. Real cooked-asset headers carry
// a great deal more (dependency packages, thumbnails, gatherable text,
// ...); LegacyReader only reads what AssetView exposes and leaves
// full property-tree parsing to an external collaborator.
type legacyHeader struct {
	NamesDirectoryOffset uint32
	NamesDirectoryLength uint32
	ImportTableOffset    uint32
	ImportCount          uint32
	ExportTableOffset    uint32
	ExportCount          uint32
	BulkDataStartOffset  uint64
}

const legacyHeaderSize = 4*6 + 8

// legacyImportRecord is the on-disk shape of one Import: three
// null-terminated-string indices into the names directory.
type legacyImportRecord struct {
	ObjectNameIdx   int32
	ClassNameIdx    int32
	ClassPackageIdx int32
}

// legacyExportRecord is the on-disk shape of one Export. SerialSize
// immediately precedes SerialOffset, the adjacency the in-place header
// patcher relies on to locate and rewrite them without a full parse.
type legacyExportRecord struct {
	ObjectNameIdx int32
	ClassRef      int32
	SerialSize    uint64
	SerialOffset  uint64
}

// LegacyReader is the reference AssetReader implementation: it reads
// and writes the flat header tables described above and treats the
// sibling .uexp body as an opaque byte range it never touches itself
// (patch.Patcher splices the body directly; LegacyReader's job stops
// at the header).
type LegacyReader struct {
	headerPath string
	names      []string
	nameHashes []uint64
	raw        []byte
}

// NewLegacyReader returns a ready-to-use LegacyReader.
func NewLegacyReader() *LegacyReader {
	return &LegacyReader{}
}

// Open implements AssetReader.
func (r *LegacyReader) Open(headerPath string, opts OpenOptions) (*AssetView, error) {
	raw, err := os.ReadFile(headerPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &OpenError{Path: headerPath, Cause: ErrFileNotFound}
		}
		return nil, &OpenError{Path: headerPath, Cause: err}
	}
	if len(raw) < legacyHeaderSize {
		return nil, &OpenError{Path: headerPath, Cause: fmt.Errorf("header shorter than %d bytes", legacyHeaderSize)}
	}

	var hdr legacyHeader
	if err := binary.Read(bytes.NewReader(raw[:legacyHeaderSize]), binary.LittleEndian, &hdr); err != nil {
		return nil, &OpenError{Path: headerPath, Cause: err}
	}

	end := int(hdr.NamesDirectoryOffset) + int(hdr.NamesDirectoryLength)
	if hdr.NamesDirectoryOffset > uint32(len(raw)) || end > len(raw) {
		return nil, &OpenError{Path: headerPath, Cause: fmt.Errorf("names directory out of bounds")}
	}
	names, hashes, err := parseNamesDirectory(raw[hdr.NamesDirectoryOffset:end])
	if err != nil {
		return nil, &OpenError{Path: headerPath, Cause: err}
	}

	imports, err := parseImportTable(raw, hdr.ImportTableOffset, hdr.ImportCount, names)
	if err != nil {
		return nil, &OpenError{Path: headerPath, Cause: err}
	}

	// Export records live in the header, not the body; the
	// SkipExportBodyParse flag governs whether the *body* file is
	// touched (it never is here, LegacyReader never reads the body),
	// not whether the header's own export table is read, since every
	// other component needs it regardless of the flag.
	exports, err := parseExportTable(raw, hdr.ExportTableOffset, hdr.ExportCount, names)
	if err != nil {
		return nil, &OpenError{Path: headerPath, Cause: err}
	}

	r.headerPath = headerPath
	r.names = names
	r.nameHashes = hashes
	r.raw = raw

	return &AssetView{
		EngineVersion:       opts.RequestedEngineVersion,
		Imports:             imports,
		Exports:             exports,
		BulkDataStartOffset: hdr.BulkDataStartOffset,
	}, nil
}

// WriteHeader implements AssetReader by regenerating only the header
// stream, leaving the body file untouched. It requires that Open was
// called first on the same path so the reader has the original
// names/import tables to re-emit export and bulk-data scalars against.
func (r *LegacyReader) WriteHeader(headerPath string, view *AssetView) error {
	if r.raw == nil || r.headerPath != headerPath {
		return &OpenError{Path: headerPath, Cause: fmt.Errorf("WriteHeader called without a matching Open")}
	}

	var hdr legacyHeader
	if err := binary.Read(bytes.NewReader(r.raw[:legacyHeaderSize]), binary.LittleEndian, &hdr); err != nil {
		return &OpenError{Path: headerPath, Cause: err}
	}
	hdr.BulkDataStartOffset = view.BulkDataStartOffset

	out := make([]byte, len(r.raw))
	copy(out, r.raw)

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, hdr); err != nil {
		return &OpenError{Path: headerPath, Cause: err}
	}
	copy(out[:legacyHeaderSize], buf.Bytes())

	for i, exp := range view.Exports {
		recOffset := int(hdr.ExportTableOffset) + i*24
		binary.LittleEndian.PutUint64(out[recOffset+8:recOffset+16], exp.SerialSize)
		binary.LittleEndian.PutUint64(out[recOffset+16:recOffset+24], exp.SerialOffset)
	}

	return os.WriteFile(headerPath, out, 0o644)
}

// Close implements AssetReader.
func (r *LegacyReader) Close() error {
	r.raw = nil
	r.names = nil
	r.nameHashes = nil
	return nil
}

// parseNamesDirectory reads a sequence of names, each encoded as a
// one-byte length prefix followed by that many bytes and a trailing
// null. A length byte with the high bit set marks a UTF-16LE encoded
// name instead of ASCII, decoded with golang.org/x/text/encoding/unicode.
func parseNamesDirectory(buf []byte) ([]string, []uint64, error) {
	var names []string
	var hashes []uint64
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()

	for len(buf) != 0 {
		lenByte := buf[0]
		wide := lenByte&0x80 != 0
		strLen := int(lenByte &^ 0x80)

		if wide {
			byteLen := strLen * 2
			if 1+byteLen+1 > len(buf) {
				return nil, nil, fmt.Errorf("names directory: truncated wide entry")
			}
			decoded, err := decoder.Bytes(buf[1 : 1+byteLen])
			if err != nil {
				return nil, nil, fmt.Errorf("names directory: %w", err)
			}
			name := string(decoded)
			names = append(names, name)
			hashes = append(hashes, hashName(name))
			buf = buf[1+byteLen+1:]
			continue
		}

		if 1+strLen+1 > len(buf) {
			return nil, nil, fmt.Errorf("names directory: truncated entry")
		}
		name := string(buf[1 : 1+strLen])
		names = append(names, name)
		hashes = append(hashes, hashName(name))
		buf = buf[1+strLen+1:]
	}
	return names, hashes, nil
}

// hashName hashes a case-folded name with CityHash64, matching the
// FNameHash convention cooked asset name tables use for lookup.
func hashName(s string) uint64 {
	return cityhash.CityHash64([]byte(strings.ToLower(s)))
}

func parseImportTable(raw []byte, offset, count uint32, names []string) ([]Import, error) {
	const recSize = 12
	need := int(offset) + int(count)*recSize
	if need > len(raw) {
		return nil, fmt.Errorf("import table out of bounds")
	}
	imports := make([]Import, 0, count)
	for i := uint32(0); i < count; i++ {
		var rec legacyImportRecord
		recOff := int(offset) + int(i)*recSize
		if err := binary.Read(bytes.NewReader(raw[recOff:recOff+recSize]), binary.LittleEndian, &rec); err != nil {
			return nil, err
		}
		obj, err := nameAt(names, rec.ObjectNameIdx)
		if err != nil {
			return nil, err
		}
		cls, err := nameAt(names, rec.ClassNameIdx)
		if err != nil {
			return nil, err
		}
		pkg, err := nameAt(names, rec.ClassPackageIdx)
		if err != nil {
			return nil, err
		}
		imports = append(imports, Import{ObjectName: obj, ClassName: cls, ClassPackage: pkg})
	}
	return imports, nil
}

func parseExportTable(raw []byte, offset, count uint32, names []string) ([]Export, error) {
	const recSize = 24
	need := int(offset) + int(count)*recSize
	if need > len(raw) {
		return nil, fmt.Errorf("export table out of bounds")
	}
	exports := make([]Export, 0, count)
	for i := uint32(0); i < count; i++ {
		var rec legacyExportRecord
		recOff := int(offset) + int(i)*recSize
		if err := binary.Read(bytes.NewReader(raw[recOff:recOff+recSize]), binary.LittleEndian, &rec); err != nil {
			return nil, err
		}
		obj, err := nameAt(names, rec.ObjectNameIdx)
		if err != nil {
			return nil, err
		}
		exports = append(exports, Export{
			ObjectName:   obj,
			ClassRef:     ImportRef(rec.ClassRef),
			SerialOffset: rec.SerialOffset,
			SerialSize:   rec.SerialSize,
		})
	}
	return exports, nil
}

func nameAt(names []string, idx int32) (string, error) {
	if idx < 0 || int(idx) >= len(names) {
		return "", fmt.Errorf("name index %d out of range (%d names)", idx, len(names))
	}
	return names[idx], nil
}

// BodyPath derives the sibling .uexp path for a .uasset header path.
func BodyPath(headerPath string) string {
	ext := filepath.Ext(headerPath)
	return strings.TrimSuffix(headerPath, ext) + ".uexp"
}
