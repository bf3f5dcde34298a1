// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pakforge/iorepair/asset"
)

const (
	testMaterialRecordSize = 40
)

// writeName appends a length-prefixed, null-terminated ASCII name entry
// to buf, matching LegacyReader's names-directory encoding.
func writeName(buf []byte, name string) []byte {
	buf = append(buf, byte(len(name)))
	buf = append(buf, []byte(name)...)
	return append(buf, 0)
}

// writeLegacyHeader builds a minimal legacy-PAK .uasset header with one
// import (className) and one export (objectName, SerialSize,
// SerialOffset, ClassRef pointing at the import), with
// bulkDataStartOffset stored in the fixed preamble.
func writeLegacyHeader(objectName, className string, serialSize, serialOffset, bulkDataStartOffset uint64) []byte {
	const headerSize = 32

	var names []byte
	names = writeName(names, className)   // idx 0
	names = writeName(names, "Class")     // idx 1
	names = writeName(names, "/Script/Engine") // idx 2
	names = writeName(names, objectName)  // idx 3

	namesOffset := uint32(headerSize)
	namesLen := uint32(len(names))
	importOffset := namesOffset + namesLen
	importCount := uint32(1)
	exportOffset := importOffset + importCount*12
	exportCount := uint32(1)

	out := make([]byte, exportOffset+exportCount*24)
	binary.LittleEndian.PutUint32(out[0:4], namesOffset)
	binary.LittleEndian.PutUint32(out[4:8], namesLen)
	binary.LittleEndian.PutUint32(out[8:12], importOffset)
	binary.LittleEndian.PutUint32(out[12:16], importCount)
	binary.LittleEndian.PutUint32(out[16:20], exportOffset)
	binary.LittleEndian.PutUint32(out[20:24], exportCount)
	binary.LittleEndian.PutUint64(out[24:32], bulkDataStartOffset)

	copy(out[namesOffset:], names)

	// import record: ObjectNameIdx=0, ClassNameIdx=1, ClassPackageIdx=2
	binary.LittleEndian.PutUint32(out[importOffset:importOffset+4], 0)
	binary.LittleEndian.PutUint32(out[importOffset+4:importOffset+8], 1)
	binary.LittleEndian.PutUint32(out[importOffset+8:importOffset+12], 2)

	// export record: ObjectNameIdx=3, ClassRef=-1, SerialSize, SerialOffset
	binary.LittleEndian.PutUint32(out[exportOffset:exportOffset+4], 3)
	binary.LittleEndian.PutUint32(out[exportOffset+4:exportOffset+8], uint32(int32(-1)))
	binary.LittleEndian.PutUint64(out[exportOffset+8:exportOffset+16], serialSize)
	binary.LittleEndian.PutUint64(out[exportOffset+16:exportOffset+24], serialOffset)

	return out
}

// writeMaterialBody builds a .uexp body carrying the material-array
// signature patch.Patcher scans for: a little-endian count, a tag byte,
// three 0xFF bytes, a non-0xFF byte, then count material records.
func writeMaterialBody(count int32) []byte {
	const prefix = 20
	dataStart := prefix + 9
	body := make([]byte, dataStart+int(count)*testMaterialRecordSize+8)

	countPos := dataStart - 9
	binary.LittleEndian.PutUint32(body[countPos:countPos+4], uint32(count))
	body[dataStart-5] = 0x00
	body[dataStart-4] = 0xFF
	body[dataStart-3] = 0xFF
	body[dataStart-2] = 0xFF
	body[dataStart-1] = 0x07

	for m := int32(0); m < count; m++ {
		off := dataStart + int(m)*testMaterialRecordSize
		for b := 0; b < testMaterialRecordSize; b++ {
			body[off+b] = byte(m + 1)
		}
	}
	return body
}

func newReader() asset.AssetReader { return asset.NewLegacyReader() }

// TestDriverRunBatch builds a directory of 100 files: 80 noise files
// and 10 SkeletalMesh-candidate .uasset/.uexp pairs by name: 6 actually
// classify as skeletal_mesh (one of those six has a body missing the
// material signature and fails to patch), 4 classify as something
// else and are skipped.
func TestDriverRunBatch(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 80; i++ {
		p := filepath.Join(dir, fmt.Sprintf("noise_%02d.txt", i))
		if err := os.WriteFile(p, []byte("not an asset"), 0o644); err != nil {
			t.Fatalf("write noise file: %v", err)
		}
	}

	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("SK_Skel%02d", i)
		headerPath := filepath.Join(dir, name+".uasset")
		bodyPath := filepath.Join(dir, name+".uexp")

		serialSize := uint64(1000 + i)
		serialOffset := uint64(5000 + i*10)
		bulk := uint64(9000 + i*10)

		header := writeLegacyHeader(name, "SkeletalMesh", serialSize, serialOffset, bulk)
		if err := os.WriteFile(headerPath, header, 0o644); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}

		var body []byte
		if i == 5 {
			body = make([]byte, 64) // no material signature: patch fails
		} else {
			body = writeMaterialBody(int32(2 + i))
		}
		if err := os.WriteFile(bodyPath, body, 0o644); err != nil {
			t.Fatalf("write body %s: %v", name, err)
		}
	}

	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("SK_Other%02d", i)
		headerPath := filepath.Join(dir, name+".uasset")
		bodyPath := filepath.Join(dir, name+".uexp")

		header := writeLegacyHeader(name, "StaticMesh", uint64(2000+i), uint64(6000+i*10), uint64(8000+i*10))
		if err := os.WriteFile(headerPath, header, 0o644); err != nil {
			t.Fatalf("write header %s: %v", name, err)
		}
		if err := os.WriteFile(bodyPath, writeMaterialBody(3), 0o644); err != nil {
			t.Fatalf("write body %s: %v", name, err)
		}
	}

	d := NewDriver(Options{MaxParallelism: 4}, newReader, nil)
	summary, err := d.Run(dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if summary.TotalFiles != 100 {
		t.Errorf("TotalFiles = %d, want 100", summary.TotalFiles)
	}
	if summary.Candidates != 10 {
		t.Errorf("Candidates = %d, want 10", summary.Candidates)
	}
	if summary.Processed != 10 {
		t.Errorf("Processed = %d, want 10", summary.Processed)
	}
	if summary.Patched != 5 {
		t.Errorf("Patched = %d, want 5", summary.Patched)
	}
	if summary.Skipped != 4 {
		t.Errorf("Skipped = %d, want 4", summary.Skipped)
	}
	if summary.Errors != 1 {
		t.Errorf("Errors = %d, want 1", summary.Errors)
	}
	if len(summary.PatchedFiles) != 5 {
		t.Errorf("len(PatchedFiles) = %d, want 5", len(summary.PatchedFiles))
	}
	if summary.Failed() != true {
		t.Errorf("Failed() = false, want true (one candidate errored)")
	}
}

func TestDriverRunNoMappingFailsClosed(t *testing.T) {
	dir := t.TempDir()
	d := NewDriver(Options{MappingPath: filepath.Join(dir, "missing.usmap")}, newReader, nil)
	_, err := d.Run(dir)
	if err != ErrMappingLoadFailed {
		t.Fatalf("expected ErrMappingLoadFailed, got %v", err)
	}
}

func TestIsCandidate(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/a/SK_Hero.uasset", true},
		{"/a/sk_hero.uasset", true},
		{"/a/Meshes/Hero.uasset", true},
		{"/a/meshes/Hero.uasset", true},
		{"/a/Hero.uasset", false},
		{"/a/SK_Hero.uexp", false},
		{"/a/Textures/SK_Hero.png", false},
	}
	for _, c := range cases {
		if got := isCandidate(c.path); got != c.want {
			t.Errorf("isCandidate(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}
