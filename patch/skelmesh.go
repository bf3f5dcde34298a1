// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package patch widens every 40-byte material record in a SkeletalMesh
// export's body span to 44 bytes by appending four zero bytes, then
// rewrites the two 64-bit header scalars the mutated body invalidates.
// It splices the header in place as raw bytes on both the single-file
// and batch paths, rather than going through a full AssetReader
// round-trip, so it works against any header an AssetReader can locate
// the relevant scalars in, not just one it parsed itself.
package patch

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/pakforge/iorepair/internal/applog"
)

const (
	// materialRecordSize is the on-disk width of one legacy material
	// descriptor, before padding.
	materialRecordSize = 40

	// paddedMaterialRecordSize is materialRecordSize plus the 4 zero
	// bytes this patcher appends per record to reach IoStore alignment.
	paddedMaterialRecordSize = 44

	// materialRecordPadding is the width appended per record.
	materialRecordPadding = paddedMaterialRecordSize - materialRecordSize

	// maxMaterialCount bounds the plausible material array length: a
	// count outside 1..254 is rejected as a false-positive signature
	// match rather than accepted.
	maxMaterialCount = 255

	// defaultScanCap bounds the worst-case signature scan over a body
	// file.
	defaultScanCap = 500_000
)

// MaterialArrayLocation is the result of scanning a body buffer for
// the start of its material array.
type MaterialArrayLocation struct {
	Count     int32
	DataStart int64
}

// Export is the minimal export data the patcher needs for E*.
type Export struct {
	ObjectName   string
	SerialSize   uint64
	SerialOffset uint64
}

// HeaderPatch captures where and how to rewrite the header once the
// body splice has been validated: the locator runs, and is checked
// for success, before either file is touched.
type HeaderPatch struct {
	serialSizeOffset       int
	newSerialSize          uint64
	bulkDataOffset         int
	hasBulkDataOffset      bool
	newBulkDataStartOffset uint64
}

// Patcher locates, splices, and commits a material-array widening.
// ScanCap bounds the signature scan (0 means defaultScanCap); it is a
// field rather than a constant so a batch driver can plumb a
// caller-configured cap through.
type Patcher struct {
	ScanCap int
	log     *applog.Logger
}

// NewPatcher returns a Patcher using defaultScanCap. If log is nil, a
// no-op logger is used.
func NewPatcher(log *applog.Logger) *Patcher {
	if log == nil {
		log = applog.Nop()
	}
	return &Patcher{ScanCap: defaultScanCap, log: log}
}

func (p *Patcher) scanCap() int {
	if p.ScanCap > 0 {
		return p.ScanCap
	}
	return defaultScanCap
}

// LocateMaterialArray scans body for the signature marking the start
// of the material array and returns the first plausible match. The
// scan is bounded to the first ScanCap bytes of body to bound
// worst-case time on pathological inputs.
func (p *Patcher) LocateMaterialArray(body []byte) (MaterialArrayLocation, error) {
	limit := len(body)
	if scanLimit := p.scanCap(); scanLimit < limit {
		limit = scanLimit
	}

	for i := 5; i+4 <= limit; i++ {
		if body[i] != 0xFF || body[i+1] != 0xFF || body[i+2] != 0xFF || body[i+3] == 0xFF {
			continue
		}
		c := int32(binary.LittleEndian.Uint32(body[i-5 : i-1]))
		if c <= 0 || c >= maxMaterialCount {
			continue
		}
		loc := MaterialArrayLocation{Count: c, DataStart: int64(i + 4)}
		if int64(loc.Count)*materialRecordSize+loc.DataStart > int64(len(body)) {
			continue
		}
		if alreadyPadded(body, loc) {
			continue
		}
		return loc, nil
	}
	return MaterialArrayLocation{}, ErrMaterialPatternNotFound
}

// alreadyPadded is a cheap idempotence guard: if the four bytes right
// after the first material record are already zero, the array looks
// like it has already been widened, and re-splicing it would corrupt
// the file. In an unwidened body those four bytes are the start of the
// second record (or of the tail when there is one record), which is
// rarely all zero by chance, so this false-positive rate is low.
func alreadyPadded(body []byte, loc MaterialArrayLocation) bool {
	if loc.Count == 0 {
		return false
	}
	start := int(loc.DataStart) + materialRecordSize
	if start+materialRecordPadding > len(body) {
		return false
	}
	for _, b := range body[start : start+materialRecordPadding] {
		if b != 0 {
			return false
		}
	}
	return true
}

// CheckPlausibility compares loc.Count against the number of import
// table entries whose class is Material or MaterialInstanceConstant.
// A mismatch is advisory only: the pattern-derived count is
// authoritative because it reflects what the render data actually
// consumes.
func (p *Patcher) CheckPlausibility(loc MaterialArrayLocation, materialImportCount int) {
	if int(loc.Count) != materialImportCount {
		p.log.Warnf("material count mismatch: pattern says %d, import table says %d", loc.Count, materialImportCount)
	}
}

// SpliceBody returns a new buffer of length len(body) + count*4 with
// each 40-byte material record widened to 44 bytes by four zero bytes,
// and every other byte preserved verbatim.
func SpliceBody(body []byte, loc MaterialArrayLocation) []byte {
	count := int(loc.Count)
	dataStart := int(loc.DataStart)

	out := make([]byte, len(body)+count*materialRecordPadding)
	copy(out, body[:dataStart])

	for m := 0; m < count; m++ {
		src := dataStart + materialRecordSize*m
		dst := dataStart + paddedMaterialRecordSize*m
		copy(out[dst:dst+materialRecordSize], body[src:src+materialRecordSize])
		// out[dst+materialRecordSize : dst+paddedMaterialRecordSize] is
		// already zero from make().
	}

	tailSrc := dataStart + materialRecordSize*count
	tailDst := dataStart + paddedMaterialRecordSize*count
	copy(out[tailDst:], body[tailSrc:])

	return out
}

// PrepareHeaderPatch finds, without mutating anything, where the
// header buffer must be rewritten once the body splice is committed.
// It fails before any file is written if the (serial_size,
// serial_offset) adjacency locator does not find exactly one match —
// this pre-check reuses ErrHeaderRewriteFailedAfterBodyWritten as its
// error kind even though the body has not been written yet, since an
// ambiguous locator is exactly the situation that error kind names.
func PrepareHeaderPatch(header []byte, exportStar Export, oldBulkDataStartOffset, delta uint64) (HeaderPatch, error) {
	sizeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(sizeBuf, exportStar.SerialSize)
	offsetBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(offsetBuf, exportStar.SerialOffset)
	needle := append(append([]byte{}, sizeBuf...), offsetBuf...)

	matches := findAll(header, needle)
	if len(matches) != 1 {
		return HeaderPatch{}, fmt.Errorf("%w: found %d candidates for serial_size/serial_offset adjacency, want exactly 1",
			ErrHeaderRewriteFailedAfterBodyWritten, len(matches))
	}

	patch := HeaderPatch{
		serialSizeOffset: matches[0],
		newSerialSize:    exportStar.SerialSize + delta,
	}

	if oldBulkDataStartOffset == 0 {
		return patch, nil
	}

	bulkBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(bulkBuf, oldBulkDataStartOffset)
	if bulkMatches := findAll(header, bulkBuf); len(bulkMatches) > 0 {
		patch.bulkDataOffset = bulkMatches[0]
		patch.hasBulkDataOffset = true
		patch.newBulkDataStartOffset = oldBulkDataStartOffset + delta
	}

	return patch, nil
}

// Apply overwrites header in place (the caller owns the buffer) with
// the scalars PrepareHeaderPatch located.
func (hp HeaderPatch) Apply(header []byte) {
	binary.LittleEndian.PutUint64(header[hp.serialSizeOffset:hp.serialSizeOffset+8], hp.newSerialSize)
	if hp.hasBulkDataOffset {
		binary.LittleEndian.PutUint64(header[hp.bulkDataOffset:hp.bulkDataOffset+8], hp.newBulkDataStartOffset)
	}
}

func findAll(haystack, needle []byte) []int {
	var matches []int
	offset := 0
	for {
		i := bytes.Index(haystack[offset:], needle)
		if i < 0 {
			break
		}
		matches = append(matches, offset+i)
		offset += i + 1
	}
	return matches
}

// Result is what PatchFiles returns on success.
type Result struct {
	MaterialCount          int
	BytesAdded             int64
	NewBulkDataStartOffset uint64
}

// PatchFiles performs the full locate-splice-commit sequence against
// real files on disk: it locates the material array in bodyPath, runs
// the advisory plausibility check against materialImportCount,
// validates the header locator before touching anything, writes the
// spliced body, then writes the rewritten header. If the header write
// fails after the body write succeeded, the error wraps
// ErrHeaderRewriteFailedAfterBodyWritten so the caller can restore
// from a backup it holds; this package does not manage backups itself.
func (p *Patcher) PatchFiles(headerPath, bodyPath string, exportStar Export, oldBulkDataStartOffset uint64, materialImportCount int) (Result, error) {
	body, err := os.ReadFile(bodyPath)
	if err != nil {
		return Result{}, &WriteError{Path: bodyPath, Cause: err}
	}

	loc, err := p.LocateMaterialArray(body)
	if err != nil {
		return Result{}, err
	}
	p.CheckPlausibility(loc, materialImportCount)

	delta := uint64(loc.Count) * materialRecordPadding

	header, err := os.ReadFile(headerPath)
	if err != nil {
		return Result{}, &WriteError{Path: headerPath, Cause: err}
	}

	hp, err := PrepareHeaderPatch(header, exportStar, oldBulkDataStartOffset, delta)
	if err != nil {
		return Result{}, err
	}

	spliced := SpliceBody(body, loc)
	if err := os.WriteFile(bodyPath, spliced, 0o644); err != nil {
		return Result{}, &WriteError{Path: bodyPath, Cause: err}
	}

	hp.Apply(header)
	if err := os.WriteFile(headerPath, header, 0o644); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrHeaderRewriteFailedAfterBodyWritten, err)
	}

	newBulk := oldBulkDataStartOffset
	if hp.hasBulkDataOffset {
		newBulk = hp.newBulkDataStartOffset
	}
	return Result{MaterialCount: int(loc.Count), BytesAdded: int64(delta), NewBulkDataStartOffset: newBulk}, nil
}
