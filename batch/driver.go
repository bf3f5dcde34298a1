// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package batch walks a directory tree, cheaply pre-filters
// SkeletalMesh candidates by path, and invokes the classifier and
// patcher under a bounded worker pool of goroutines fed by a single
// jobs channel and drained with a sync.WaitGroup.
package batch

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/pakforge/iorepair/asset"
	"github.com/pakforge/iorepair/classify"
	"github.com/pakforge/iorepair/internal/applog"
	"github.com/pakforge/iorepair/mapping"
	"github.com/pakforge/iorepair/patch"
)

// Options configures a Driver run.
type Options struct {
	// MappingPath is the .usmap resource to load once and share
	// read-only across workers. Empty means no mapping resource is
	// used.
	MappingPath string

	// MaxParallelism bounds the worker pool. Zero means
	// runtime.NumCPU().
	MaxParallelism int

	// ScanCap bounds the patcher's signature scan per file. Zero means
	// the patcher's own default.
	ScanCap int
}

// PatchedFile is one successfully patched asset.
type PatchedFile struct {
	Path          string
	MaterialCount int
	BytesAdded    int64
}

// Summary is BatchDriver's aggregated outcome.
type Summary struct {
	TotalFiles   int64
	Candidates   int64
	Processed    int64
	Patched      int64
	Skipped      int64
	Errors       int64
	ElapsedMs    int64
	PatchedFiles []PatchedFile
}

// Failed reports whether the run should be treated as a failure: the
// exit status is failure iff at least one candidate errored.
func (s Summary) Failed() bool {
	return s.Errors > 0
}

// ReaderFactory constructs a fresh asset.AssetReader per candidate,
// since each candidate is opened independently in fast mode and
// readers are not assumed safe to reuse or share across workers.
type ReaderFactory func() asset.AssetReader

// Driver runs the candidate prefilter, classification, and patching
// over a directory tree.
type Driver struct {
	Options
	NewReader ReaderFactory
	log       *applog.Logger
	cache     *mapping.Cache
}

// NewDriver returns a Driver. If log is nil, a no-op logger is used.
func NewDriver(opts Options, newReader ReaderFactory, log *applog.Logger) *Driver {
	if log == nil {
		log = applog.Nop()
	}
	return &Driver{
		Options:   opts,
		NewReader: newReader,
		log:       log,
		cache:     mapping.NewCache(log),
	}
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomePatched
	outcomeError
)

type candidateResult struct {
	outcome outcome
	patched PatchedFile
}

// Run walks root and patches every SkeletalMesh candidate it finds. A
// mapping load failure during setup (when MappingPath is set) aborts
// the whole batch before any candidate is processed.
func (d *Driver) Run(root string) (Summary, error) {
	start := time.Now()

	if d.MappingPath != "" {
		if _, err := d.cache.Get(d.MappingPath); err != nil {
			return Summary{}, ErrMappingLoadFailed
		}
	}

	var total int64
	var candidatePaths []string
	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		total++
		if isCandidate(path) {
			candidatePaths = append(candidatePaths, path)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	parallelism := d.MaxParallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	jobs := make(chan string)
	results := make(chan candidateResult)

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				results <- d.processCandidate(path)
			}
		}()
	}

	go func() {
		for _, p := range candidatePaths {
			jobs <- p
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var processed, patchedCount, skipped, errCount int64
	var patchedFiles []PatchedFile
	for r := range results {
		processed++
		switch r.outcome {
		case outcomePatched:
			patchedCount++
			patchedFiles = append(patchedFiles, r.patched)
		case outcomeError:
			errCount++
		default:
			skipped++
		}
	}

	return Summary{
		TotalFiles:   total,
		Candidates:   int64(len(candidatePaths)),
		Processed:    processed,
		Patched:      patchedCount,
		Skipped:      skipped,
		Errors:       errCount,
		ElapsedMs:    time.Since(start).Milliseconds(),
		PatchedFiles: patchedFiles,
	}, nil
}

// processCandidate checks for a sibling body file, opens the header in
// fast mode, classifies it, locates its SkeletalMesh export, and
// patches it.
func (d *Driver) processCandidate(headerPath string) candidateResult {
	bodyPath := asset.BodyPath(headerPath)
	if _, err := os.Stat(bodyPath); err != nil {
		return candidateResult{outcome: outcomeSkipped}
	}

	var mappingRes interface{}
	if d.MappingPath != "" {
		res, err := d.cache.Get(d.MappingPath)
		if err != nil {
			d.log.Errorf("batch: mapping %s: %v", d.MappingPath, err)
			return candidateResult{outcome: outcomeError}
		}
		mappingRes = res
	}

	reader := d.NewReader()
	defer reader.Close()

	view, err := reader.Open(headerPath, asset.OpenOptions{
		RequestedEngineVersion:  asset.UE5_3,
		Mapping:                 mappingRes,
		SkipExportBodyParse:     true,
		SkipPreloadDependencies: true,
	})
	if err != nil {
		d.log.Errorf("batch: open %s: %v", headerPath, err)
		return candidateResult{outcome: outcomeError}
	}

	if classify.Classify(view) != classify.SkeletalMesh {
		return candidateResult{outcome: outcomeSkipped}
	}

	idx, ok := view.FindExportByClass("SkeletalMesh")
	if !ok {
		return candidateResult{outcome: outcomeSkipped}
	}
	exp := view.Exports[idx]

	p := patch.NewPatcher(d.log)
	if d.ScanCap > 0 {
		p.ScanCap = d.ScanCap
	}

	materialImportCount := view.CountImportsByClassName("Material", "MaterialInstanceConstant")
	res, err := p.PatchFiles(headerPath, bodyPath, patch.Export{
		ObjectName:   exp.ObjectName,
		SerialSize:   exp.SerialSize,
		SerialOffset: exp.SerialOffset,
	}, view.BulkDataStartOffset, materialImportCount)
	if err != nil {
		d.log.Errorf("batch: patch %s: %v", headerPath, err)
		return candidateResult{outcome: outcomeError}
	}

	return candidateResult{
		outcome: outcomePatched,
		patched: PatchedFile{Path: headerPath, MaterialCount: res.MaterialCount, BytesAdded: res.BytesAdded},
	}
}

// isCandidate is the cheap, path-only prefilter: extension .uasset,
// and either the filename begins with sk_ (case-insensitive) or any
// path component equals "meshes" (case-insensitive).
func isCandidate(path string) bool {
	if !strings.EqualFold(filepath.Ext(path), ".uasset") {
		return false
	}
	base := filepath.Base(path)
	if len(base) >= 3 && strings.EqualFold(base[:3], "sk_") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if strings.EqualFold(part, "meshes") {
			return true
		}
	}
	return false
}
