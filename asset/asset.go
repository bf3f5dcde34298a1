// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asset declares the contract the rest of iorepair uses to
// read a paired .uasset/.uexp cooked asset: an opaque, mutable view
// over its import table, export table, and bulk-data start offset.
// Full property-tree parsing and .usmap schema resolution are external
// collaborators; this package only models the flat tables every other
// component needs.
package asset

import "strings"

// EngineVersion identifies the Unreal Engine serialization version an
// AssetReader is asked to interpret a header under.
type EngineVersion int

// UE5_3 is the only engine version this core targets.
const UE5_3 EngineVersion = 53

// ImportRef is a negative-indexed reference into an AssetView's Imports
// slice, matching Unreal's FPackageIndex convention: a class_ref value
// of -1 refers to Imports[0], -2 to Imports[1], and so on. A zero or
// positive value resolves to nothing (it references another export,
// not an import) and Resolve reports that with ok=false.
type ImportRef int32

// Resolve looks up the Import this reference points to within imports.
// ok is false when the reference does not address the import table.
func (r ImportRef) Resolve(imports []Import) (imp Import, ok bool) {
	if r >= 0 {
		return Import{}, false
	}
	idx := int(-r) - 1
	if idx < 0 || idx >= len(imports) {
		return Import{}, false
	}
	return imports[idx], true
}

// Import is an external reference, typically to a class or a package.
type Import struct {
	ObjectName   string
	ClassName    string
	ClassPackage string
}

// Export describes one serialized object inside the body file.
type Export struct {
	ObjectName   string
	ClassRef     ImportRef
	SerialOffset uint64
	SerialSize   uint64
}

// AssetView is the mutable, in-memory projection of an opened asset
// that every other component operates on. SerialSize of an export and
// BulkDataStartOffset are the only fields any component is allowed to
// mutate; everything else is read-only for the lifetime of the view.
type AssetView struct {
	EngineVersion       EngineVersion
	Imports             []Import
	Exports             []Export
	BulkDataStartOffset uint64
}

// ExportCount returns the number of exports in v.
func (v *AssetView) ExportCount() int {
	return len(v.Exports)
}

// ClassNameOf resolves export i's class name through its ClassRef, or
// returns ok=false if the reference cannot be resolved.
func (v *AssetView) ClassNameOf(i int) (className string, ok bool) {
	if i < 0 || i >= len(v.Exports) {
		return "", false
	}
	imp, ok := v.Exports[i].ClassRef.Resolve(v.Imports)
	if !ok {
		return "", false
	}
	return imp.ObjectName, true
}

// FindExportByClass returns the index of the single export whose class
// resolves to className (case-insensitive). ok is false when there is
// not exactly one such export.
func (v *AssetView) FindExportByClass(className string) (index int, ok bool) {
	found := -1
	for i := range v.Exports {
		name, resolved := v.ClassNameOf(i)
		if !resolved || !strings.EqualFold(name, className) {
			continue
		}
		if found != -1 {
			return 0, false
		}
		found = i
	}
	if found == -1 {
		return 0, false
	}
	return found, true
}

// CountImportsByClassName returns the number of import table entries
// whose ClassName case-insensitively matches one of names. The
// SkeletalMesh patcher's plausibility check uses this to compare the
// pattern-derived material count against the import table.
func (v *AssetView) CountImportsByClassName(names ...string) int {
	count := 0
	for _, imp := range v.Imports {
		for _, name := range names {
			if strings.EqualFold(imp.ClassName, name) {
				count++
				break
			}
		}
	}
	return count
}

// OpenOptions controls how an AssetReader parses a header.
// SkipExportBodyParse and SkipPreloadDependencies select the fast-open
// path a batch scan should request, since full parsing is both slow
// and not safe to run concurrently against a shared reader.
type OpenOptions struct {
	// RequestedEngineVersion is the engine version the caller expects;
	// a reader MAY reject a mismatch via AssetOpenFailed.
	RequestedEngineVersion EngineVersion

	// Mapping is an optional opaque type-mapping resource (a .usmap),
	// required to read unversioned property tags. Nil is valid when the
	// reader only needs the header's flat tables, which are versioned.
	Mapping interface{}

	// SkipExportBodyParse instructs the reader to stop after the
	// header's flat tables are read and not touch the .uexp body.
	SkipExportBodyParse bool

	// SkipPreloadDependencies instructs the reader to skip resolving
	// any preload-dependency graph it would otherwise build.
	SkipPreloadDependencies bool
}

// AssetReader opens a .uasset/.uexp pair and exposes its tables as an
// AssetView, plus WriteHeader, a header-only write-back path.
// Implementations are expected to be safe for exactly one open/close
// cycle per call; nothing in iorepair shares an AssetReader across
// goroutines.
type AssetReader interface {
	// Open parses headerPath (and, unless opts.SkipExportBodyParse is
	// set, the sibling body) and returns the resulting view.
	Open(headerPath string, opts OpenOptions) (*AssetView, error)

	// WriteHeader serializes view's mutable fields back into the header
	// file at headerPath, leaving the body file untouched. This is a
	// full header re-emit; iorepair's own patcher instead splices the
	// header in place (see patch.Patcher) and does not call this
	// method, but external callers that only have an AssetReader handle
	// (no access to the in-place binary locator) rely on it.
	WriteHeader(headerPath string, view *AssetView) error

	// Close releases any resources Open acquired.
	Close() error
}
