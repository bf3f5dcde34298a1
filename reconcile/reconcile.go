// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package reconcile compares each export's declared serial size
// against the size implied by adjacent export offsets and the body
// file's length, and reports the corrections an IoStore-facing
// consumer needs.
package reconcile

import (
	"os"
	"sort"
)

// bulkDataTrailerSize is the 24-byte trailer IoStore-bundled exports
// carry that legacy layout does not; reconciled sizes add it back.
const bulkDataTrailerSize = 24

// ExportView is the minimal per-export data Reconcile needs.
type ExportView struct {
	ObjectName   string
	SerialOffset uint64
	SerialSize   uint64
}

// SizeFix is one detected mismatch between a declared and actual
// export size.
type SizeFix struct {
	ExportName string
	OldSize    uint64
	NewSize    uint64
	Difference int64
}

// Result is the outcome of a reconciliation pass.
type Result struct {
	Fixes   []SizeFix
	Message string
}

// Reconcile computes, for each export, the body-derived "true" size
// and emits a SizeFix wherever it disagrees with the declared
// SerialSize. exports need not already be sorted by offset; Reconcile
// sorts a copy internally.
func Reconcile(exports []ExportView, bodyLength uint64) Result {
	if len(exports) == 0 {
		return Result{Message: "No fixes needed"}
	}

	header := exports[0].SerialOffset
	for _, e := range exports {
		if e.SerialOffset < header {
			header = e.SerialOffset
		}
	}

	sorted := make([]ExportView, len(exports))
	copy(sorted, exports)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SerialOffset < sorted[j].SerialOffset
	})

	var fixes []SizeFix
	for i, e := range sorted {
		start := e.SerialOffset - header
		var end uint64
		if i < len(sorted)-1 {
			end = sorted[i+1].SerialOffset - header
		} else {
			end = bodyLength
		}
		actual := end - start
		if actual != e.SerialSize {
			newSize := actual + bulkDataTrailerSize
			fixes = append(fixes, SizeFix{
				ExportName: e.ObjectName,
				OldSize:    e.SerialSize,
				NewSize:    newSize,
				Difference: int64(newSize) - int64(e.SerialSize),
			})
		}
	}

	if len(fixes) == 0 {
		return Result{Message: "No fixes needed"}
	}
	return Result{Fixes: fixes, Message: "fixes computed"}
}

// ReconcileFile stats bodyPath and calls Reconcile with its length. A
// missing body file is non-fatal: it yields an empty Result with an
// informational message rather than an error.
func ReconcileFile(exports []ExportView, bodyPath string) (Result, error) {
	info, err := os.Stat(bodyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Message: "no body file; nothing reconciled"}, nil
		}
		return Result{}, err
	}
	return Reconcile(exports, uint64(info.Size())), nil
}
