// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package reconcile

import (
	"os"
	"path/filepath"
	"testing"
)

const header = 1000

func TestReconcileNoOp(t *testing.T) {
	exports := []ExportView{
		{ObjectName: "A", SerialOffset: header, SerialSize: 100},
		{ObjectName: "B", SerialOffset: header + 100, SerialSize: 100},
	}
	got := Reconcile(exports, 200)
	if len(got.Fixes) != 0 {
		t.Fatalf("expected no fixes, got %v", got.Fixes)
	}
	if got.Message != "No fixes needed" {
		t.Fatalf("unexpected message: %q", got.Message)
	}
}

func TestReconcileWithFix(t *testing.T) {
	exports := []ExportView{
		{ObjectName: "A", SerialOffset: header, SerialSize: 100},
		{ObjectName: "B", SerialOffset: header + 100, SerialSize: 100},
	}
	got := Reconcile(exports, 210)
	if len(got.Fixes) != 1 {
		t.Fatalf("expected exactly one fix, got %v", got.Fixes)
	}
	fix := got.Fixes[0]
	if fix.ExportName != "B" || fix.OldSize != 100 || fix.NewSize != 134 || fix.Difference != 34 {
		t.Fatalf("unexpected fix: %+v", fix)
	}
}

func TestReconcileSoundness(t *testing.T) {
	exports := []ExportView{
		{ObjectName: "A", SerialOffset: header, SerialSize: 50},
		{ObjectName: "B", SerialOffset: header + 70, SerialSize: 999},
		{ObjectName: "C", SerialOffset: header + 150, SerialSize: 1},
	}
	const bodyLen = 400
	Reconcile(exports, bodyLen)

	// Sum of actual_i must equal bodyLen regardless of the declared
	// sizes, since actual_i is derived purely from header-relative
	// offsets and body length: the first export starts at 0 and the
	// last one ends at bodyLen.
	offsets := []uint64{header, header + 70, header + 150}
	var sum uint64
	for i := range offsets {
		var end uint64
		if i < len(offsets)-1 {
			end = offsets[i+1] - header
		} else {
			end = bodyLen
		}
		sum += end - (offsets[i] - header)
	}
	if sum != bodyLen {
		t.Fatalf("sum of actual sizes = %d, want %d", sum, bodyLen)
	}
}

func TestReconcileOutOfOrderInput(t *testing.T) {
	exports := []ExportView{
		{ObjectName: "B", SerialOffset: header + 100, SerialSize: 110},
		{ObjectName: "A", SerialOffset: header, SerialSize: 100},
	}
	got := Reconcile(exports, 210)
	if len(got.Fixes) != 0 {
		t.Fatalf("expected no fixes for correctly-sized out-of-order exports, got %v", got.Fixes)
	}
}

func TestReconcileFileMissingBody(t *testing.T) {
	dir := t.TempDir()
	res, err := ReconcileFile(nil, filepath.Join(dir, "absent.uexp"))
	if err != nil {
		t.Fatalf("expected nil error for missing body, got %v", err)
	}
	if len(res.Fixes) != 0 {
		t.Fatalf("expected empty fixes, got %v", res.Fixes)
	}
	if res.Message != "no body file; nothing reconciled" {
		t.Fatalf("unexpected message: %q", res.Message)
	}
}

func TestReconcileFilePresentBody(t *testing.T) {
	dir := t.TempDir()
	bodyPath := filepath.Join(dir, "present.uexp")
	if err := os.WriteFile(bodyPath, make([]byte, 210), 0o644); err != nil {
		t.Fatalf("write body: %v", err)
	}
	exports := []ExportView{
		{ObjectName: "A", SerialOffset: header, SerialSize: 100},
		{ObjectName: "B", SerialOffset: header + 100, SerialSize: 100},
	}
	res, err := ReconcileFile(exports, bodyPath)
	if err != nil {
		t.Fatalf("ReconcileFile: %v", err)
	}
	if len(res.Fixes) != 1 {
		t.Fatalf("expected one fix, got %v", res.Fixes)
	}
}
