// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package patch

import "errors"

// Sentinel errors for Patcher.
var (
	ErrSkelMeshExportNotFound              = errors.New("patch: no SkeletalMesh export found")
	ErrMaterialPatternNotFound             = errors.New("patch: material array signature not found")
	ErrHeaderRewriteFailedAfterBodyWritten = errors.New("patch: header rewrite failed after body was written")
	ErrIOWriteFailed                       = errors.New("patch: write failed")
)

// WriteError wraps ErrIOWriteFailed with the path and cause.
type WriteError struct {
	Path  string
	Cause error
}

func (e *WriteError) Error() string {
	return "patch: write " + e.Path + ": " + e.Cause.Error()
}

func (e *WriteError) Unwrap() error { return e.Cause }

func (e *WriteError) Is(target error) bool { return target == ErrIOWriteFailed }
