// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asset

import "errors"

// Sentinel errors an AssetReader returns. Callers compare with
// errors.Is; OpenError carries the path and underlying cause for
// display.
var (
	ErrFileNotFound    = errors.New("asset: file not found")
	ErrAssetOpenFailed = errors.New("asset: open failed")
)

// OpenError wraps ErrAssetOpenFailed (or ErrFileNotFound) with the path
// and cause that produced it.
type OpenError struct {
	Path  string
	Cause error
}

func (e *OpenError) Error() string {
	return "asset: open " + e.Path + ": " + e.Cause.Error()
}

func (e *OpenError) Unwrap() error {
	return e.Cause
}

// Is reports true for ErrAssetOpenFailed so errors.Is(err, ErrAssetOpenFailed)
// succeeds regardless of the wrapped cause.
func (e *OpenError) Is(target error) bool {
	return target == ErrAssetOpenFailed
}
