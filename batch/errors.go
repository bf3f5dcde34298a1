// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package batch

import "errors"

// ErrMappingLoadFailed is fatal for the whole batch: no candidate can
// proceed without the type-mapping resource.
var ErrMappingLoadFailed = errors.New("batch: mapping load failed, aborting batch")
