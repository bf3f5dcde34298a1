// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// walkDir calls fn for every regular file under root, in the order
// filepath.WalkDir visits them.
func walkDir(root string, fn func(path string)) error {
	return filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		fn(path)
		return nil
	})
}

func hasUassetExt(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".uasset")
}
