// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mapping provides Cache, the process-wide, lazily initialized
// cache of a parsed .usmap type-mapping resource. The .usmap parser
// itself is an external collaborator; Cache treats the resource as an
// opaque, memory-mapped byte range identified by (path, modification
// time) and shares it read-only across workers via mmap-go, the same
// zero-copy sharing a memory-mapped PE file gets from its own handle.
package mapping

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/pakforge/iorepair/internal/applog"
)

// ErrMappingLoadFailed is returned (wrapped with the path and cause)
// when a .usmap file cannot be opened or memory-mapped.
var ErrMappingLoadFailed = errors.New("mapping: load failed")

// LoadError wraps ErrMappingLoadFailed with the path and cause.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("mapping: load %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error { return e.Cause }

func (e *LoadError) Is(target error) bool { return target == ErrMappingLoadFailed }

// Resource is an opaque, read-only handle onto a parsed .usmap file.
// Its identity is (Path, ModTime); content accessors beyond that are
// intentionally absent here since schema lookups are an external
// collaborator — components that actually need to query named schemas
// take a Resource and pass it through to that collaborator unexamined.
type Resource struct {
	Path    string
	ModTime time.Time
	data    mmap.MMap
	f       *os.File
}

// Bytes exposes the memory-mapped file content. Callers must not
// retain slices of it past the Resource's lifetime in the cache.
func (r *Resource) Bytes() []byte {
	return r.data
}

func (r *Resource) close() error {
	if r.data != nil {
		if err := r.data.Unmap(); err != nil {
			return err
		}
	}
	if r.f != nil {
		return r.f.Close()
	}
	return nil
}

// Cache is a single-slot, thread-safe cache of the current Resource
// for a given path. A single mutex serializes the identity check and,
// on miss, the parse, so concurrent workers arriving mid-load observe
// the same result instead of racing to load the file twice.
type Cache struct {
	mu       sync.Mutex
	resource *Resource
	log      *applog.Logger
}

// NewCache returns an empty Cache. If log is nil, a no-op logger is
// used.
func NewCache(log *applog.Logger) *Cache {
	if log == nil {
		log = applog.Nop()
	}
	return &Cache{log: log}
}

// Get returns the current Resource for path, loading it on first use
// and reloading it whenever the file's modification time differs from
// what is cached. A parse failure does not poison the cache: a
// later call retries from scratch.
func (c *Cache) Get(path string) (*Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	modTime := info.ModTime()

	if c.resource != nil && c.resource.Path == path && c.resource.ModTime.Equal(modTime) {
		return c.resource, nil
	}

	c.log.Debugf("mapping: (re)loading %s (mtime=%s)", path, modTime)

	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Cause: err}
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, &LoadError{Path: path, Cause: err}
	}

	if c.resource != nil {
		if closeErr := c.resource.close(); closeErr != nil {
			c.log.Warnf("mapping: closing stale resource for %s: %v", c.resource.Path, closeErr)
		}
	}

	c.resource = &Resource{Path: path, ModTime: modTime, data: data, f: f}
	return c.resource, nil
}
