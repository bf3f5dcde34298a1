// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package classify decides which of a small set of recognized asset
// kinds an opened asset is, by walking its exports in declaration
// order and resolving each one's class import.
package classify

import "strings"

// Kind is one of the five asset classes this core distinguishes.
type Kind string

// The enumerated kinds this package distinguishes. Coverage is total:
// Classify never returns any value outside this set.
const (
	StaticMesh       Kind = "static_mesh"
	SkeletalMesh     Kind = "skeletal_mesh"
	MaterialInstance Kind = "material_instance"
	Texture          Kind = "texture"
	Other            Kind = "other"
)

// classNameKinds maps a case-folded import class name to the Kind it
// identifies. MaterialInstanceConstant and MaterialInstance both
// signal material_instance.
var classNameKinds = map[string]Kind{
	"staticmesh":               StaticMesh,
	"skeletalmesh":             SkeletalMesh,
	"materialinstanceconstant": MaterialInstance,
	"materialinstance":         MaterialInstance,
	"texture2d":                Texture,
}

// View is the minimal slice of asset.AssetView Classify needs,
// expressed structurally so this package does not have to import
// asset and can be exercised with lightweight fixtures in tests.
type View interface {
	ExportCount() int
	ClassNameOf(i int) (className string, ok bool)
}

// Classify returns the first recognized class kind found among v's
// exports in declaration order, or Other if none match. It never
// fails: an export whose class import cannot be resolved is skipped
// rather than treated as an error.
func Classify(v View) Kind {
	for i := 0; i < v.ExportCount(); i++ {
		className, ok := v.ClassNameOf(i)
		if !ok {
			continue
		}
		if kind, ok := classNameKinds[strings.ToLower(className)]; ok {
			return kind
		}
	}
	return Other
}
