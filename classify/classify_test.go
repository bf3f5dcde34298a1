// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package classify

import "testing"

// fakeView is a minimal View fixture: classNames[i] is the class name
// reached from export i, or "" if unresolved.
type fakeView struct {
	classNames []string
}

func (f fakeView) ExportCount() int { return len(f.classNames) }

func (f fakeView) ClassNameOf(i int) (string, bool) {
	if i < 0 || i >= len(f.classNames) || f.classNames[i] == "" {
		return "", false
	}
	return f.classNames[i], true
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   fakeView
		want Kind
	}{
		{"static mesh first export", fakeView{[]string{"StaticMesh", "Other"}}, StaticMesh},
		{"skeletal mesh", fakeView{[]string{"SkeletalMesh"}}, SkeletalMesh},
		{"material instance constant", fakeView{[]string{"MaterialInstanceConstant"}}, MaterialInstance},
		{"material instance", fakeView{[]string{"MaterialInstance"}}, MaterialInstance},
		{"texture2d case insensitive", fakeView{[]string{"texture2D"}}, Texture},
		{"no match falls back to other", fakeView{[]string{"BlueprintGeneratedClass"}}, Other},
		{"unresolved import skipped", fakeView{[]string{"", "SkeletalMesh"}}, SkeletalMesh},
		{"empty export list", fakeView{nil}, Other},
		{"earliest export wins", fakeView{[]string{"Texture2D", "SkeletalMesh"}}, Texture},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	v := fakeView{[]string{"StaticMesh"}}
	first := Classify(v)
	for i := 0; i < 5; i++ {
		if got := Classify(v); got != first {
			t.Fatalf("classification not deterministic: got %v, want %v", got, first)
		}
	}
}

func TestClassifyCoverage(t *testing.T) {
	allowed := map[Kind]bool{
		StaticMesh: true, SkeletalMesh: true, MaterialInstance: true,
		Texture: true, Other: true,
	}
	cases := [][]string{
		{"StaticMesh"}, {"SkeletalMesh"}, {"MaterialInstance"},
		{"Texture2D"}, {"Unknown"}, nil,
	}
	for _, c := range cases {
		if got := Classify(fakeView{c}); !allowed[got] {
			t.Fatalf("Classify returned kind outside enumeration: %v", got)
		}
	}
}
