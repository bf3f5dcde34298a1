// Copyright 2026 The IORepair Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command iorepair is the CLI surface over the asset, mapping,
// classify, reconcile, patch, and batch packages: detect, fix, and
// repair cooked SkeletalMesh assets from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pakforge/iorepair/asset"
	"github.com/pakforge/iorepair/batch"
	"github.com/pakforge/iorepair/classify"
	"github.com/pakforge/iorepair/internal/applog"
	"github.com/pakforge/iorepair/internal/config"
	"github.com/pakforge/iorepair/mapping"
	"github.com/pakforge/iorepair/patch"
	"github.com/pakforge/iorepair/reconcile"
)

// version is set at release time; "dev" covers local builds.
var version = "dev"

var mappingCache = mapping.NewCache(nil)

// loadMapping returns the opaque mapping resource at path, or nil if
// path is empty. A load failure is fatal to the invoking command.
func loadMapping(path string) interface{} {
	if path == "" {
		return nil
	}
	res, err := mappingCache.Get(path)
	if err != nil {
		fail("loading mapping %s: %v", path, err)
	}
	return res
}

func printJSON(v interface{}) {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "iorepair: encoding result:", err)
		os.Exit(1)
	}
	fmt.Println(string(buf))
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "iorepair: "+format+"\n", args...)
	os.Exit(1)
}

func usmapArg(args []string, index int) interface{} {
	if index >= len(args) {
		return nil
	}
	return loadMapping(args[index])
}

type detectResult struct {
	Path        string `json:"path"`
	AssetType   string `json:"asset_type"`
	ExportCount int    `json:"export_count"`
	ImportCount int    `json:"import_count"`
}

func runDetect(cmd *cobra.Command, args []string) {
	path := args[0]
	reader := asset.NewLegacyReader()
	defer reader.Close()

	view, err := reader.Open(path, asset.OpenOptions{
		RequestedEngineVersion: asset.UE5_3,
		Mapping:                usmapArg(args, 1),
	})
	if err != nil {
		fail("detect %s: %v", path, err)
	}

	printJSON(detectResult{
		Path:        path,
		AssetType:   string(classify.Classify(view)),
		ExportCount: view.ExportCount(),
		ImportCount: len(view.Imports),
	})
}

func runFix(cmd *cobra.Command, args []string) {
	path := args[0]
	reader := asset.NewLegacyReader()
	defer reader.Close()

	view, err := reader.Open(path, asset.OpenOptions{
		RequestedEngineVersion: asset.UE5_3,
		Mapping:                usmapArg(args, 1),
	})
	if err != nil {
		fail("fix %s: %v", path, err)
	}

	exports := make([]reconcile.ExportView, len(view.Exports))
	for i, e := range view.Exports {
		exports[i] = reconcile.ExportView{ObjectName: e.ObjectName, SerialOffset: e.SerialOffset, SerialSize: e.SerialSize}
	}

	result, err := reconcile.ReconcileFile(exports, asset.BodyPath(path))
	if err != nil {
		fail("fix %s: %v", path, err)
	}
	printJSON(result)
}

type classGroup struct {
	Kind  string   `json:"kind"`
	Paths []string `json:"paths"`
}

func runBatchDetect(cmd *cobra.Command, args []string) {
	dir := args[0]
	groups := map[classify.Kind][]string{}

	err := walkAssets(dir, func(headerPath string) {
		reader := asset.NewLegacyReader()
		defer reader.Close()

		view, err := reader.Open(headerPath, asset.OpenOptions{
			RequestedEngineVersion: asset.UE5_3,
			Mapping:                usmapArg(args, 1),
			SkipExportBodyParse:    true,
		})
		if err != nil {
			return
		}
		kind := classify.Classify(view)
		groups[kind] = append(groups[kind], headerPath)
	})
	if err != nil {
		fail("batch_detect %s: %v", dir, err)
	}

	out := make([]classGroup, 0, len(groups))
	for kind, paths := range groups {
		out = append(out, classGroup{Kind: string(kind), Paths: paths})
	}
	printJSON(out)
}

func runDump(cmd *cobra.Command, args []string) {
	path, usmapPath := args[0], args[1]
	reader := asset.NewLegacyReader()
	defer reader.Close()

	view, err := reader.Open(path, asset.OpenOptions{
		RequestedEngineVersion: asset.UE5_3,
		Mapping:                loadMapping(usmapPath),
	})
	if err != nil {
		fail("dump %s: %v", path, err)
	}
	printJSON(view)
}

func runFixSkel(cmd *cobra.Command, args []string) {
	path, usmapPath := args[0], args[1]
	cfg, err := config.Load()
	if err != nil {
		fail("loading configuration: %v", err)
	}
	log := applog.New(os.Stderr, cfg.Debug)
	reader := asset.NewLegacyReader()
	defer reader.Close()

	view, err := reader.Open(path, asset.OpenOptions{
		RequestedEngineVersion: asset.UE5_3,
		Mapping:                loadMapping(usmapPath),
	})
	if err != nil {
		fail("fix_skel %s: %v", path, err)
	}
	if classify.Classify(view) != classify.SkeletalMesh {
		fail("fix_skel %s: not classified as skeletal_mesh", path)
	}
	idx, ok := view.FindExportByClass("SkeletalMesh")
	if !ok {
		fail("fix_skel %s: %v", path, patch.ErrSkelMeshExportNotFound)
	}
	exp := view.Exports[idx]

	materialImportCount := view.CountImportsByClassName("Material", "MaterialInstanceConstant")
	p := patch.NewPatcher(log)
	result, err := p.PatchFiles(path, asset.BodyPath(path), patch.Export{
		ObjectName:   exp.ObjectName,
		SerialSize:   exp.SerialSize,
		SerialOffset: exp.SerialOffset,
	}, view.BulkDataStartOffset, materialImportCount)
	if err != nil {
		fail("fix_skel %s: %v", path, err)
	}
	printJSON(result)
}

func runBatchFixSkel(cmd *cobra.Command, args []string) {
	dir, usmapPath := args[0], args[1]
	cfg, err := config.Load()
	if err != nil {
		fail("loading configuration: %v", err)
	}

	threads := 0
	if len(args) > 2 {
		fmt.Sscanf(args[2], "%d", &threads)
	}

	log := applog.New(os.Stderr, cfg.Debug)
	driver := batch.NewDriver(batch.Options{
		MappingPath:    usmapPath,
		MaxParallelism: cfg.ResolvedParallelism(threads),
		ScanCap:        cfg.ScanCapBytes,
	}, func() asset.AssetReader { return asset.NewLegacyReader() }, log)

	summary, err := driver.Run(dir)
	if err != nil {
		fail("batch_fix_skel %s: %v", dir, err)
	}
	printJSON(summary)
	if summary.Failed() {
		os.Exit(1)
	}
}

// walkAssets calls fn for every .uasset file under root that has a
// sibling .uexp file.
func walkAssets(root string, fn func(headerPath string)) error {
	return walkDir(root, func(path string) {
		if !hasUassetExt(path) {
			return
		}
		if _, err := os.Stat(asset.BodyPath(path)); err != nil {
			return
		}
		fn(path)
	})
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "iorepair",
		Short: "Repair legacy-PAK cooked assets for IoStore",
		Long:  "iorepair detects, reconciles, and patches legacy-PAK .uasset/.uexp pairs so they load correctly under IoStore cooking.",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the iorepair version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("iorepair " + version)
		},
	}

	detectCmd := &cobra.Command{
		Use:   "detect <uasset_path> [usmap_path]",
		Short: "Classify a single asset and report its table sizes",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runDetect,
	}

	fixCmd := &cobra.Command{
		Use:   "fix <uasset_path> [usmap_path]",
		Short: "Reconcile export sizes against the body file",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runFix,
	}

	batchDetectCmd := &cobra.Command{
		Use:   "batch_detect <directory> [usmap_path]",
		Short: "Recursively classify every asset under a directory",
		Args:  cobra.RangeArgs(1, 2),
		Run:   runBatchDetect,
	}

	dumpCmd := &cobra.Command{
		Use:   "dump <uasset_path> <usmap_path>",
		Short: "Print the full parsed asset view",
		Args:  cobra.ExactArgs(2),
		Run:   runDump,
	}

	fixSkelCmd := &cobra.Command{
		Use:   "fix_skel <uasset_path> <usmap_path>",
		Short: "Widen material records in a single SkeletalMesh asset",
		Args:  cobra.ExactArgs(2),
		Run:   runFixSkel,
	}

	batchFixSkelCmd := &cobra.Command{
		Use:   "batch_fix_skel <directory> <usmap_path> [thread_count]",
		Short: "Widen material records across every SkeletalMesh asset under a directory",
		Args:  cobra.RangeArgs(2, 3),
		Run:   runBatchFixSkel,
	}

	rootCmd.AddCommand(versionCmd, detectCmd, fixCmd, batchDetectCmd, dumpCmd, fixSkelCmd, batchFixSkelCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
