//go:build ignore

package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/okkerse/fieldlink/internal/unitcfg"
)

// Statistics tracks decode results across a collection of blobs.
type Statistics struct {
	TotalBlobs      int
	DecodeSuccess   int
	VersionMismatch int
	Corrupt         int
	ReadErrors      int
	FormatVersions  map[byte]int
	NetworkCounts   map[int]int
	FailedBlobs     []FailedBlob
}

// FailedBlob stores information about a blob that did not decode.
type FailedBlob struct {
	File  string
	Size  int
	Error string
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: validate_blobs <directory-or-file>")
		fmt.Println("Example: validate_blobs collected-units/")
		fmt.Println("         validate_blobs /var/lib/fieldlink/flash/config/unit.bin")
		fmt.Println()
		fmt.Println("A directory is walked recursively; every regular file is")
		fmt.Println("treated as one configuration blob.")
		os.Exit(1)
	}

	path := os.Args[1]

	stats := Statistics{
		FormatVersions: make(map[byte]int),
		NetworkCounts:  make(map[int]int),
	}

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Error accessing path: %v\n", err)
		os.Exit(1)
	}

	var files []string
	if info.IsDir() {
		err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			fmt.Printf("Error walking directory: %v\n", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Printf("No files found under %s\n", path)
			os.Exit(1)
		}
	} else {
		files = []string{path}
	}

	fmt.Printf("=== Fieldlink Blob Validator ===\n")
	fmt.Printf("Blobs to check: %d\n\n", len(files))

	for _, file := range files {
		checkBlob(file, &stats)
	}

	printStatistics(&stats)
	if stats.TotalBlobs != stats.DecodeSuccess {
		os.Exit(1)
	}
}

func checkBlob(filename string, stats *Statistics) {
	stats.TotalBlobs++

	blob, err := os.ReadFile(filename)
	if err != nil {
		stats.ReadErrors++
		stats.FailedBlobs = append(stats.FailedBlobs, FailedBlob{
			File:  filename,
			Error: fmt.Sprintf("read error: %v", err),
		})
		return
	}

	if len(blob) > 0 {
		stats.FormatVersions[blob[0]]++
	}

	cfg, err := unitcfg.Decode(blob)
	if err != nil {
		switch {
		case errors.Is(err, unitcfg.ErrVersionMismatch):
			stats.VersionMismatch++
		case errors.Is(err, unitcfg.ErrCorrupt):
			stats.Corrupt++
		}
		stats.FailedBlobs = append(stats.FailedBlobs, FailedBlob{
			File:  filename,
			Size:  len(blob),
			Error: err.Error(),
		})
		return
	}

	stats.DecodeSuccess++
	stats.NetworkCounts[len(cfg.Connectivity.Networks)]++
}

func printStatistics(stats *Statistics) {
	fmt.Printf("\n========================================\n")
	fmt.Printf("VALIDATION RESULTS\n")
	fmt.Printf("========================================\n\n")

	pct := func(n int) float64 {
		return float64(n) / float64(stats.TotalBlobs) * 100
	}
	fmt.Printf("Blobs Checked:      %d\n", stats.TotalBlobs)
	fmt.Printf("Decode Success:     %d (%.2f%%)\n", stats.DecodeSuccess, pct(stats.DecodeSuccess))
	fmt.Printf("Version Mismatch:   %d (%.2f%%)\n", stats.VersionMismatch, pct(stats.VersionMismatch))
	fmt.Printf("Corrupt:            %d (%.2f%%)\n", stats.Corrupt, pct(stats.Corrupt))
	fmt.Printf("Read Errors:        %d (%.2f%%)\n", stats.ReadErrors, pct(stats.ReadErrors))

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("FORMAT VERSION DISTRIBUTION\n")
	fmt.Printf("----------------------------------------\n")
	for version, count := range stats.FormatVersions {
		marker := ""
		if version == unitcfg.FormatVersion {
			marker = " (current)"
		}
		fmt.Printf("Version %d%s: %d blobs\n", version, marker, count)
	}

	fmt.Printf("\n----------------------------------------\n")
	fmt.Printf("NETWORK COUNT DISTRIBUTION (decoded blobs)\n")
	fmt.Printf("----------------------------------------\n")
	for count, blobs := range stats.NetworkCounts {
		fmt.Printf("%d networks: %d blobs\n", count, blobs)
	}

	if len(stats.FailedBlobs) > 0 {
		fmt.Printf("\n----------------------------------------\n")
		fmt.Printf("FAILURES (%d total)\n", len(stats.FailedBlobs))
		fmt.Printf("----------------------------------------\n")

		maxShow := 10
		if len(stats.FailedBlobs) > maxShow {
			fmt.Printf("(Showing first %d of %d failures)\n", maxShow, len(stats.FailedBlobs))
		}

		for i, failed := range stats.FailedBlobs {
			if i >= maxShow {
				break
			}
			fmt.Printf("\nFailure #%d:\n", i+1)
			fmt.Printf("  File: %s (%d bytes)\n", failed.File, failed.Size)
			fmt.Printf("  Error: %s\n", failed.Error)
		}
	}

	fmt.Printf("\n========================================\n")
	if stats.TotalBlobs == stats.DecodeSuccess {
		fmt.Printf("✅ SUCCESS: All blobs decoded cleanly!\n")
	} else {
		fmt.Printf("⚠️  ISSUES FOUND: %d blobs failed to decode\n", stats.TotalBlobs-stats.DecodeSuccess)
	}
	fmt.Printf("========================================\n")
}
