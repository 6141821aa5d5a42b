package main

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"mediastore/internal/config"
)

// Removes temp upload artifacts older than the configured age, then
// prunes the directories they leave empty. Meant to run from cron.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	root := cfg.Cleanup.TempDir
	cutoff := time.Now().Add(-cfg.Cleanup.MaxAge)

	if _, err := os.Stat(root); os.IsNotExist(err) {
		log.Printf("cleanup: temp dir %s does not exist, nothing to do", root)
		return
	}

	removedFiles, err := removeStaleFiles(root, cutoff)
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}

	removedDirs, err := pruneEmptyDirs(root)
	if err != nil {
		log.Fatalf("cleanup failed: %v", err)
	}

	log.Printf("cleanup completed: files=%d dirs=%d max_age=%s", removedFiles, removedDirs, cfg.Cleanup.MaxAge)
}

func removeStaleFiles(root string, cutoff time.Time) (int, error) {
	removed := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			log.Printf("cleanup: failed to remove %s: %v", path, err)
			return nil
		}
		removed++
		return nil
	})
	return removed, err
}

// pruneEmptyDirs removes empty directories under root, deepest first, but
// never root itself.
func pruneEmptyDirs(root string) (int, error) {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })

	removed := 0
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err == nil {
			removed++
		}
	}
	return removed, nil
}
