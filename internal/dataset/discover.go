package dataset

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var shardRegexp = regexp.MustCompile(`^shard-[0-9]{6,}\.tar$`)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
}

// DiscoverShards returns absolute paths to shard TAR files beneath root.
func DiscoverShards(root string) ([]string, error) {
	entries := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if shardRegexp.MatchString(d.Name()) {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover shards: %w", err)
	}
	sort.Strings(entries)
	return entries, nil
}

// ClassImage is one image file found under a class directory.
type ClassImage struct {
	Path  string
	Label int
}

// DiscoverImageFolder scans root for one subdirectory per class. Classes
// are numbered in lexical order of their directory names; images are
// collected recursively in lexical order.
func DiscoverImageFolder(root string) ([]ClassImage, []string, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		return nil, nil, fmt.Errorf("discover classes: %w", err)
	}
	var (
		images  []ClassImage
		classes []string
	)
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		label := len(classes)
		classes = append(classes, d.Name())
		err := filepath.WalkDir(filepath.Join(root, d.Name()), func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				return nil
			}
			if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				images = append(images, ClassImage{Path: path, Label: label})
			}
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("discover images in %s: %w", d.Name(), err)
		}
	}
	return images, classes, nil
}
