package dataset

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Record is one labelled image whose encoded bytes are fetched on demand.
type Record struct {
	Key   string
	Label int
	Load  func() ([]byte, error)
}

// Catalog is the indexable set of records of one domain.
type Catalog struct {
	Records []Record
	Classes []string
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.Records)
}

// NumClasses returns the number of distinct class labels.
func (c *Catalog) NumClasses() int {
	return len(c.Classes)
}

// NewImageFolderCatalog indexes root, where every subdirectory is a class.
// Files are read lazily when a batch is decoded.
func NewImageFolderCatalog(root string) (*Catalog, error) {
	images, classes, err := DiscoverImageFolder(root)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("dataset: no images found in %s", root)
	}
	c := &Catalog{Classes: classes, Records: make([]Record, len(images))}
	for i, img := range images {
		path := img.Path
		c.Records[i] = Record{
			Key:   path,
			Label: img.Label,
			Load:  func() ([]byte, error) { return os.ReadFile(path) },
		}
	}
	return c, nil
}

// NewShardCatalog reads every WebDataset shard beneath root into memory.
// Class names are the decimal labels found in the .cls entries.
func NewShardCatalog(ctx context.Context, root string, pendingCap int) (*Catalog, error) {
	shards, err := DiscoverShards(root)
	if err != nil {
		return nil, err
	}
	if len(shards) == 0 {
		return nil, fmt.Errorf("dataset: no shards discovered under %s", root)
	}
	c := &Catalog{}
	maxLabel := -1
	for _, shard := range shards {
		err := ReadShard(ctx, shard, pendingCap, func(s Sample) error {
			if s.Label < 0 {
				return fmt.Errorf("dataset: negative label %d for %s", s.Label, s.Key)
			}
			image := s.Image
			c.Records = append(c.Records, Record{
				Key:   s.Key,
				Label: s.Label,
				Load:  func() ([]byte, error) { return image, nil },
			})
			if s.Label > maxLabel {
				maxLabel = s.Label
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("dataset: shard %s: %w", shard, err)
		}
	}
	if len(c.Records) == 0 {
		return nil, fmt.Errorf("dataset: shards under %s hold no samples", root)
	}
	for l := 0; l <= maxLabel; l++ {
		c.Classes = append(c.Classes, strconv.Itoa(l))
	}
	return c, nil
}
