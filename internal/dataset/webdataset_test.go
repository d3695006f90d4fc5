package dataset

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestReadShardPairsEntries(t *testing.T) {
	shard := writeShard(t, t.TempDir(), "shard-000000.tar", []shardEntry{
		{key: "000001", ext: ".jpg", image: []byte("jpeg"), label: 3},
		{key: "000002", ext: ".png", image: []byte("png"), label: 7},
	})

	var samples []Sample
	err := ReadShard(context.Background(), shard, 4, func(s Sample) error {
		samples = append(samples, s)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadShard returned error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(samples))
	}
	if samples[0].Key != "000001" || samples[0].Label != 3 || string(samples[0].Image) != "jpeg" {
		t.Fatalf("unexpected first sample %+v", samples[0])
	}
}

func TestReadShardPendingOverflow(t *testing.T) {
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for i := 0; i < 3; i++ {
		addTarEntry(tw, "img"+strconv.Itoa(i)+".png", []byte("x"))
	}
	tw.Close()
	path := filepath.Join(t.TempDir(), "shard-000000.tar")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}

	err := ReadShard(context.Background(), path, 2, func(Sample) error { return nil })
	if !errors.Is(err, ErrPendingOverflow) {
		t.Fatalf("expected ErrPendingOverflow, got %v", err)
	}
}

func TestReadShardStopsOnCancel(t *testing.T) {
	shard := writeShard(t, t.TempDir(), "shard-000000.tar", []shardEntry{
		{key: "a", ext: ".jpg", image: []byte("a"), label: 0},
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ReadShard(ctx, shard, 0, func(Sample) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type shardEntry struct {
	key   string
	ext   string
	image []byte
	label int
}

func writeShard(t *testing.T, dir, name string, entries []shardEntry) string {
	t.Helper()
	buf := &bytes.Buffer{}
	tw := tar.NewWriter(buf)
	for _, e := range entries {
		addTarEntry(tw, e.key+e.ext, e.image)
		addTarEntry(tw, e.key+".cls", []byte(strconv.Itoa(e.label)))
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write shard: %v", err)
	}
	return path
}

func addTarEntry(tw *tar.Writer, name string, data []byte) {
	hdr := &tar.Header{Name: name, Size: int64(len(data)), Mode: 0o644}
	if err := tw.WriteHeader(hdr); err != nil {
		panic(err)
	}
	if _, err := tw.Write(data); err != nil {
		panic(err)
	}
}
