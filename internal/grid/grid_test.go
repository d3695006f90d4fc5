package grid

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"gorgonia.org/tensor"
)

// batchOf fills every pixel of image i with value base+i.
func batchOf(n, h, w int, base float32) *tensor.Dense {
	data := make([]float32, n*3*h*w)
	for i := 0; i < n; i++ {
		for j := 0; j < 3*h*w; j++ {
			data[i*3*h*w+j] = base + float32(i)
		}
	}
	return tensor.New(tensor.WithShape(n, 3, h, w), tensor.WithBacking(data))
}

func TestComposeShape(t *testing.T) {
	cases := []struct {
		batch, row int
	}{
		{1, 1}, {4, 2}, {5, 2}, {16, 4}, {17, 4},
	}
	for _, tc := range cases {
		canvas, err := Compose(batchOf(tc.batch, 2, 2, 0), batchOf(tc.batch, 2, 2, 100))
		if err != nil {
			t.Fatalf("batch %d: Compose: %v", tc.batch, err)
		}
		shape := canvas.Shape()
		if shape[0] != 3 || shape[1] != tc.row*2 || shape[2] != tc.row*2*2 {
			t.Fatalf("batch %d: canvas shape %v, want [3 %d %d]", tc.batch, shape, tc.row*2, tc.row*4)
		}
	}
}

func TestComposePlacement(t *testing.T) {
	const h = 2
	canvas, err := Compose(batchOf(4, h, h, 0), batchOf(4, h, h, 100))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	data := canvas.Data().([]float32)
	width := canvas.Shape()[2]
	at := func(ch, y, x int) float32 { return data[(ch*2*h+y)*width+x] }

	for idx := 0; idx < 4; idx++ {
		i, j := idx/2, idx%2
		for ch := 0; ch < 3; ch++ {
			if got := at(ch, i*h, 2*j*h); got != float32(idx) {
				t.Fatalf("source %d at cell (%d,%d) = %f", idx, i, j, got)
			}
			if got := at(ch, i*h+1, (2*j+1)*h+1); got != float32(100+idx) {
				t.Fatalf("target %d at cell (%d,%d) = %f", idx, i, j, got)
			}
		}
	}
}

func TestComposeDropsOverflow(t *testing.T) {
	canvas, err := Compose(batchOf(5, 1, 1, 0), batchOf(5, 1, 1, 100))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for _, v := range canvas.Data().([]float32) {
		if v == 4 || v == 104 {
			t.Fatalf("sample 4 should not appear on a 2x2 grid")
		}
	}
}

func TestComposeIsPure(t *testing.T) {
	src, tgt := batchOf(9, 3, 3, 0.1), batchOf(9, 3, 3, -0.5)
	before := append([]float32(nil), src.Data().([]float32)...)
	a, err := Compose(src, tgt)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	b, _ := Compose(src, tgt)
	ad, bd := a.Data().([]float32), b.Data().([]float32)
	for i := range ad {
		if ad[i] != bd[i] {
			t.Fatalf("outputs differ at %d", i)
		}
	}
	for i, v := range src.Data().([]float32) {
		if v != before[i] {
			t.Fatalf("Compose mutated its input")
		}
	}
}

func TestComposeRejectsMismatch(t *testing.T) {
	if _, err := Compose(batchOf(4, 2, 2, 0), batchOf(2, 2, 2, 0)); err == nil {
		t.Fatal("expected error for unequal batches")
	}
	rect := tensor.New(tensor.WithShape(1, 3, 2, 4), tensor.WithBacking(make([]float32, 24)))
	if _, err := Compose(rect, rect); err == nil {
		t.Fatal("expected error for non-square images")
	}
}

func TestWritePNG(t *testing.T) {
	canvas, err := Compose(batchOf(4, 2, 2, -1), batchOf(4, 2, 2, 1))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	path := filepath.Join(t.TempDir(), "sample.png")
	if err := WritePNG(path, canvas); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 4 {
		t.Fatalf("image bounds %v, want 8x4", b)
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if r != 0 {
		t.Fatalf("pixel for -1 should be black, got %d", r)
	}
	r, _, _, _ = img.At(2, 0).RGBA()
	if r>>8 != 255 {
		t.Fatalf("pixel for translated image should be white, got %d", r>>8)
	}
}
