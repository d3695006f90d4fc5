// Package grid lays out source images next to their translations for
// visual inspection and writes the result as PNG.
package grid

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"gorgonia.org/tensor"
)

// Compose places each source image beside its translation on a square
// grid of row x row pairs, row = floor(sqrt(batch)). The canvas is
// [3, row*h, row*w*2]; samples beyond row*row are dropped.
func Compose(sources, targets *tensor.Dense) (*tensor.Dense, error) {
	src, shape, err := unpack(sources)
	if err != nil {
		return nil, fmt.Errorf("grid: sources: %w", err)
	}
	tgt, tshape, err := unpack(targets)
	if err != nil {
		return nil, fmt.Errorf("grid: targets: %w", err)
	}
	for i := range shape {
		if shape[i] != tshape[i] {
			return nil, fmt.Errorf("grid: sources %v and targets %v differ in shape", shape, tshape)
		}
	}
	batch, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if c != 3 {
		return nil, fmt.Errorf("grid: want 3 channels, got %d", c)
	}
	if h != w {
		return nil, fmt.Errorf("grid: want square images, got %dx%d", h, w)
	}

	row := int(math.Sqrt(float64(batch)))
	canvasH, canvasW := row*h, row*w*2
	canvas := make([]float32, c*canvasH*canvasW)
	imgSize := c * h * w
	for idx := 0; idx < row*row; idx++ {
		i, j := idx/row, idx%row
		place(canvas, canvasH, canvasW, src[idx*imgSize:(idx+1)*imgSize], c, h, w, i*h, 2*j*h)
		place(canvas, canvasH, canvasW, tgt[idx*imgSize:(idx+1)*imgSize], c, h, w, i*h, (2*j+1)*h)
	}

	return tensor.New(tensor.WithShape(c, canvasH, canvasW), tensor.WithBacking(canvas)), nil
}

func place(canvas []float32, canvasH, canvasW int, img []float32, c, h, w, top, left int) {
	for ch := 0; ch < c; ch++ {
		for y := 0; y < h; y++ {
			dst := (ch*canvasH+top+y)*canvasW + left
			srcOff := (ch*h + y) * w
			copy(canvas[dst:dst+w], img[srcOff:srcOff+w])
		}
	}
}

func unpack(t *tensor.Dense) ([]float32, []int, error) {
	if t == nil {
		return nil, nil, fmt.Errorf("nil array")
	}
	shape := t.Shape()
	if len(shape) != 4 {
		return nil, nil, fmt.Errorf("want [batch, channels, height, width], got %v", shape)
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, nil, fmt.Errorf("unsupported dtype %v", t.Dtype())
	}
	return data, []int(shape), nil
}

// ToImage converts a [3, H, W] canvas with values in [-1, 1] to an RGBA
// image. This is the only place the channel-first layout is transposed.
func ToImage(canvas *tensor.Dense) (*image.RGBA, error) {
	shape := canvas.Shape()
	if len(shape) != 3 || shape[0] != 3 {
		return nil, fmt.Errorf("grid: want [3, height, width] canvas, got %v", shape)
	}
	data, ok := canvas.Data().([]float32)
	if !ok {
		return nil, fmt.Errorf("grid: unsupported dtype %v", canvas.Dtype())
	}
	h, w := shape[1], shape[2]
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(data[(0*h+y)*w+x]),
				G: toByte(data[(1*h+y)*w+x]),
				B: toByte(data[(2*h+y)*w+x]),
				A: 255,
			})
		}
	}
	return img, nil
}

func toByte(v float32) uint8 {
	scaled := (float64(v) + 1) / 2 * 255
	if scaled <= 0 {
		return 0
	}
	if scaled >= 255 {
		return 255
	}
	return uint8(math.Round(scaled))
}

// WritePNG encodes canvas as a PNG file at path.
func WritePNG(path string, canvas *tensor.Dense) error {
	img, err := ToImage(canvas)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("grid: create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("grid: encode %s: %w", path, err)
	}
	return f.Close()
}
