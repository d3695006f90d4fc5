package dataset

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// decodeImage decodes raw, resizes it to size x size and returns CHW RGB
// values normalized with mean 0.5 and std 0.5, i.e. in [-1, 1].
func decodeImage(raw []byte, size int) ([]float32, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode image: empty image")
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dst.RGBAAt(x, y)
			i := y*size + x
			out[i] = normalize(c.R)
			out[plane+i] = normalize(c.G)
			out[2*plane+i] = normalize(c.B)
		}
	}
	return out, nil
}

func normalize(v uint8) float32 {
	return (float32(v)/255 - 0.5) / 0.5
}
