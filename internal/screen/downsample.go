package screen

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
)

// Downsample scales img by factor with nearest-neighbour sampling and
// converts it to luma. Each output dimension is at least one pixel.
func Downsample(img image.Image, factor float64) *image.Gray {
	b := img.Bounds()
	w := max(int(float64(b.Dx())*factor), 1)
	h := max(int(float64(b.Dy())*factor), 1)

	small := resize.Resize(uint(w), uint(h), img, resize.NearestNeighbor)
	if g, ok := small.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}

	sb := small.Bounds()
	gray := image.NewGray(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	draw.Draw(gray, gray.Bounds(), small, sb.Min, draw.Src)
	return gray
}
