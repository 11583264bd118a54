package simulcast

import (
	"image"

	"golang.org/x/image/draw"
)

func scaleImage(src image.Image, width, height int) image.Image {
	if src == nil {
		return nil
	}
	bounds := src.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	return dst
}
