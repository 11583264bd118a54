package main

import (
	"image"
)

// newTestPattern draws a diagonal gradient shifted by the frame number.
func newTestPattern(width, height, frameNumber int) *image.YCbCr {
	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio420)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Y[img.YOffset(x, y)] = uint8(x + y + frameNumber*4)
		}
	}
	for y := 0; y < (height+1)/2; y++ {
		for x := 0; x < (width+1)/2; x++ {
			off := y*img.CStride + x
			img.Cb[off] = uint8(128 + x - frameNumber)
			img.Cr[off] = uint8(128 + y + frameNumber)
		}
	}
	return img
}
