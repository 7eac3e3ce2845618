package diff

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageRatio returns the percentage of pixels whose channels differ by more
// than tolerance on any of R, G, B or A, compared on 8 bits. Images of
// different size are entirely different.
func ImageRatio(left, right []byte, tolerance uint8) (float64, error) {
	a, _, err := image.Decode(bytes.NewReader(left))
	if err != nil {
		return 0, fmt.Errorf("decoding left image: %w", err)
	}
	b, _, err := image.Decode(bytes.NewReader(right))
	if err != nil {
		return 0, fmt.Errorf("decoding right image: %w", err)
	}

	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return 100, nil
	}
	total := ab.Dx() * ab.Dy()
	if total == 0 {
		return 0, nil
	}

	differing := 0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			if pixelDiffers(a.At(ab.Min.X+x, ab.Min.Y+y), b.At(bb.Min.X+x, bb.Min.Y+y), tolerance) {
				differing++
			}
		}
	}
	return round2(float64(differing) * 100 / float64(total)), nil
}

func pixelDiffers(a, b color.Color, tolerance uint8) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return channelDiffers(ar, br, tolerance) ||
		channelDiffers(ag, bg, tolerance) ||
		channelDiffers(ab, bb, tolerance) ||
		channelDiffers(aa, ba, tolerance)
}

func channelDiffers(a, b uint32, tolerance uint8) bool {
	a8, b8 := int(a>>8), int(b>>8)
	d := a8 - b8
	if d < 0 {
		d = -d
	}
	return d > int(tolerance)
}
