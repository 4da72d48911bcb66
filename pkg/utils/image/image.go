// Package image converts the simulator's raw BGRA frames into standard
// encodings. The alpha byte the simulator emits is padding and gets
// forced opaque.
package image

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
)

func bgraToRGBA(in, out []byte) {
	for i := 0; i+3 < len(in) && i+3 < len(out); i += 4 {
		out[i] = in[i+2]
		out[i+1] = in[i+1]
		out[i+2] = in[i]
		out[i+3] = 0xff
	}
}

// DecodeBGRA wraps a tightly packed BGRA buffer as an image.Image.
func DecodeBGRA(data []byte, width, height int) image.Image {
	i := image.NewRGBA(image.Rect(0, 0, width, height))
	bgraToRGBA(data, i.Pix)

	return i
}

func EncodePNG(img image.Image, dst io.Writer) error {
	return png.Encode(dst, img)
}

func EncodeJPEG(img image.Image, dst io.Writer, quality int) error {
	return jpeg.Encode(dst, img, &jpeg.Options{Quality: quality})
}
