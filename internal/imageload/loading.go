// Package imageload decodes images handed to the printer, from files or
// request bodies. Failures are reported as input errors.
package imageload

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"tomgalvin.uk/rasterprint/internal/printerror"
)

// A Limit inspects an image's dimensions before its pixels are decoded,
// returning an error to reject it.
type Limit func(width, height int) error

// MaxPixels rejects images with more than n pixels as a conversion error.
func MaxPixels(n int) Limit {
	return func(width, height int) error {
		if width*height > n {
			return printerror.Conversionf("image is %dx%d, more than %d pixels", width, height, n)
		}
		return nil
	}
}

// Decode reads an image in any registered format, returning the format name.
// The header is decoded first and checked against limits, so an oversized
// image is rejected without allocating its pixels.
func Decode(r io.Reader, limits ...Limit) (image.Image, string, error) {
	var header bytes.Buffer
	config, format, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, "", printerror.NewInput("couldn't decode image", err)
	}
	for _, limit := range limits {
		if err := limit(config.Width, config.Height); err != nil {
			return nil, "", err
		}
	}

	img, _, err := image.Decode(io.MultiReader(&header, r))
	if err != nil {
		return nil, "", printerror.NewInput("couldn't decode image", err)
	}
	return img, format, nil
}

func LoadFile(path string, limits ...Limit) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, printerror.NewInput("couldn't open image", err)
	}
	defer f.Close()

	img, _, err := Decode(f, limits...)
	return img, err
}
