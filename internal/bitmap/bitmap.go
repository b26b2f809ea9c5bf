// This package defines an interface for a simple bitmap structure that has a
// width, height, and can get bits from the bitmap by (x,y) coordinate.
// It also defines a simple implementation PixelBitmap that stores each pixel
// in a byte in a 2D array format, which is used to test the PackedBitmap impl.
// Lastly it defines the PackedBitmap structure which is the format the
// printer consumes over the wire, and the transform which produces it from an
// arbitrary image.
package bitmap

import (
	"fmt"
)

type Bitmap interface {
	Width() int
	Height() int
	// GetBit returns 1 where the printer should burn a dot, 0 otherwise
	GetBit(x int, y int) byte
}

type PixelBitmap struct {
	pixels        [][]byte
	width, height int
}

// NewPixelBitmap wraps rows of 0/1 pixels. Every row must be the same length.
func NewPixelBitmap(pixels [][]byte) (*PixelBitmap, error) {
	height := len(pixels)
	width := 0
	if height > 0 {
		width = len(pixels[0])
	}
	for y, row := range pixels {
		if len(row) != width {
			return nil, fmt.Errorf("Row %d has %d pixels, expecting %d", y, len(row), width)
		}
	}
	return &PixelBitmap{pixels, width, height}, nil
}

func (b *PixelBitmap) Width() int {
	return b.width
}

func (b *PixelBitmap) Height() int {
	return b.height
}

func (b *PixelBitmap) GetBit(x int, y int) byte {
	return b.pixels[y][x]
}

func (b *PixelBitmap) String() string {
	return fmt.Sprintf("PixelBitmap(%d,%d)", b.width, b.height)
}
