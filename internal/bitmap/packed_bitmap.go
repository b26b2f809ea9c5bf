// This file implements methods to pack bitmap pixel data into the bit
// structure accepted by the GS v 0 raster command.

package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
)

// a bitmap packed in memory, 8 pixels per byte, most significant bit first
type PackedBitmap struct {
	data                  []byte
	width, height, stride int
}

const bitsPerWord = 8

func strideFor(width int) int {
	return (width + bitsPerWord - 1) / bitsPerWord
}

func (b *PackedBitmap) Width() int {
	return b.width
}

func (b *PackedBitmap) Height() int {
	return b.height
}

func (b *PackedBitmap) Stride() int {
	return b.stride
}

func (b *PackedBitmap) Data() []byte {
	return b.data
}

// Gets a single bit from the bitmap at the (x, y) coordinate, returns either 0 or 1
func (b *PackedBitmap) GetBit(x int, y int) byte {
	// Pixels are "left-aligned" within a byte, so any unused bits at the end
	// of a row sit in the least significant positions of its final byte.
	index := (y * b.stride) + (x / bitsPerWord)
	return (b.data[index] >> (bitsPerWord - 1 - x%bitsPerWord)) & 1
}

// Row returns the packed bytes of row y.
func (b *PackedBitmap) Row(y int) []byte {
	return b.data[y*b.stride : (y+1)*b.stride]
}

func (b *PackedBitmap) String() string {
	return fmt.Sprintf("PackedBitmap(%d,%d)", b.width, b.height)
}

// Takes a horizontal slice of the packed bitmap, with the specified height and
// the start Y co-ordinate of the slice from the source bitmap. The slice shares
// its data with b.
func (b *PackedBitmap) VerticalSlice(start int, height int) *PackedBitmap {
	return &PackedBitmap{
		data:   b.data[b.stride*start : b.stride*(start+height)],
		width:  b.width,
		height: height,
		stride: b.stride,
	}
}

// Image renders the bitmap back to black and white, for previews.
func (b *PackedBitmap) Image() *image.Paletted {
	img := image.NewPaletted(image.Rect(0, 0, b.width, b.height), color.Palette{color.White, color.Black})
	for y := range b.height {
		for x := range b.width {
			img.SetColorIndex(x, y, b.GetBit(x, y))
		}
	}
	return img
}

// Take data from any Bitmap implementation and pack it into the printer's
// bitmap structure. Rows are independent, so they're packed concurrently
// straight into their own region of the output buffer.
func PackBitmap(b Bitmap) *PackedBitmap {
	width, height, stride := b.Width(), b.Height(), strideFor(b.Width())
	data := make([]byte, stride*height)

	forEachRowRange(height, func(from, to int) {
		for y := from; y < to; y++ {
			row := data[y*stride : (y+1)*stride]
			for x := range width {
				if b.GetBit(x, y)&1 == 1 {
					row[x/bitsPerWord] |= 0x80 >> (x % bitsPerWord)
				}
			}
		}
	})

	return &PackedBitmap{data, width, height, stride}
}

// minRowsPerWorker stops tiny bitmaps being spread over goroutines for no gain
const minRowsPerWorker = 32

// forEachRowRange splits [0, height) into contiguous ranges and runs f over
// each of them concurrently, returning once all have finished.
func forEachRowRange(height int, f func(from, to int)) {
	workers := runtime.GOMAXPROCS(0)
	if limit := (height + minRowsPerWorker - 1) / minRowsPerWorker; workers > limit {
		workers = limit
	}
	if workers <= 1 {
		f(0, height)
		return
	}

	per := (height + workers - 1) / workers
	var wg sync.WaitGroup
	for from := 0; from < height; from += per {
		to := min(from+per, height)
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(from, to)
		}()
	}
	wg.Wait()
}
