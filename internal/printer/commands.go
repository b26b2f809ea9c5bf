// This file implements the Epson ESC/POS command byte sequences understood by
// 50mm thermal receipt printers. Every command is returned as a fresh slice.
package printer

import (
	"tomgalvin.uk/rasterprint/internal/printerror"
)

// Control characters
const (
	Esc = 0x1B
	GS  = 0x1D
)

// Type alias for the image alignment of a printed bitmap
type Justify byte

const (
	Left   Justify = 0x00
	Centre Justify = 0x01
	Right  Justify = 0x02
)

// Type alias for the scaling applied by the printer to a raster block
type RasterMode byte

const (
	Normal       RasterMode = 0x00
	DoubleWidth  RasterMode = 0x01
	DoubleHeight RasterMode = 0x02
	Quadruple    RasterMode = 0x03
)

// Initialises the printer & prepares it to accept commands
func InitPrinter() []byte {
	return []byte{Esc, 0x40}
}

// Sets the image alignment/justification of the bitmap to print.
func SetJustify(justify Justify) []byte {
	return []byte{Esc, 0x61, byte(justify)}
}

// Makes the printer spool through n blank lines. n must fit in a single byte.
func FeedLines(n int) ([]byte, error) {
	if n < 0 || n > 255 {
		return nil, printerror.Parameterf("feed lines out of range: %d not in [0, 255]", n)
	}
	return []byte{Esc, 0x64, byte(n)}, nil
}

// Prepares the printer to print bitmap data specified by the width and height passed in.
// widthBytes specifies the width of the bitmap data in bytes, with 8 pixels packed into 1 byte.
// lines specifies the height of the bitmap data in rows.
// After this command is written, (widthBytes * lines) bytes of data must then be written
func RasterHeader(widthBytes uint16, lines uint16, mode RasterMode) []byte {
	return []byte{
		GS, 0x76, 0x30, byte(mode),
		byte(widthBytes & 0xFF), byte(widthBytes >> 8),
		byte(lines & 0xFF), byte(lines >> 8),
	}
}
