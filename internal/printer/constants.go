package printer

import "tomgalvin.uk/rasterprint/internal/bitmap"

// Fixed properties of the 50mm print head and the raster command it accepts
const (
	WidthDots  = bitmap.DeviceWidth
	WidthBytes = WidthDots / 8
	DPI        = 203

	// A single GS v 0 block can declare at most this many lines
	MaxLinesPerBlock = 255

	DefaultFeedLines = 4
)
