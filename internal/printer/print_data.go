package printer

import (
	"image"

	"tomgalvin.uk/rasterprint/internal/bitmap"
	"tomgalvin.uk/rasterprint/internal/printerror"
)

// A print job: the image to print and how to turn it into print data
type Job struct {
	Image     image.Image
	FeedLines int
	Transform bitmap.Options
}

func NewJob(img image.Image) *Job {
	return &Job{
		Image:     img,
		FeedLines: DefaultFeedLines,
		Transform: bitmap.Options{Filter: bitmap.CatmullRom},
	}
}

// PrintData converts the job's image and frames it with the commands needed to
// print it, returning the bitmap alongside so callers can report on it.
func (j *Job) PrintData() ([]byte, *bitmap.PackedBitmap, error) {
	// fail on a bad feed before spending any time on the image
	if _, err := FeedLines(j.FeedLines); err != nil {
		return nil, nil, err
	}

	b, err := bitmap.Transform(j.Image, j.Transform)
	if err != nil {
		return nil, nil, err
	}

	d, err := AssemblePrintData(b, j.FeedLines)
	if err != nil {
		return nil, nil, err
	}
	return d, b, nil
}

// Generates the complete byte stream which prints img, followed by feedLines
// blank lines. Nothing is returned if any step fails.
func GeneratePrintData(img image.Image, feedLines int) ([]byte, error) {
	job := NewJob(img)
	job.FeedLines = feedLines
	d, _, err := job.PrintData()
	return d, err
}

func GenerateDefaultPrintData(img image.Image) ([]byte, error) {
	return GeneratePrintData(img, DefaultFeedLines)
}

// Frames an already transformed bitmap: init, centre justification, the
// raster blocks, then the feed.
func AssemblePrintData(b *bitmap.PackedBitmap, feedLines int) ([]byte, error) {
	feed, err := FeedLines(feedLines)
	if err != nil {
		return nil, err
	}
	if b.Width() != WidthDots || b.Stride() != WidthBytes {
		return nil, printerror.Conversionf("bitmap is %d dots wide, printer needs %d", b.Width(), WidthDots)
	}

	initCmd, justify := InitPrinter(), SetJustify(Centre)
	size := len(initCmd) + len(justify) +
		BlockCount(b.Height())*len(RasterHeader(0, 0, Normal)) + len(b.Data()) +
		len(feed)

	d := make([]byte, 0, size)
	d = append(d, initCmd...)
	d = append(d, justify...)
	d = printBitmap(d, b)
	d = append(d, feed...)
	return d, nil
}

// Number of raster blocks needed to print a bitmap of the given height
func BlockCount(lines int) int {
	return (lines + MaxLinesPerBlock - 1) / MaxLinesPerBlock
}

// Appends one or more raster headers and bitmap data blocks to d which will
// print the provided bitmap, splitting the bitmap up vertically since a
// single block can't declare more than MaxLinesPerBlock lines
func printBitmap(d []byte, b *bitmap.PackedBitmap) []byte {
	strideU16 := uint16(b.Stride())

	for bitmapStart := 0; bitmapStart < b.Height(); bitmapStart += MaxLinesPerBlock {
		bitmapEnd := min(bitmapStart+MaxLinesPerBlock, b.Height())

		slice := b.VerticalSlice(bitmapStart, bitmapEnd-bitmapStart)
		sliceHeightU16 := uint16(slice.Height())

		d = append(d,
			RasterHeader(strideU16, sliceHeightU16, Normal)...,
		)

		d = append(d,
			slice.Data()...,
		)
	}

	return d
}
