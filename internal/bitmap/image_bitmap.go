package bitmap

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
	"github.com/nfnt/resize"
	"golang.org/x/image/draw"

	"tomgalvin.uk/rasterprint/internal/printerror"
)

// Width of the print head in dots (50mm paper at 203 DPI)
const DeviceWidth = 48 * 8

// A dot is printed once the inverted gray level reaches this value
const Threshold = 128

// Resampling filter used to scale an image to the device width
type Filter byte

const (
	CatmullRom Filter = iota
	BiLinear
	NearestNeighbor
	Lanczos
)

var filterNames = map[Filter]string{
	CatmullRom:      "catmullrom",
	BiLinear:        "bilinear",
	NearestNeighbor: "nearest",
	Lanczos:         "lanczos",
}

func (f Filter) String() string {
	if name, ok := filterNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Filter(%d)", byte(f))
}

func ParseFilter(s string) (Filter, error) {
	for f, name := range filterNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return CatmullRom, fmt.Errorf(`Unrecognised resampling filter "%s"`, s)
}

// The returned scaler keeps its working buffers between calls, so scaling an
// image one band at a time doesn't reallocate them.
func (f Filter) scaler(dw, dh, sw, sh int) draw.Scaler {
	switch f {
	case BiLinear:
		return draw.BiLinear.NewScaler(dw, dh, sw, sh)
	case NearestNeighbor:
		return draw.NearestNeighbor
	default:
		return draw.CatmullRom.NewScaler(dw, dh, sw, sh)
	}
}

type Options struct {
	Filter Filter
	// Dither swaps the fixed threshold for Floyd-Steinberg error diffusion.
	// Output is still strictly black and white.
	Dither bool
}

// GrayBitmap reads bits from a gray image by inverting and thresholding it:
// dark pixels become printed dots.
type GrayBitmap struct {
	image *image.Gray
}

func FromGray(i *image.Gray) *GrayBitmap {
	return &GrayBitmap{image: i}
}

func (b *GrayBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *GrayBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *GrayBitmap) GetBit(x int, y int) byte {
	inverted := 255 - b.image.GrayAt(b.image.Rect.Min.X+x, b.image.Rect.Min.Y+y).Y
	if inverted >= Threshold {
		return 1
	}
	return 0
}

type PalettedBitmap struct {
	image *image.Paletted
	// colorMap[i] represents the bit value of the palette colour at index i.
	// If the first colour in the image is black, and a high bit in a bitmap
	// sent to the device will be printed as black, then colorMap[0] == 1.
	colorMap [2]byte
}

func (b *PalettedBitmap) Width() int {
	return b.image.Rect.Dx()
}

func (b *PalettedBitmap) Height() int {
	return b.image.Rect.Dy()
}

func (b *PalettedBitmap) GetBit(x int, y int) byte {
	return b.colorMap[b.image.ColorIndexAt(b.image.Rect.Min.X+x, b.image.Rect.Min.Y+y)]
}

func FromPaletted(i *image.Paletted) (*PalettedBitmap, error) {
	if len(i.Palette) != 2 {
		return nil, fmt.Errorf("Image passed to FromPaletted must have only 2 colours in palette")
	}

	var colorMap [2]byte

	// Determine which of the two colours in the image's palette is closest to white.
	if i.Palette.Index(color.White) == 0 {
		colorMap = [2]byte{0, 1}
	} else {
		colorMap = [2]byte{1, 0}
	}

	return &PalettedBitmap{
		image:    i,
		colorMap: colorMap,
	}, nil
}

// NewRasterImage wraps raw row-major 8-bit gray samples as an image.
func NewRasterImage(width, height int, samples []byte) (*image.Gray, error) {
	if width <= 0 || height <= 0 {
		return nil, printerror.Conversionf("raster image must have positive dimensions, got %dx%d", width, height)
	}
	if len(samples) != width*height {
		return nil, printerror.Conversionf("raster image has %d samples, expecting %d*%d=%d",
			len(samples), width, height, width*height)
	}
	return &image.Gray{
		Pix:    samples,
		Stride: width,
		Rect:   image.Rect(0, 0, width, height),
	}, nil
}

// ScaledHeight is the height an image of the given size has once scaled to
// the device width, keeping its aspect ratio. The result is truncated.
func ScaledHeight(width, height int) int {
	return height * DeviceWidth / width
}

// Longest bitmap Transform will produce, about 2m of paper at 203 DPI
const MaxHeight = 16384

// Images are scaled and converted this many lines at a time
const bandHeight = 4 * 255

// CheckSize reports whether an image of the given size can be transformed,
// without needing its pixels. It can be run on the result of
// image.DecodeConfig before paying for a full decode.
func CheckSize(width, height int) error {
	if width <= 0 || height <= 0 {
		return printerror.Conversionf("image has zero dimension (%dx%d)", width, height)
	}
	if lines := ScaledHeight(width, height); lines > MaxHeight {
		return printerror.Conversionf("image is %dx%d and would print %d lines, more than %d",
			width, height, lines, MaxHeight)
	}
	return nil
}

// Transform scales an image to the width of the print head and turns it into
// a packed 1-bit bitmap ready to be sent to the printer.
func Transform(i image.Image, opts Options) (b *PackedBitmap, err error) {
	// a malformed image (or a typed nil) can panic in Bounds or the scaler
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, printerror.NewConversion("couldn't resample image", fmt.Errorf("%v", r))
		}
	}()

	if i == nil {
		return nil, printerror.Conversionf("no image to transform")
	}
	src := i.Bounds()
	if err := CheckSize(src.Dx(), src.Dy()); err != nil {
		return nil, err
	}

	bounds := image.Rect(0, 0, DeviceWidth, ScaledHeight(src.Dx(), src.Dy()))
	gray := RenderGray(i, bounds, opts.Filter)

	if !opts.Dither {
		return PackBitmap(FromGray(gray)), nil
	}

	paletted, err := FromPaletted(ditherGray(gray))
	if err != nil {
		return nil, printerror.NewConversion("couldn't dither image", err)
	}
	return PackBitmap(paletted), nil
}

// RenderGray scales i onto a white canvas of the given bounds and converts it
// to 8-bit gray using the BT.601 luma weights of color.GrayModel. Only one
// band of bandHeight lines is held in colour at a time.
func RenderGray(i image.Image, bounds image.Rectangle, f Filter) *image.Gray {
	gray := image.NewGray(bounds)
	if bounds.Empty() {
		return gray
	}

	src := i.Bounds()
	if f == Lanczos && src.Size() != bounds.Size() {
		// nfnt/resize has no way to render part of its output
		i = resize.Resize(uint(bounds.Dx()), uint(bounds.Dy()), i, resize.Lanczos3)
		src = i.Bounds()
	}

	var scaler draw.Scaler
	if src.Size() != bounds.Size() {
		scaler = f.scaler(bounds.Dx(), bounds.Dy(), src.Dx(), src.Dy())
	}

	canvas := image.NewRGBA(image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+min(bandHeight, bounds.Dy())))
	for top := bounds.Min.Y; top < bounds.Max.Y; top += bandHeight {
		band := image.Rect(bounds.Min.X, top, bounds.Max.X, min(top+bandHeight, bounds.Max.Y))
		canvas = reuseCanvas(canvas, band)

		// transparent areas are composited over white so they don't print
		draw.Draw(canvas, band, image.White, image.Point{}, draw.Src)

		if scaler == nil {
			draw.Draw(canvas, band, i, src.Min.Add(band.Min.Sub(bounds.Min)), draw.Over)
		} else {
			// the scaler only writes the part of bounds inside the canvas
			scaler.Scale(canvas, bounds, i, src, draw.Over, nil)
		}

		for y := band.Min.Y; y < band.Max.Y; y++ {
			for x := band.Min.X; x < band.Max.X; x++ {
				gray.SetGray(x, y, color.GrayModel.Convert(canvas.RGBAAt(x, y)).(color.Gray))
			}
		}
	}
	return gray
}

// Points canvas at band, reusing its pixel buffer
func reuseCanvas(canvas *image.RGBA, band image.Rectangle) *image.RGBA {
	return &image.RGBA{
		Pix:    canvas.Pix[:band.Dy()*canvas.Stride],
		Stride: canvas.Stride,
		Rect:   band,
	}
}

// dither gray image to black and white
func ditherGray(i *image.Gray) *image.Paletted {
	palette := []color.Color{color.Black, color.White}
	ditherer := dither.NewDitherer(palette)
	ditherer.Matrix = dither.FloydSteinberg
	ditherer.Serpentine = true
	return ditherer.DitherPaletted(i)
}
