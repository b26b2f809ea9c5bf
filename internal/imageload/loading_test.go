package imageload

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/bmp"

	"tomgalvin.uk/rasterprint/internal/printerror"
)

func aTestImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, 5, 3))
	img.SetGray(2, 1, color.Gray{Y: 200})
	return img
}

func TestDecode(t *testing.T) {
	encoders := []struct {
		format string
		encode func(*bytes.Buffer, image.Image) error
	}{
		{"png", func(b *bytes.Buffer, i image.Image) error { return png.Encode(b, i) }},
		{"bmp", func(b *bytes.Buffer, i image.Image) error { return bmp.Encode(b, i) }},
	}

	for _, e := range encoders {
		t.Run(e.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := e.encode(&buf, aTestImage()); err != nil {
				t.Fatal(err)
			}

			img, format, err := Decode(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if format != e.format {
				t.Errorf("Format = %q, want %q", format, e.format)
			}
			if img.Bounds().Dx() != 5 || img.Bounds().Dy() != 3 {
				t.Errorf("Bounds = %v, want 5x3", img.Bounds())
			}
			if y := color.GrayModel.Convert(img.At(2, 1)).(color.Gray).Y; y != 200 {
				t.Errorf("Pixel (2, 1) = %d, want 200", y)
			}
		})
	}
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte("definitely not an image")))
	if !errors.Is(err, printerror.ErrInput) {
		t.Errorf("Expected an input error, got %v", err)
	}
	if !errors.Is(err, image.ErrFormat) {
		t.Errorf("Expected image.ErrFormat as the cause, got %v", err)
	}
}

func TestDecodeLimits(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30))); err != nil {
		t.Fatal(err)
	}
	full := buf.Bytes()

	t.Run("within limits", func(t *testing.T) {
		img, _, err := Decode(bytes.NewReader(full), MaxPixels(1200))
		if err != nil {
			t.Fatal(err)
		}
		if img.Bounds() != image.Rect(0, 0, 40, 30) {
			t.Errorf("Bounds = %v", img.Bounds())
		}
	})

	t.Run("too many pixels", func(t *testing.T) {
		_, _, err := Decode(bytes.NewReader(full), MaxPixels(1199))
		if !errors.Is(err, printerror.ErrConversion) {
			t.Errorf("Expected a conversion error, got %v", err)
		}
	})

	t.Run("rejected from the header alone", func(t *testing.T) {
		// signature and IHDR chunk only, no pixel data
		header := full[:33]
		var seen [2]int
		_, _, err := Decode(bytes.NewReader(header), func(w, h int) error {
			seen = [2]int{w, h}
			return printerror.Conversionf("no thanks")
		})
		if seen != [2]int{40, 30} {
			t.Errorf("Limit saw %dx%d, want 40x30", seen[0], seen[1])
		}
		if !errors.Is(err, printerror.ErrConversion) {
			t.Errorf("Expected the limit's conversion error, got %v", err)
		}
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, aTestImage()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	img, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != image.Rect(0, 0, 5, 3) {
		t.Errorf("Bounds = %v", img.Bounds())
	}

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, printerror.ErrInput) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected an input error wrapping ErrNotExist, got %v", err)
	}
}
