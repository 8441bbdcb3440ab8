package exifstrip

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/tiff"
)

type discardLogger struct{}

func (discardLogger) Printf(format string, v ...interface{}) {}

func TestEligible(t *testing.T) {
	cases := []struct {
		name        string
		useCache    bool
		ext         string
		keepExif    bool
		providedLen int64
		maxStripLen int64
		want        bool
	}{
		{"eligible png", true, "png", false, 100, 1000, true},
		{"case insensitive", true, "PNG", false, 100, 1000, true},
		{"not cached", false, "png", false, 100, 1000, false},
		{"keep exif requested", true, "png", true, 100, 1000, false},
		{"too large", true, "png", false, 2000, 1000, false},
		{"unrecognized extension", true, "txt", false, 100, 1000, false},
		{"jpeg eligible", true, "jpeg", false, 100, 1000, true},
		{"webp eligible", true, "webp", false, 100, 1000, true},
		{"tiff eligible", true, "tiff", false, 100, 1000, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Eligible(tc.useCache, tc.ext, tc.keepExif, tc.providedLen, tc.maxStripLen)
			if got != tc.want {
				t.Errorf("Eligible(%v, %q, %v, %d, %d) = %v, want %v",
					tc.useCache, tc.ext, tc.keepExif, tc.providedLen, tc.maxStripLen, got, tc.want)
			}
		})
	}
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 16), 255, 255})
		}
	}
	return img
}

func TestStripPNGRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatal(err)
	}

	stripped := Strip(discardLogger{}, buf.Bytes())

	img, err := png.Decode(bytes.NewReader(stripped))
	if err != nil {
		t.Fatalf("stripped output does not decode as PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("decoded bounds = %v, want 4x4", b)
	}
}

func TestStripJPEGRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}

	stripped := Strip(discardLogger{}, buf.Bytes())

	img, err := jpeg.Decode(bytes.NewReader(stripped))
	if err != nil {
		t.Fatalf("stripped output does not decode as JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("decoded bounds = %v, want 4x4", b)
	}
}

func TestStripTIFFRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, testImage(), nil); err != nil {
		t.Fatal(err)
	}

	stripped := Strip(discardLogger{}, buf.Bytes())

	img, err := tiff.Decode(bytes.NewReader(stripped))
	if err != nil {
		t.Fatalf("stripped output does not decode as TIFF: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
		t.Fatalf("decoded bounds = %v, want 4x4", b)
	}
}

func TestStripFallsBackToOriginalOnDecodeFailure(t *testing.T) {
	garbage := []byte("not an image at all")
	got := Strip(discardLogger{}, garbage)
	if !bytes.Equal(got, garbage) {
		t.Fatal("expected undecodable input to be returned unchanged")
	}
}

