// Package exifstrip implements the coalesce-and-strip path for image
// uploads: decoding and re-encoding a blob to drop any embedded EXIF block.
package exifstrip

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"golang.org/x/image/tiff"

	_ "golang.org/x/image/webp" // decode-only: registers the "webp" format
)

// Logger is designed to be satisfied by log.Logger.
type Logger interface {
	Printf(format string, v ...interface{})
}

var strippableExt = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"webp": true,
	"tiff": true,
}

// Eligible reports whether an upload qualifies for the coalesce-and-strip
// path: it must be cached, have a recognized image extension, not have
// requested keepExif, and be no larger than maxStripLen.
func Eligible(useCache bool, ext string, keepExif bool, providedLen, maxStripLen int64) bool {
	if !useCache || keepExif {
		return false
	}
	if providedLen > maxStripLen {
		return false
	}
	return strippableExt[strings.ToLower(ext)]
}

// Strip decodes data as an image, discards any EXIF metadata by virtue of
// re-encoding from the decoded pixels, and returns the rewritten bytes. If
// decoding or re-encoding fails for any reason, the original bytes are
// returned unchanged and a warning is logged; this includes webp uploads,
// since the ecosystem decoder for webp has no matching encoder.
func Strip(logger Logger, data []byte) []byte {
	if _, err := exif.Decode(bytes.NewReader(data)); err == nil {
		logger.Printf("exifstrip: EXIF block present, stripping")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		logger.Printf("exifstrip: failed to decode image, keeping original bytes: %v", err)
		return data
	}

	var buf bytes.Buffer
	if err := encode(&buf, format, img); err != nil {
		logger.Printf("exifstrip: failed to re-encode %s image, keeping original bytes: %v", format, err)
		return data
	}

	return buf.Bytes()
}

func encode(w *bytes.Buffer, format string, img image.Image) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
	case "png":
		return png.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, nil)
	default:
		return errors.New("no encoder available for format " + format)
	}
}
