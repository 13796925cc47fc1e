package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height for uploaded images.
const MaxDimension = 1024

// DefaultQuality is the compression quality for encoded payloads on a 0-1 scale.
const DefaultQuality = 0.8

// MaxUploadSize is the default size limit for uploaded images (5 MiB).
const MaxUploadSize = 5 << 20

// OutputMIME is the MIME type of every payload produced by this package.
const OutputMIME = "image/jpeg"

var (
	// ErrPayloadTooLarge is returned when an upload exceeds its size limit.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnsupportedFormat is returned when upload bytes are not an accepted image.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrEmptyFrame is returned when asked to encode an image with no pixels.
	ErrEmptyFrame = errors.New("image has zero width or height")
)

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Payload is an encoded still image ready to be attached to a record.
type Payload struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// JPEGQuality maps a 0-1 quality onto the 1-100 scale of image/jpeg.
func JPEGQuality(q float64) int {
	if q <= 0 || q > 1 {
		q = DefaultQuality
	}
	v := int(q*100 + 0.5)
	if v < 1 {
		v = 1
	}
	return v
}

// EncodeFrame rasterizes img into an RGBA buffer of its native size and
// encodes it as JPEG at the given 0-1 quality.
func EncodeFrame(img image.Image, quality float64) (*Payload, error) {
	if img == nil {
		return nil, ErrEmptyFrame
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyFrame
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality(quality)}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Payload{
		Data:   buf.Bytes(),
		MIME:   OutputMIME,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// ProcessUpload validates upload bytes against sizeLimit, checks the format
// by sniffing bytes, downscales if larger than MaxDimension, and re-encodes
// as JPEG. A sizeLimit <= 0 means MaxUploadSize.
func ProcessUpload(data []byte, sizeLimit int64) (*Payload, error) {
	if sizeLimit <= 0 {
		sizeLimit = MaxUploadSize
	}
	if int64(len(data)) > sizeLimit {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrPayloadTooLarge, len(data), sizeLimit)
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := mimetype.Detect(data).String()
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("%w: %s (only JPEG, PNG and WebP accepted)", ErrUnsupportedFormat, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrUnsupportedFormat, err)
	}

	return EncodeFrame(downscale(img, MaxDimension), DefaultQuality)
}

// Process reads an upload from r, refusing to read more than sizeLimit bytes.
func Process(r io.Reader, sizeLimit int64) (*Payload, error) {
	if sizeLimit <= 0 {
		sizeLimit = MaxUploadSize
	}
	data, err := io.ReadAll(io.LimitReader(r, sizeLimit+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	return ProcessUpload(data, sizeLimit)
}

// Dimensions decodes only the header of an encoded image.
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decoding image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
