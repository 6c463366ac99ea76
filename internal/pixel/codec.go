package pixel

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrInvalidImage indicates that the supplied payload could not be decoded
// into a raster image.
var ErrInvalidImage = errors.New("pixel: invalid image payload")

// DecodeDataURI decodes a data-URI-style image payload of the form
// "<meta>,<base64>" into a raster image. The meta segment before the comma is
// ignored; the base64 segment must decode to a registered still-image format
// (PNG, JPEG or GIF).
func DecodeDataURI(payload string) (image.Image, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	encoded := trimmed
	if commaIndex := strings.Index(trimmed, ","); commaIndex >= 0 {
		encoded = trimmed[commaIndex+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return decoded, nil
}

// EncodeRGB565 packs a raster into 16-bit 5-6-5 color, row major, two bytes
// per pixel in little-endian order (low byte first), with no header. Any
// alpha channel is discarded before quantization. The output is exactly
// 2*width*height bytes; the consumer must know the dimensions out of band.
func EncodeRGB565(raster image.Image) []byte {
	bounds := raster.Bounds()
	packed := make([]byte, 0, 2*bounds.Dx()*bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// non-premultiplied conversion keeps the raw channel values;
			// the alpha band is dropped, not composited.
			px := color.NRGBAModel.Convert(raster.At(x, y)).(color.NRGBA)
			r := uint16(px.R)
			g := uint16(px.G)
			b := uint16(px.B)
			value := ((r & 0xF8) << 8) | ((g & 0xFC) << 3) | (b >> 3)
			packed = append(packed, byte(value), byte(value>>8))
		}
	}

	return packed
}
