package images

import (
	"bytes"
	"net/http"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// ErrUnsupportedFormat is returned for payloads that are not JPEG, PNG or WebP.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// DetectFormat sniffs the encoded payload.
func DetectFormat(data []byte) (ImageFormat, error) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return FormatJPEG, nil
	case "image/png":
		return FormatPNG, nil
	case "image/webp":
		return FormatWebP, nil
	}
	return "", ErrUnsupportedFormat
}

// FormatFromExt maps a file extension (with or without the dot) to a format.
func FormatFromExt(ext string) (ImageFormat, error) {
	switch ext {
	case ".jpg", ".jpeg", "jpg", "jpeg":
		return FormatJPEG, nil
	case ".png", "png":
		return FormatPNG, nil
	case ".webp", "webp":
		return FormatWebP, nil
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "extension %q", ext)
}

// Decode turns an encoded JPEG, PNG or WebP payload into a BGR Mat.
//
// Arguments:
//   - data: The encoded bytes.
//
// Returns:
//   - gocv.Mat: The decoded 3 channel image. Caller closes it.
//   - error: An error if the payload is empty, unknown or corrupt.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), errors.Wrap(ErrEmptyImage, "decode")
	}

	format, err := DetectFormat(data)
	if err != nil {
		return gocv.NewMat(), err
	}

	if format == FormatWebP {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return gocv.NewMat(), errors.Wrap(err, "failed to decode webp")
		}
		return ToMat(img)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "failed to decode %s", format)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), errors.Errorf("failed to decode %s: empty result", format)
	}

	return mat, nil
}

// Encode serialises a BGR Mat. WebP output is lossless so a round trip keeps
// the composited eye pixels exact.
func Encode(mat gocv.Mat, format ImageFormat) ([]byte, error) {
	if mat.Empty() {
		return nil, errors.Wrap(ErrEmptyImage, "encode")
	}

	var ext gocv.FileExt
	switch format {
	case FormatJPEG:
		ext = gocv.JPEGFileExt
	case FormatPNG:
		ext = gocv.PNGFileExt
	case FormatWebP:
		img, err := ToImage(mat)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := webp.Encode(&buf, img, &webp.Options{Lossless: true}); err != nil {
			return nil, errors.Wrap(err, "failed to encode webp")
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %q", format)
	}

	nb, err := gocv.IMEncode(ext, mat)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", format)
	}
	defer nb.Close()

	out := make([]byte, nb.Len())
	copy(out, nb.GetBytes())
	return out, nil
}
