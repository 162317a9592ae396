package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"path"
	"strings"

	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height of a downscaled attachment.
const MaxDimension = 1024

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// PreviewKind selects how an attachment is presented.
type PreviewKind string

const (
	PreviewImage    PreviewKind = "image"
	PreviewDocument PreviewKind = "document"
)

// Classify maps a MIME type to its preview kind. Anything under image/ is
// shown as a thumbnail, everything else as a document.
func Classify(mime string) PreviewKind {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(mime)), "image/") {
		return PreviewImage
	}
	return PreviewDocument
}

// downscalable lists the sniffed types Process can decode.
var downscalable = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Result is a re-encoded image.
type Result struct {
	Data   []byte
	MIME   string
	Width  int
	Height int
}

// Process sniffs the data, downscales it if either side exceeds
// MaxDimension and re-encodes it as JPEG. An *UnsupportedError is returned
// for anything that is not a JPEG or PNG.
func Process(r io.Reader) (*Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}

	detected := http.DetectContentType(data)
	if !downscalable[detected] {
		return nil, &UnsupportedError{MIME: detected}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	b := img.Bounds()
	return &Result{
		Data:   buf.Bytes(),
		MIME:   "image/jpeg",
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// UnsupportedError reports a sniffed type Process cannot handle.
type UnsupportedError struct {
	MIME string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported image format: %s (only JPEG and PNG accepted)", e.MIME)
}

// JPEGName replaces the extension of a file name with .jpg.
func JPEGName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + ".jpg"
}

// downscale resizes img with Catmull-Rom so neither side exceeds maxDim,
// keeping the aspect ratio. Smaller images are returned as is.
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
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}
