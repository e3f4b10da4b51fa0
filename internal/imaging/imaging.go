// Package imaging normalizes product photos uploaded by administrators.
package imaging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"

	"github.com/Surfinbird-star/aas2/internal/objstore"
)

// MaxDimension is the maximum width or height of a stored product image.
const MaxDimension = 1024

// MaxUpload is the largest accepted source image.
const MaxUpload = 5 << 20

// JPEGQuality is the quality of re-encoded images.
const JPEGQuality = 85

// ContentType is the MIME type of every stored image.
const ContentType = "image/jpeg"

// ErrUnsupported is returned for input that is not a JPEG or PNG image.
var ErrUnsupported = errors.New("unsupported image format")

var sniffed = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Image is a processed product image.
type Image struct {
	Data   []byte
	Width  int
	Height int
}

// ProductKey is the object key of a product's image.
func ProductKey(productID int64) string {
	return fmt.Sprintf("products/%d.jpg", productID)
}

// Process sniffs the input format, shrinks it to fit MaxDimension and
// re-encodes it as JPEG. The client's declared content type is ignored.
func Process(r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUpload+1))
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) > MaxUpload {
		return nil, fmt.Errorf("%w: image larger than %d bytes", ErrUnsupported, MaxUpload)
	}

	if detected := http.DetectContentType(data); !sniffed[detected] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	img = fit(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}

	b := img.Bounds()
	return &Image{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// Store processes an image and writes it to the bucket under the product's
// key, returning that key.
func Store(ctx context.Context, bucket objstore.Bucket, productID int64, r io.Reader) (string, error) {
	img, err := Process(r)
	if err != nil {
		return "", err
	}
	key := ProductKey(productID)
	if err := bucket.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), ContentType); err != nil {
		return "", fmt.Errorf("storing product image: %w", err)
	}
	return key, nil
}

// fit scales img down, keeping its aspect ratio, until neither side exceeds
// maxDim. Smaller images are returned unchanged.
func fit(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := maxDim, maxDim
	if w > h {
		newH = max(1, h*maxDim/w)
	} else {
		newW = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
