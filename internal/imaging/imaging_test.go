package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Surfinbird-star/aas2/internal/objstore"
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, solid(w, h, color.RGBA{200, 80, 0, 255}), &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(w, h, color.RGBA{0, 120, 40, 255})))
	return buf.Bytes()
}

func TestProcessFormats(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg", encodeJPEG(t, 100, 80)},
		{"png", encodePNG(t, 100, 80)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Process(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.NotEmpty(t, img.Data)
			assert.Equal(t, 100, img.Width)
			assert.Equal(t, 80, img.Height)

			_, format, err := image.Decode(bytes.NewReader(img.Data))
			require.NoError(t, err)
			assert.Equal(t, "jpeg", format)
		})
	}
}

func TestProcessShrinksLargeImages(t *testing.T) {
	img, err := Process(bytes.NewReader(encodeJPEG(t, 2048, 1024)))
	require.NoError(t, err)
	assert.Equal(t, MaxDimension, img.Width)
	assert.Equal(t, MaxDimension/2, img.Height)
}

func TestProcessRejectsOtherFormats(t *testing.T) {
	for _, data := range [][]byte{[]byte("not an image"), []byte("GIF89a......")} {
		_, err := Process(bytes.NewReader(data))
		assert.ErrorIs(t, err, ErrUnsupported)
	}
}

func TestStoreWritesProductKey(t *testing.T) {
	bucket, err := objstore.NewDiskBucket(t.TempDir(), "product_images")
	require.NoError(t, err)

	key, err := Store(context.Background(), bucket, 42, bytes.NewReader(encodePNG(t, 20, 20)))
	require.NoError(t, err)
	assert.Equal(t, "products/42.jpg", key)

	rc, err := bucket.Open(context.Background(), key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	_, format, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}
