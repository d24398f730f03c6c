package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
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

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func decode(t *testing.T, p *Photo) image.Image {
	t.Helper()
	img, format, err := image.Decode(bytes.NewReader(p.Data))
	if err != nil {
		t.Fatalf("decoding stored photo: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("expected stored photo to be jpeg, got %s", format)
	}
	return img
}

func TestProcessPhotoFormats(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"jpeg", encodeJPEG(solid(100, 100, color.RGBA{255, 0, 0, 255}))},
		{"png", encodePNG(solid(100, 100, color.RGBA{0, 0, 255, 255}))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProcessPhoto(bytes.NewReader(tt.data))
			if err != nil {
				t.Fatalf("ProcessPhoto: %v", err)
			}
			img := decode(t, p)
			if img.Bounds().Dx() != 100 || p.Width != 100 || p.Height != 100 {
				t.Errorf("expected 100x100 photo, got %v (%dx%d)", img.Bounds(), p.Width, p.Height)
			}
		})
	}
}

func TestProcessPhotoFitsLongEdge(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{2560, 2560, MaxPhotoEdge, MaxPhotoEdge},
		{2560, 640, MaxPhotoEdge, 320},
		{640, 2560, 320, MaxPhotoEdge},
		{400, 300, 400, 300},
	}
	for _, tt := range tests {
		p, err := ProcessPhoto(bytes.NewReader(encodePNG(solid(tt.w, tt.h, color.Black))))
		if err != nil {
			t.Fatalf("%dx%d: %v", tt.w, tt.h, err)
		}
		got := decode(t, p).Bounds()
		if got.Dx() != tt.wantW || got.Dy() != tt.wantH {
			t.Errorf("%dx%d: expected %dx%d, got %dx%d", tt.w, tt.h, tt.wantW, tt.wantH, got.Dx(), got.Dy())
		}
	}
}

func TestProcessPhotoFlattensTransparency(t *testing.T) {
	p, err := ProcessPhoto(bytes.NewReader(encodePNG(solid(64, 64, color.Transparent))))
	if err != nil {
		t.Fatal(err)
	}
	r, g, b, _ := decode(t, p).At(32, 32).RGBA()
	if r>>8 < 250 || g>>8 < 250 || b>>8 < 250 {
		t.Errorf("expected transparent pixels to become white, got %d,%d,%d", r>>8, g>>8, b>>8)
	}
}

func TestProcessPhotoRejects(t *testing.T) {
	oversized := make([]byte, MaxPhotoBytes+10)
	copy(oversized, encodePNG(solid(40, 40, color.Black)))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"text", []byte("not an image"), ErrUnsupportedPhoto},
		{"gif", []byte("GIF89a..."), ErrUnsupportedPhoto},
		{"truncated png", encodePNG(solid(40, 40, color.Black))[:20], ErrUnsupportedPhoto},
		{"tiny", encodeJPEG(solid(16, 64, color.Black)), ErrPhotoTooSmall},
		{"oversized upload", oversized, ErrPhotoTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProcessPhoto(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProcessPhotoETag(t *testing.T) {
	data := encodeJPEG(solid(64, 64, color.RGBA{0, 128, 0, 255}))
	a, err := ProcessPhoto(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := ProcessPhoto(bytes.NewReader(data))

	if a.ETag == "" || a.ETag != b.ETag {
		t.Errorf("expected identical non-empty etags, got %q and %q", a.ETag, b.ETag)
	}
	if a.ETag != ETag(a.Data) {
		t.Error("etag does not match stored data")
	}
	if len(a.ETag) != 34 || a.ETag[0] != '"' || a.ETag[33] != '"' {
		t.Errorf("expected quoted 32 hex char etag, got %q", a.ETag)
	}
	if ETag([]byte("a")) == ETag([]byte("b")) {
		t.Error("expected different etags for different data")
	}
}
