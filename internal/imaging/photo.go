// Package imaging normalizes item photos uploaded by finders.
package imaging

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"github.com/zeebo/blake3"
	"golang.org/x/image/draw"
)

const (
	// MaxPhotoBytes bounds an uploaded photo before decoding.
	MaxPhotoBytes = 8 << 20

	// MaxPhotoPixels bounds the decoded size of an upload, checked from the
	// header before the pixels are decoded.
	MaxPhotoPixels = 40_000_000

	// MaxPhotoEdge is the longest edge of a stored photo.
	MaxPhotoEdge = 1280

	// MinPhotoEdge is the shortest edge a photo may have and still show
	// the item.
	MinPhotoEdge = 32

	// PhotoQuality is the JPEG quality of stored photos.
	PhotoQuality = 82

	// PhotoMIME is the content type of every stored photo.
	PhotoMIME = "image/jpeg"
)

var (
	ErrPhotoTooLarge    = errors.New("photo too large")
	ErrPhotoTooSmall    = errors.New("photo too small")
	ErrUnsupportedPhoto = errors.New("unsupported photo format")
)

// accepted are the sniffed upload types a photo may arrive in.
var accepted = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Photo is a stored item photo.
type Photo struct {
	Data   []byte
	ETag   string
	Width  int
	Height int
}

// ProcessPhoto turns an upload into a stored photo: a JPEG no larger than
// MaxPhotoEdge on either side, transparent areas flattened onto white.
// The upload's type is sniffed from its bytes.
func ProcessPhoto(r io.Reader) (*Photo, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(raw) > MaxPhotoBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrPhotoTooLarge, MaxPhotoBytes)
	}

	if kind := http.DetectContentType(raw); !accepted[kind] {
		return nil, fmt.Errorf("%w: %s (JPEG or PNG only)", ErrUnsupportedPhoto, kind)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedPhoto, err)
	}
	switch {
	case cfg.Width*cfg.Height > MaxPhotoPixels:
		return nil, fmt.Errorf("%w: %dx%d", ErrPhotoTooLarge, cfg.Width, cfg.Height)
	case cfg.Width < MinPhotoEdge || cfg.Height < MinPhotoEdge:
		return nil, fmt.Errorf("%w: %dx%d, need at least %d on each side", ErrPhotoTooSmall, cfg.Width, cfg.Height, MinPhotoEdge)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decoding photo: %w", err)
	}

	w, h := fitEdge(cfg.Width, cfg.Height, MaxPhotoEdge)
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), src, src.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: PhotoQuality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	return &Photo{
		Data:   out.Bytes(),
		ETag:   ETag(out.Bytes()),
		Width:  w,
		Height: h,
	}, nil
}

// ETag returns a quoted entity tag for data: the first 16 bytes of its
// BLAKE3 digest, hex encoded.
func ETag(data []byte) string {
	sum := blake3.Sum256(data)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// fitEdge scales w x h down so the longer edge is at most edge, keeping
// the aspect ratio. Photos are never enlarged.
func fitEdge(w, h, edge int) (int, int) {
	long := max(w, h)
	if long <= edge {
		return w, h
	}
	return max(1, w*edge/long), max(1, h*edge/long)
}
