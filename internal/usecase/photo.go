package usecase

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
)

const (
	MaxPhotoBytes    = 5 << 20
	maxPhotoSide     = 2048
	photoJPEGQuality = 85
)

// PhotoProcessor normalises uploaded step photos before they are stored.
type PhotoProcessor interface {
	Process(data []byte) ([]byte, error)
}

type ImagingProcessor struct {
	MaxSide int
	Quality int
}

func NewImagingProcessor() *ImagingProcessor {
	return &ImagingProcessor{MaxSide: maxPhotoSide, Quality: photoJPEGQuality}
}

// Process decodes the image honouring its EXIF orientation, shrinks it to fit
// MaxSide and re-encodes it as JPEG.
func (p *ImagingProcessor) Process(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var out image.Image = img
	b := img.Bounds()
	if b.Dx() > p.MaxSide || b.Dy() > p.MaxSide {
		out = imaging.Fit(img, p.MaxSide, p.MaxSide, imaging.Lanczos)
	}

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, out, imaging.JPEG, imaging.JPEGQuality(p.Quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
