package usecase

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"regexp"
	"strings"

	"plant_inspection/internal/domain"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// plantTagPattern matches nameplate asset tags such as "PMP-004211" or
// "XY202504160092".
var plantTagPattern = regexp.MustCompile(`^[A-Z]{2,4}-?\d{4,12}$`)

type OCRResult struct {
	Text     string `json:"text"`
	PlantTag string `json:"plantTag,omitempty"`
}

type OCRUseCase struct {
	logger    *slog.Logger
	recognize func(image []byte) (string, error)
}

func NewOCRUseCase(logger *slog.Logger) *OCRUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRUseCase{logger: logger, recognize: tesseractText}
}

func tesseractText(data []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("failed to set image for OCR: %w", err)
	}
	return client.Text()
}

// ProcessOCR reads the text on a nameplate photo and extracts the plant tag
// when one is visible.
func (u *OCRUseCase) ProcessOCR(imageBytes []byte) (*OCRResult, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, domain.InvalidArgumentf("image could not be decoded: %v", err)
	}

	processed := imaging.Grayscale(img)
	processed = imaging.AdjustContrast(processed, 20)
	processed = imaging.Sharpen(processed, 0.5)

	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, processed, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode processed image: %w", err)
	}

	text, err := u.recognize(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	result := &OCRResult{Text: strings.TrimSpace(text)}
	result.PlantTag, _ = ExtractPlantTag(result.Text)
	u.logger.Debug("ocr finished", "chars", len(result.Text), "plant_tag", result.PlantTag)
	return result, nil
}

// ExtractPlantTag returns the first whitespace separated token that looks
// like an asset tag.
func ExtractPlantTag(text string) (string, bool) {
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ".,;:()[]")
		if plantTagPattern.MatchString(token) {
			return token, true
		}
	}
	return "", false
}
