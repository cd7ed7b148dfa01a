package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/Spok95/drillcert/internal/models"
)

// Предел стороны фона: A4 при 300 dpi.
const (
	maxBackgroundW = 3508
	maxBackgroundH = 3508
)

// Composite накладывает фон на белый лист с заданной прозрачностью и возвращает PNG.
// Содержимое сертификата рисуется поверх этого слоя.
func Composite(raw []byte, opacity float64) ([]byte, error) {
	img, err := decodeImage(raw)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() > maxBackgroundW || b.Dy() > maxBackgroundH {
		img = imaging.Fit(img, maxBackgroundW, maxBackgroundH, imaging.Lanczos)
		b = img.Bounds()
	}
	canvas := imaging.New(b.Dx(), b.Dy(), color.White)
	out := imaging.Overlay(canvas, img, image.Pt(0, 0), ClampOpacity(opacity))

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode background: %w", err)
	}
	return buf.Bytes(), nil
}

// ClampOpacity удерживает прозрачность в допустимом для шаблона диапазоне.
func ClampOpacity(v float64) float64 {
	if v < models.MinBackgroundOpacity {
		return models.MinBackgroundOpacity
	}
	if v > models.MaxBackgroundOpacity {
		return models.MaxBackgroundOpacity
	}
	return v
}

// DetectImage сообщает, умеем ли мы прочитать картинку фона.
func DetectImage(raw []byte) error {
	_, err := decodeImage(raw)
	return err
}

func decodeImage(raw []byte) (image.Image, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty background")
	}
	head := raw
	if len(head) > 512 {
		head = head[:512]
	}
	ct := http.DetectContentType(head)

	var (
		img image.Image
		err error
	)
	switch ct {
	case "image/jpeg":
		img, err = jpeg.Decode(bytes.NewReader(raw))
	case "image/png":
		img, err = png.Decode(bytes.NewReader(raw))
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("unsupported background format %s", ct)
	}
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	return img, nil
}
