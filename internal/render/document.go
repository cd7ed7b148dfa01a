package render

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/Spok95/drillcert/internal/models"
)

func pageCSS(p models.PaperSize) string {
	switch p {
	case models.PaperA4:
		return "A4 portrait"
	case models.PaperLetter:
		return "letter portrait"
	case models.PaperLetterLandscape:
		return "letter landscape"
	default:
		return "A4 landscape"
	}
}

// HTML собирает печатную страницу: фон отдельным слоем под содержимым,
// размер бумаги влияет только на @page.
func (d Document) HTML() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><style>")
	b.WriteString("@page{size:" + pageCSS(d.PaperSize) + ";margin:0}")
	b.WriteString("body{margin:0}.certificate{position:relative;width:100%;height:100vh}")
	b.WriteString(".certificate-bg{position:absolute;top:0;right:0;bottom:0;left:0;background-size:cover;background-position:center}")
	b.WriteString(".certificate-content{position:relative}")
	b.WriteString("</style></head><body><div class=\"certificate\">")
	if len(d.Background) > 0 {
		b.WriteString("<div class=\"certificate-bg\" style=\"background-image:url(data:image/png;base64,")
		b.WriteString(base64.StdEncoding.EncodeToString(d.Background))
		b.WriteString(")\"></div>")
	}
	b.WriteString("<div class=\"certificate-content\">")
	b.WriteString(d.Body)
	b.WriteString("</div></div></body></html>\n")
	return b.String()
}

// ContentHash — SHA-256 печатной страницы; сохраняется при выдаче для проверки подлинности.
func ContentHash(page string) string {
	sum := sha256.Sum256([]byte(page))
	return hex.EncodeToString(sum[:])
}
