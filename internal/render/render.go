// Package render подставляет данные участника в шаблон сертификата.
//
// Подстановка однопроходная: значение, вставленное вместо токена, повторно не
// сканируется, поэтому порядок токенов не важен. Нераспознанные и битые
// конструкции остаются в выводе как есть и попадают в диагностику.
package render

import (
	"html"
	"math"
	"strconv"
	"strings"

	"github.com/Spok95/drillcert/internal/models"
)

type DiagnosticKind string

const (
	DiagUnknownToken         DiagnosticKind = "unknown_token"
	DiagUnclosedBrace        DiagnosticKind = "unclosed_brace"
	DiagBackgroundUnreadable DiagnosticKind = "background_unreadable"
	DiagEmptyContent         DiagnosticKind = "empty_content"
)

// Diagnostic — замечание для операторов; рендер при этом не падает.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Offset int            `json:"offset"`
	Detail string         `json:"detail"`
}

// Document — материализованный сертификат.
type Document struct {
	Body        string           `json:"body"`
	PaperSize   models.PaperSize `json:"paper_size"`
	Background  []byte           `json:"-"`
	Diagnostics []Diagnostic     `json:"diagnostics,omitempty"`
}

// Render — чистая детерминированная функция от шаблона и контекста.
func Render(tpl models.CertificateTemplate, ctx Context) Document {
	body, diags := Substitute(tpl.Content, ctx)
	if strings.TrimSpace(tpl.Content) == "" {
		diags = append(diags, Diagnostic{Kind: DiagEmptyContent, Detail: "template content is empty"})
	}
	doc := Document{Body: body, PaperSize: tpl.PaperSize, Diagnostics: diags}
	if doc.PaperSize == "" {
		doc.PaperSize = models.PaperA4Landscape
	}
	if len(tpl.Background) > 0 {
		bg, err := Composite(tpl.Background, tpl.BackgroundOpacity)
		if err != nil {
			doc.Diagnostics = append(doc.Diagnostics, Diagnostic{Kind: DiagBackgroundUnreadable, Detail: err.Error()})
		} else {
			doc.Background = bg
		}
	}
	return doc
}

// Substitute заменяет распознанные токены экранированными значениями.
func Substitute(content string, ctx Context) (string, []Diagnostic) {
	var (
		b     strings.Builder
		diags []Diagnostic
	)
	b.Grow(len(content))
	i := 0
	for i < len(content) {
		open := strings.IndexByte(content[i:], '{')
		if open < 0 {
			b.WriteString(content[i:])
			break
		}
		open += i
		b.WriteString(content[i:open])

		rest := content[open+1:]
		closeRel := strings.IndexByte(rest, '}')
		if closeRel < 0 {
			diags = append(diags, Diagnostic{Kind: DiagUnclosedBrace, Offset: open, Detail: "'{' without closing '}'"})
			b.WriteString(content[open:])
			break
		}
		// "{{name}" — первая скобка лишняя, токен начинается со второй
		if nested := strings.IndexByte(rest[:closeRel], '{'); nested >= 0 {
			b.WriteString(content[open : open+1+nested])
			i = open + 1 + nested
			continue
		}

		inner := rest[:closeRel]
		end := open + 1 + closeRel + 1
		if t := ParseToken(inner); t != TokenUnknown {
			b.WriteString(html.EscapeString(ctx.value(t)))
		} else {
			b.WriteString(content[open:end])
			if looksLikeToken(inner) {
				diags = append(diags, Diagnostic{Kind: DiagUnknownToken, Offset: open, Detail: "{" + inner + "}"})
			}
		}
		i = end
	}
	return b.String(), diags
}

// looksLikeToken отделяет опечатки в токенах от обычного текста в скобках (например, CSS).
func looksLikeToken(s string) bool {
	if s == "" || len(s) > 64 {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// FormatScore печатает процент с точностью до десятых без лишних нулей: 70%, 72.5%.
func FormatScore(pct float64) string {
	return strconv.FormatFloat(math.Round(pct*10)/10, 'f', -1, 64) + "%"
}
