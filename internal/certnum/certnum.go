// Package certnum форматирует номера сертификатов по шаблону вида "DRL-{YEAR}-{SEQ}".
//
// {YEAR} — год выдачи, {SEQ} — порядковый номер с ведущими нулями (4 знака),
// {SEQ:N} задаёт ширину явно. Счётчик ведётся на «префикс» — формат с уже
// подставленным годом, поэтому шаблоны с одинаковым форматом делят один счётчик.
package certnum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	DefaultFormat   = "CERT-{YEAR}-{SEQ}"
	defaultSeqWidth = 4
	maxSeqWidth     = 12
)

var seqRe = regexp.MustCompile(`\{SEQ(?::(\d+))?\}`)

// Validate — формат должен содержать ровно один {SEQ}, иначе номера не будут уникальны.
func Validate(format string) error {
	if strings.TrimSpace(format) == "" {
		return fmt.Errorf("number format is empty")
	}
	m := seqRe.FindAllStringSubmatch(format, -1)
	if len(m) != 1 {
		return fmt.Errorf("number format must contain exactly one {SEQ} token, found %d", len(m))
	}
	if m[0][1] != "" {
		w, err := strconv.Atoi(m[0][1])
		if err != nil || w < 1 || w > maxSeqWidth {
			return fmt.Errorf("{SEQ:%s}: width must be 1..%d", m[0][1], maxSeqWidth)
		}
	}
	return nil
}

// Scope — ключ счётчика для формата в заданном году.
func Scope(format string, year int) string {
	return strings.ReplaceAll(format, "{YEAR}", strconv.Itoa(year))
}

// Format подставляет год и порядковый номер.
func Format(format string, year int, seq int64) string {
	out := strings.ReplaceAll(format, "{YEAR}", strconv.Itoa(year))
	return seqRe.ReplaceAllStringFunc(out, func(tok string) string {
		width := defaultSeqWidth
		if sub := seqRe.FindStringSubmatch(tok); len(sub) == 2 && sub[1] != "" {
			if w, err := strconv.Atoi(sub[1]); err == nil && w > 0 && w <= maxSeqWidth {
				width = w
			}
		}
		return fmt.Sprintf("%0*d", width, seq)
	})
}
