// Package notify доставляет участникам сообщения о выданных сертификатах.
// Доставка best-effort: ошибка возвращается вызывающему только для логов.
package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/observability"
)

// Sender — часть *tgbotapi.BotAPI, которой пользуется уведомитель.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot Sender
	log *zap.Logger
}

func NewTelegram(token string, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return New(bot, log), nil
}

func New(bot Sender, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, log: log}
}

// CertificateIssued отправляет участнику текст и сам документ файлом.
// Участники без telegram_id пропускаются.
func (t *Telegram) CertificateIssued(ctx context.Context, user models.User, cert models.IssuedCertificate, eventTitle string) error {
	if user.TelegramID == nil {
		return nil
	}
	chatID := *user.TelegramID

	msg := tgbotapi.NewMessage(chatID, Text(user, cert, eventTitle))
	if _, err := t.send(ctx, msg); err != nil {
		return err
	}
	if cert.Document == "" {
		return nil
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  cert.CertificateNumber + ".html",
		Bytes: []byte(cert.Document),
	})
	doc.Caption = cert.CertificateNumber
	_, err := t.send(ctx, doc)
	return err
}

// Text — текст уведомления о выдаче.
func Text(user models.User, cert models.IssuedCertificate, eventTitle string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, you have been awarded a %s certificate for %q.\n", user.Name, cert.Type, eventTitle)
	fmt.Fprintf(&b, "Number: %s\n", cert.CertificateNumber)
	if cert.TrainingType != "" {
		fmt.Fprintf(&b, "Training: %s\n", cert.TrainingType)
	}
	fmt.Fprintf(&b, "Verification code: %s", cert.VerificationCode)
	return b.String()
}

type sendResult struct {
	msg tgbotapi.Message
	err error
}

// send — bot.Send не принимает контекст, поэтому ждём ответ или отмену.
func (t *Telegram) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.Message{}, err
	}
	done := make(chan sendResult, 1)
	go func() {
		m, err := t.bot.Send(c)
		done <- sendResult{m, err}
	}()
	select {
	case r := <-done:
		if isSystemErr(r.err) {
			observability.CaptureErrCtx(ctx, r.err)
		}
		return r.msg, r.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	}
}

// Считаем системными: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "Bad Request") ||
		strings.Contains(s, "chat not found") ||
		strings.Contains(s, "bot was blocked by the user") {
		return false
	}
	return strings.Contains(s, "429") || strings.Contains(s, "500") || strings.Contains(s, "502") ||
		strings.Contains(s, "503") || strings.Contains(s, "timeout")
}
