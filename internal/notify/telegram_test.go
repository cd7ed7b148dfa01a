package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Spok95/drillcert/internal/models"
)

type fakeBot struct {
	mu    sync.Mutex
	sent  []tgbotapi.Chattable
	err   error
	block chan struct{}
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.block != nil {
		<-b.block
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c)
	return tgbotapi.Message{}, b.err
}

func cert() models.IssuedCertificate {
	return models.IssuedCertificate{
		CertificateNumber: "CERT-2025-0007",
		VerificationCode:  "5f0c",
		Type:              models.CertificateCompletion,
		TrainingType:      "Flood response",
		Document:          "<html></html>",
	}
}

func TestCertificateIssued_SendsTextAndDocument(t *testing.T) {
	bot := &fakeBot{}
	tgID := int64(42)
	n := New(bot, nil)

	if err := n.CertificateIssued(context.Background(), models.User{Name: "Ann", TelegramID: &tgID}, cert(), "Flood drill"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(bot.sent))
	}
	msg, ok := bot.sent[0].(tgbotapi.MessageConfig)
	if !ok || msg.ChatID != 42 || !strings.Contains(msg.Text, "CERT-2025-0007") || !strings.Contains(msg.Text, `"Flood drill"`) {
		t.Fatalf("unexpected message: %#v", bot.sent[0])
	}
	doc, ok := bot.sent[1].(tgbotapi.DocumentConfig)
	if !ok || doc.Caption != "CERT-2025-0007" {
		t.Fatalf("unexpected document: %#v", bot.sent[1])
	}
}

func TestCertificateIssued_SkipsWithoutTelegram(t *testing.T) {
	bot := &fakeBot{}
	if err := New(bot, nil).CertificateIssued(context.Background(), models.User{Name: "Bob"}, cert(), "x"); err != nil {
		t.Fatal(err)
	}
	if len(bot.sent) != 0 {
		t.Fatal("nothing must be sent to a participant without telegram id")
	}
}

func TestCertificateIssued_StopsOnError(t *testing.T) {
	bot := &fakeBot{err: errors.New("Bad Request: chat not found")}
	tgID := int64(1)
	err := New(bot, nil).CertificateIssued(context.Background(), models.User{TelegramID: &tgID}, cert(), "x")
	if err == nil || len(bot.sent) != 1 {
		t.Fatalf("err=%v sent=%d", err, len(bot.sent))
	}
}

func TestCertificateIssued_RespectsContext(t *testing.T) {
	bot := &fakeBot{block: make(chan struct{})}
	defer close(bot.block)
	tgID := int64(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := New(bot, nil).CertificateIssued(ctx, models.User{TelegramID: &tgID}, cert(), "x")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want deadline exceeded, got %v", err)
	}
}

func TestIsSystemErr(t *testing.T) {
	cases := map[string]bool{
		"Too Many Requests: retry after 5 (429)": true,
		"Bad Gateway 502":                        true,
		"net/http: request timeout":              true,
		"Bad Request: chat not found":            false,
		"Forbidden: bot was blocked by the user": false,
	}
	for msg, want := range cases {
		if got := isSystemErr(errors.New(msg)); got != want {
			t.Errorf("%q: got %v, want %v", msg, got, want)
		}
	}
	if isSystemErr(nil) {
		t.Error("nil is not a system error")
	}
}
