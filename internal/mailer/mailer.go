// Пакет mailer — отправка писем через транзакционный API Resend.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// ErrNotConfigured — API-ключ Resend не задан.
var ErrNotConfigured = errors.New("отправка почты не настроена: API-ключ не задан")

// Message — исходящее письмо. HTML уже экранирован вызывающей стороной.
type Message struct {
	From    string
	To      []string
	ReplyTo string
	Subject string
	HTML    string
}

// Sender — отправитель писем.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// ResendSender отправляет письма через Resend. Повторных попыток нет.
type ResendSender struct {
	client *resend.Client
	logger *slog.Logger
}

// NewResendSender создаёт отправителя. При пустом apiKey каждое
// Send возвращает ErrNotConfigured.
func NewResendSender(apiKey string, logger *slog.Logger) *ResendSender {
	s := &ResendSender{
		logger: logger.With(slog.String("component", "mailer")),
	}
	if apiKey == "" {
		s.logger.Warn("HNF_RESEND_API_KEY не задан, контактная форма не сможет отправлять письма")
		return s
	}
	s.client = resend.NewClient(apiKey)
	return s
}

// Send отправляет письмо.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	if s.client == nil {
		return ErrNotConfigured
	}

	resp, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		ReplyTo: msg.ReplyTo,
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("ошибка отправки письма через Resend: %w", err)
	}

	s.logger.Info("Письмо отправлено",
		slog.String("id", resp.Id),
		slog.String("subject", msg.Subject),
	)
	return nil
}
