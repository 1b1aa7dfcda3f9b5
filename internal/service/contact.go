// contact.go — отправка сообщений из контактной формы.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a-h/templ"

	"github.com/nordqvist/hnfweb/internal/mailer"
)

// Сообщения контактной формы.
const (
	MsgContactRequired = "Email and message are required."
	notProvided        = "Not provided"
)

// ContactForm — поля контактной формы.
type ContactForm struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

// ContactConfig — адреса и тема исходящих писем.
type ContactConfig struct {
	From    string
	To      string
	Subject string
}

// ContactService проверяет форму и отправляет письмо владельцу сайта.
type ContactService struct {
	sender mailer.Sender
	cfg    ContactConfig
	logger *slog.Logger
}

// NewContactService создаёт сервис контактной формы.
func NewContactService(sender mailer.Sender, cfg ContactConfig, logger *slog.Logger) *ContactService {
	return &ContactService{
		sender: sender,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "contact_service")),
	}
}

// Send проверяет форму и отправляет письмо. Ошибки валидации возвращаются как
// *ValidationError, и отправитель при этом не вызывается.
func (s *ContactService) Send(ctx context.Context, form ContactForm) error {
	form, err := ValidateContact(form)
	if err != nil {
		return err
	}

	safeEmail := templ.EscapeString(form.Email)
	msg := mailer.Message{
		From:    s.cfg.From,
		To:      []string{s.cfg.To},
		ReplyTo: safeEmail,
		Subject: s.cfg.Subject,
		HTML:    BuildContactHTML(form),
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения: %w", err)
	}

	s.logger.Info("Сообщение из контактной формы отправлено",
		slog.String("reply_to", form.Email),
	)
	return nil
}

// ValidateContact очищает поля и проверяет обязательные.
// Проверка email намеренно слабая: есть "@" и после последнего "@" есть ".".
func ValidateContact(form ContactForm) (ContactForm, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	form.Phone = strings.TrimSpace(form.Phone)
	form.Message = strings.TrimSpace(strings.ReplaceAll(form.Message, "\r\n", "\n"))

	if form.Email == "" || form.Message == "" {
		return form, invalid(MsgContactRequired)
	}

	at := strings.LastIndex(form.Email, "@")
	if at < 0 || !strings.Contains(form.Email[at+1:], ".") {
		return form, invalid(MsgInvalidEmail)
	}
	return form, nil
}

// BuildContactHTML собирает тело письма. Все поля экранируются,
// переводы строк в сообщении заменяются на <br> уже после экранирования.
func BuildContactHTML(form ContactForm) string {
	name := notProvided
	if form.Name != "" {
		name = templ.EscapeString(form.Name)
	}
	phone := notProvided
	if form.Phone != "" {
		phone = templ.EscapeString(form.Phone)
	}
	message := strings.ReplaceAll(templ.EscapeString(form.Message), "\n", "<br>")

	var b strings.Builder
	fmt.Fprintf(&b, "<p><b>From:</b> %s (%s)</p>\n", name, templ.EscapeString(form.Email))
	fmt.Fprintf(&b, "<p><b>Phone:</b> %s</p>\n", phone)
	b.WriteString("<p><b>Message:</b></p>\n")
	fmt.Fprintf(&b, "<p>%s</p>\n", message)
	return b.String()
}
