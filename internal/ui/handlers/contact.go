// contact.go — контактная форма.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/ui/auth"
	"github.com/nordqvist/hnfweb/internal/ui/pages"
)

// Сообщения контактной формы.
const (
	MsgContactSent  = "Thank you! Your message has been sent successfully."
	MsgContactError = "Sorry, an error occurred while sending your message. Please try again later."
)

// ContactHandler — показ и отправка контактной формы.
type ContactHandler struct {
	view
	contact *service.ContactService
}

// NewContactHandler создаёт новый ContactHandler.
func NewContactHandler(contact *service.ContactService, sessions *auth.SessionManager, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{
		view: view{
			sessions: sessions,
			logger:   logger.With(slog.String("component", "ui_contact")),
		},
		contact: contact,
	}
}

// HandleContactPage — GET /contact.
func (h *ContactHandler) HandleContactPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Contact, pages.Data{})
}

// HandleSend — POST /send. Ошибки валидации и отправки показываются
// на той же форме с введёнными значениями.
func (h *ContactHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	form := service.ContactForm{
		Name:    r.PostFormValue("name"),
		Email:   r.PostFormValue("email"),
		Phone:   r.PostFormValue("phone"),
		Message: r.PostFormValue("message"),
	}
	data := pages.Data{Form: map[string]string{
		"name":    form.Name,
		"email":   form.Email,
		"phone":   form.Phone,
		"message": form.Message,
	}}

	if err := h.contact.Send(r.Context(), form); err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			h.render(w, r, http.StatusOK, pages.Contact, data, verr.Message)
			return
		}
		h.logger.Error("Ошибка отправки сообщения", slog.String("error", err.Error()))
		h.render(w, r, http.StatusOK, pages.Contact, data, MsgContactError)
		return
	}

	h.redirect(w, r, h.session(r), contactPath, MsgContactSent)
}
