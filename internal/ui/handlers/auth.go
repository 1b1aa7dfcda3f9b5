// auth.go — вход, регистрация и выход администратора.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/ui/auth"
	"github.com/nordqvist/hnfweb/internal/ui/pages"
)

// Сообщения страниц входа и регистрации.
const (
	MsgLoginSuccess     = "Login successful!"
	MsgWrongCredentials = "Wrong email or password!"
	MsgLoginError       = "An error occurred during login. Please try again."
	MsgRegisterSuccess  = "Registration successful! You can now log in."
	MsgRegisterError    = "An error occurred during registration. Please try again."
	MsgLoggedOut        = "You have been logged out successfully."
)

const (
	homePath    = "/"
	loginPath   = "/login"
	adminPath   = "/admin"
	contactPath = "/contact"
)

// AuthHandler — обработчики входа, регистрации и выхода.
type AuthHandler struct {
	view
	auth *service.AuthService
}

// NewAuthHandler создаёт новый AuthHandler.
func NewAuthHandler(authService *service.AuthService, sessions *auth.SessionManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		view: view{
			sessions: sessions,
			logger:   logger.With(slog.String("component", "ui_auth")),
		},
		auth: authService,
	}
}

// HandleLoginPage — GET /login.
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Login, pages.Data{})
}

// HandleLogin — POST /login.
// Неизвестный email и неверный пароль дают одинаковый ответ.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	form := pages.Data{Form: map[string]string{"email": email}}

	user, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			h.render(w, r, http.StatusOK, pages.Login, form, verr.Message)
		case errors.Is(err, service.ErrInvalidCredentials):
			h.render(w, r, http.StatusOK, pages.Login, form, MsgWrongCredentials)
		default:
			h.logger.Error("Ошибка входа", slog.String("error", err.Error()))
			h.render(w, r, http.StatusOK, pages.Login, form, MsgLoginError)
		}
		return
	}

	session := h.session(r)
	session.LogIn(user.Email)
	h.redirect(w, r, session, adminPath, MsgLoginSuccess)
}

// HandleRegisterPage — GET /register (только для администратора).
func (h *AuthHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Register, pages.Data{})
}

// HandleRegister — POST /register (только для администратора).
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	form := pages.Data{Form: map[string]string{"email": email}}

	err := h.auth.Register(r.Context(), email, r.PostFormValue("password"), r.PostFormValue("password_repeat"))
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			h.render(w, r, http.StatusOK, pages.Register, form, verr.Message)
		case errors.Is(err, service.ErrEmailTaken):
			h.render(w, r, http.StatusOK, pages.Register, form, service.MsgEmailTaken)
		default:
			h.logger.Error("Ошибка регистрации", slog.String("error", err.Error()))
			h.render(w, r, http.StatusOK, pages.Register, form, MsgRegisterError)
		}
		return
	}

	h.redirect(w, r, h.session(r), loginPath, MsgRegisterSuccess)
}

// HandleLogout — GET /logout. Очищает всю сессию.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)
	if session.AdminLoggedIn {
		h.logger.Info("Администратор вышел", slog.String("email", session.AdminEmail))
	}
	session.Reset()
	h.redirect(w, r, session, homePath, MsgLoggedOut)
}
