// Пакет middleware — HTTP middleware сайта.
// auth.go — загрузка сессии из cookie и защита админ-страниц.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nordqvist/hnfweb/internal/ui/auth"
)

// contextKey — тип для ключей контекста UI.
type contextKey string

const (
	// ContextKeyUISession — данные сессии в контексте запроса.
	ContextKeyUISession contextKey = "ui_session"
)

// LoginPath — куда отправляется неаутентифицированный пользователь.
const LoginPath = "/login"

// Sessions — middleware загрузки сессии и проверки входа администратора.
type Sessions struct {
	sessionManager *auth.SessionManager
	logger         *slog.Logger
}

// NewSessions создаёт middleware сессий.
func NewSessions(sessionManager *auth.SessionManager, logger *slog.Logger) *Sessions {
	return &Sessions{
		sessionManager: sessionManager,
		logger:         logger.With(slog.String("component", "ui_session_middleware")),
	}
}

// Load извлекает сессию из cookie и помещает её в контекст.
// Повреждённый или чужой cookie заменяется пустой сессией.
func (s *Sessions) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionManager.Load(r)
		if err != nil {
			s.logger.Debug("Ошибка чтения сессии",
				slog.String("error", err.Error()),
				slog.String("remote_addr", r.RemoteAddr),
			)
			s.sessionManager.Clear(w)
			session = &auth.SessionData{}
		}

		ctx := context.WithValue(r.Context(), ContextKeyUISession, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin пропускает запрос только при admin_logged_in,
// иначе 302 на страницу входа.
func (s *Sessions) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		if session == nil || !session.AdminLoggedIn {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionFromContext извлекает SessionData из контекста запроса.
// Возвращает nil если запрос не прошёл через Load.
func SessionFromContext(ctx context.Context) *auth.SessionData {
	session, ok := ctx.Value(ContextKeyUISession).(*auth.SessionData)
	if !ok {
		return nil
	}
	return session
}
