// Пакет handlers — HTTP-обработчики страниц сайта.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/a-h/templ"

	"github.com/nordqvist/hnfweb/internal/ui/auth"
	uimiddleware "github.com/nordqvist/hnfweb/internal/ui/middleware"
	"github.com/nordqvist/hnfweb/internal/ui/pages"
)

// view — общие для обработчиков рендеринг страниц и flash-редиректы.
type view struct {
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// session возвращает сессию запроса. Без загруженной сессии возвращает пустую.
func (v *view) session(r *http.Request) *auth.SessionData {
	if s := uimiddleware.SessionFromContext(r.Context()); s != nil {
		return s
	}
	return &auth.SessionData{}
}

// render показывает страницу со статусом status. Ожидающие flash-сообщения
// сессии выводятся перед messages и удаляются из cookie.
func (v *view) render(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	page func(pages.Data) templ.Component,
	data pages.Data,
	messages ...string,
) {
	session := v.session(r)

	if pending := session.PopFlashes(); len(pending) > 0 {
		data.Flashes = append(pending, messages...)
		if err := v.sessions.Save(w, session); err != nil {
			v.logger.Error("Ошибка сохранения сессии", slog.String("error", err.Error()))
		}
	} else {
		data.Flashes = messages
	}
	data.AdminLoggedIn = session.AdminLoggedIn
	data.AdminEmail = session.AdminEmail

	templ.Handler(page(data),
		templ.WithStatus(status),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				v.logger.Error("Ошибка рендеринга страницы",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			})
		}),
	).ServeHTTP(w, r)
}

// redirect сохраняет flash-сообщения в сессии и отвечает 302 на target.
func (v *view) redirect(w http.ResponseWriter, r *http.Request, session *auth.SessionData, target string, flashes ...string) {
	for _, msg := range flashes {
		session.AddFlash(msg)
	}
	if err := v.sessions.Save(w, session); err != nil {
		v.logger.Error("Ошибка сохранения сессии",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, target, http.StatusFound)
}
