package handlers

import (
	"log/slog"
	"net/http"

	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/ui/auth"
	"github.com/nordqvist/hnfweb/internal/ui/pages"
)

// PagesHandler — публичные страницы сайта.
type PagesHandler struct {
	view
	images *service.ImageService
}

// NewPagesHandler создаёт новый PagesHandler.
func NewPagesHandler(images *service.ImageService, sessions *auth.SessionManager, logger *slog.Logger) *PagesHandler {
	return &PagesHandler{
		view: view{
			sessions: sessions,
			logger:   logger.With(slog.String("component", "ui_pages")),
		},
		images: images,
	}
}

// HandleHome — GET /.
func (h *PagesHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Home, pages.Data{})
}

// HandleInspiration — GET /inspiration. Только активные изображения, новые первыми.
func (h *PagesHandler) HandleInspiration(w http.ResponseWriter, r *http.Request) {
	images, err := h.images.ListActive(r.Context())
	if err != nil {
		// Галерея без изображений лучше, чем страница ошибки
		h.logger.Error("Ошибка загрузки галереи", slog.String("error", err.Error()))
	}
	h.render(w, r, http.StatusOK, pages.Inspiration, pages.Data{Images: images})
}

// HandleAbout — GET /about.
func (h *PagesHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.About, pages.Data{})
}

// HandleNotFound — страница 404 для неизвестных путей.
func (h *PagesHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, pages.NotFound, pages.Data{})
}
