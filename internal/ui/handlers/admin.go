// admin.go — панель администратора: загрузка, скрытие и удаление изображений.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/ui/auth"
	"github.com/nordqvist/hnfweb/internal/ui/pages"
)

// Сообщения панели администратора.
const (
	MsgChooseImage          = "Please choose an image to upload."
	MsgImageTooLarge        = "The image is too large."
	MsgStorageNotConfigured = "Image storage is not configured."
	MsgUploadSuccess        = "Image uploaded successfully!"
	MsgUploadOrphaned       = "The image was stored but could not be saved to the gallery. Please try again."
	MsgUploadError          = "An error occurred while uploading the image. Please try again."
	MsgImageNotFound        = "Image not found."
	MsgImageDeleted         = "Image deleted successfully!"
	MsgImageDeletedPartial  = "Image deleted, but its file could not be removed from storage."
	MsgImageDeleteError     = "An error occurred while deleting the image. Please try again."
	MsgImageHidden          = "Image hidden from the gallery."
	MsgImageShown           = "Image is visible in the gallery again."
	MsgImageUpdateError     = "An error occurred while updating the image. Please try again."
	MsgImagesLoadError      = "An error occurred while loading images."
)

// multipartMemory — часть формы, хранимая в памяти; остальное уходит во временные файлы.
const multipartMemory = 8 << 20

// AdminHandler — обработчики панели администратора.
type AdminHandler struct {
	view
	images         *service.ImageService
	maxUploadBytes int64
}

// NewAdminHandler создаёт новый AdminHandler.
func NewAdminHandler(
	images *service.ImageService,
	maxUploadBytes int64,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		view: view{
			sessions: sessions,
			logger:   logger.With(slog.String("component", "ui_admin")),
		},
		images:         images,
		maxUploadBytes: maxUploadBytes,
	}
}

// HandleDashboard — GET /admin. Все изображения, включая скрытые.
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	data := pages.Data{
		StorageEnabled: h.images.StorageEnabled(),
		MaxUploadMB:    h.maxUploadBytes >> 20,
	}

	images, err := h.images.ListAll(r.Context())
	if err != nil {
		h.logger.Error("Ошибка загрузки списка изображений", slog.String("error", err.Error()))
		h.render(w, r, http.StatusOK, pages.Admin, data, MsgImagesLoadError)
		return
	}
	data.Images = images
	h.render(w, r, http.StatusOK, pages.Admin, data)
}

// HandleUpload — POST /admin/upload. Поле image обязательно, alt_text опционален.
func (h *AdminHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Превышен размер загрузки", slog.Int64("limit", tooLarge.Limit))
			h.redirect(w, r, session, adminPath, MsgImageTooLarge)
			return
		}
		h.redirect(w, r, session, adminPath, MsgChooseImage)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("image")
	if err != nil {
		h.redirect(w, r, session, adminPath, MsgChooseImage)
		return
	}
	defer file.Close()

	img, err := h.images.Upload(r.Context(), service.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		AltText:     r.FormValue("alt_text"),
	})
	switch {
	case err == nil:
		h.logger.Info("Изображение загружено администратором",
			slog.Int64("id", img.ID),
			slog.String("admin", session.AdminEmail),
		)
		h.redirect(w, r, session, adminPath, MsgUploadSuccess)
	case errors.Is(err, service.ErrNoFile):
		h.redirect(w, r, session, adminPath, MsgChooseImage)
	case errors.Is(err, service.ErrStorageNotConfigured):
		h.redirect(w, r, session, adminPath, MsgStorageNotConfigured)
	case errors.Is(err, service.ErrOrphanedObject):
		h.redirect(w, r, session, adminPath, MsgUploadOrphaned)
	default:
		h.logger.Error("Ошибка загрузки изображения", slog.String("error", err.Error()))
		h.redirect(w, r, session, adminPath, MsgUploadError)
	}
}

// HandleDelete — POST /admin/images/{id}/delete. Сначала объект, потом запись.
func (h *AdminHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	session := h.session(r)

	id, ok := imageID(r)
	if !ok {
		h.redirect(w, r, session, adminPath, MsgImageNotFound)
		return
	}

	result, err := h.images.Delete(r.Context(), id)
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.redirect(w, r, session, adminPath, MsgImageNotFound)
	case err != nil:
		h.logger.Error("Ошибка удаления изображения",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		h.redirect(w, r, session, adminPath, MsgImageDeleteError)
	case !result.ObjectDeleted:
		h.redirect(w, r, session, adminPath, MsgImageDeletedPartial)
	default:
		h.redirect(w, r, session, adminPath, MsgImageDeleted)
	}
}

// HandleDeactivate — POST /admin/images/{id}/deactivate.
func (h *AdminHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// HandleActivate — POST /admin/images/{id}/activate.
func (h *AdminHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	session := h.session(r)

	id, ok := imageID(r)
	if !ok {
		h.redirect(w, r, session, adminPath, MsgImageNotFound)
		return
	}

	err := h.images.SetActive(r.Context(), id, active)
	switch {
	case errors.Is(err, service.ErrNotFound):
		h.redirect(w, r, session, adminPath, MsgImageNotFound)
	case err != nil:
		h.logger.Error("Ошибка изменения видимости изображения",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		h.redirect(w, r, session, adminPath, MsgImageUpdateError)
	case active:
		h.redirect(w, r, session, adminPath, MsgImageShown)
	default:
		h.redirect(w, r, session, adminPath, MsgImageHidden)
	}
}

// imageID извлекает {id} из пути.
func imageID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
