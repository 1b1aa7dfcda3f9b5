// images.go — загрузка, показ и удаление изображений галереи.
//
// Объект и запись пишутся без общей транзакции: сначала объект в бакет,
// затем запись в images. Расхождения ловит сверка (reconcile.go).
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nordqvist/hnfweb/internal/domain/model"
	"github.com/nordqvist/hnfweb/internal/objectstore"
	"github.com/nordqvist/hnfweb/internal/repository"
)

// Prometheus метрики изображений
var (
	imagesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hnf_images_uploaded_total",
		Help: "Количество успешно загруженных изображений",
	})

	// imagesOrphanedTotal — объекты, оставшиеся без записи (upload) или
	// без удаления (delete).
	imagesOrphanedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hnf_images_orphaned_total",
		Help: "Количество объектов, оставшихся в бакете без записи в базе",
	}, []string{"operation"})
)

// ObjectStore — операции объектного хранилища, нужные сервисам.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]objectstore.Object, error)
	PublicURL(key string) string
}

// Upload — загружаемый файл.
type Upload struct {
	// Filename — исходное имя файла (из него берётся только расширение)
	Filename    string
	ContentType string
	// Size — размер в байтах, -1 если неизвестен
	Size    int64
	Body    io.Reader
	AltText string
}

// DeleteResult — итог удаления изображения.
type DeleteResult struct {
	// ObjectDeleted — false, если объект в бакете удалить не удалось
	ObjectDeleted bool
}

// ImageService — бизнес-логика галереи.
type ImageService struct {
	images repository.ImageRepository
	store  ObjectStore
	folder string
	logger *slog.Logger
	newID  func() string
}

// NewImageService создаёт сервис изображений. store == nil означает,
// что хранилище не настроено: загрузка вернёт ErrStorageNotConfigured.
func NewImageService(images repository.ImageRepository, store ObjectStore, folder string, logger *slog.Logger) *ImageService {
	return &ImageService{
		images: images,
		store:  store,
		folder: strings.Trim(folder, "/"),
		logger: logger.With(slog.String("component", "image_service")),
		newID:  func() string { return uuid.New().String() },
	}
}

// StorageEnabled сообщает, настроено ли объектное хранилище.
func (s *ImageService) StorageEnabled() bool {
	return s.store != nil
}

// Upload загружает объект и затем создаёт запись.
// Если запись создать не удалось, объект остаётся в бакете и
// возвращается ErrOrphanedObject.
func (s *ImageService) Upload(ctx context.Context, up Upload) (*model.Image, error) {
	if s.store == nil {
		return nil, ErrStorageNotConfigured
	}
	if up.Body == nil || up.Filename == "" {
		return nil, ErrNoFile
	}

	filename := s.newID() + filepath.Ext(path.Base(up.Filename))
	key := s.folder + "/" + filename

	if err := s.store.Put(ctx, key, up.Body, up.Size, up.ContentType); err != nil {
		return nil, fmt.Errorf("ошибка загрузки в хранилище: %w", err)
	}

	img := &model.Image{
		Filename:  filename,
		ObjectKey: key,
		URL:       s.store.PublicURL(key),
	}
	if alt := strings.TrimSpace(up.AltText); alt != "" {
		img.AltText = &alt
	}

	if err := s.images.Create(ctx, img); err != nil {
		imagesOrphanedTotal.WithLabelValues("upload").Inc()
		s.logger.Error("Объект загружен, но запись не сохранена",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s: %v", ErrOrphanedObject, key, err)
	}

	imagesUploadedTotal.Inc()
	s.logger.Info("Изображение загружено",
		slog.Int64("id", img.ID),
		slog.String("key", key),
	)
	return img, nil
}

// ListActive возвращает изображения для публичной галереи.
func (s *ImageService) ListActive(ctx context.Context) ([]*model.Image, error) {
	images, err := s.images.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения галереи: %w", err)
	}
	return images, nil
}

// ListAll возвращает все изображения для админки.
func (s *ImageService) ListAll(ctx context.Context) ([]*model.Image, error) {
	images, err := s.images.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка изображений: %w", err)
	}
	return images, nil
}

// Delete удаляет объект, затем запись. Сбой удаления объекта
// логируется и не останавливает удаление записи.
func (s *ImageService) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	img, err := s.images.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	result := &DeleteResult{ObjectDeleted: true}
	if s.store == nil {
		result.ObjectDeleted = false
		s.logger.Warn("Хранилище не настроено, объект не удалён", slog.String("key", img.ObjectKey))
	} else if err := s.store.Delete(ctx, img.ObjectKey); err != nil {
		result.ObjectDeleted = false
		s.logger.Warn("Ошибка удаления объекта, запись будет удалена",
			slog.String("key", img.ObjectKey),
			slog.String("error", err.Error()),
		)
	}
	if !result.ObjectDeleted {
		imagesOrphanedTotal.WithLabelValues("delete").Inc()
	}

	if err := s.images.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка удаления записи: %w", err)
	}

	s.logger.Info("Изображение удалено",
		slog.Int64("id", id),
		slog.String("key", img.ObjectKey),
	)
	return result, nil
}

// SetActive скрывает изображение из галереи или возвращает его.
func (s *ImageService) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.images.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка изменения видимости: %w", err)
	}
	s.logger.Info("Видимость изображения изменена",
		slog.Int64("id", id),
		slog.Bool("active", active),
	)
	return nil
}
