// Пакет testutil — in-memory реализации репозиториев, хранилища и
// отправителя писем для unit-тестов сервисов и обработчиков.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nordqvist/hnfweb/internal/domain/model"
	"github.com/nordqvist/hnfweb/internal/mailer"
	"github.com/nordqvist/hnfweb/internal/objectstore"
	"github.com/nordqvist/hnfweb/internal/repository"
)

// --- Пользователи ---

// UserRepo — in-memory repository.UserRepository.
type UserRepo struct {
	mu    sync.Mutex
	users map[string]string
	// Err — если задана, возвращается из каждого метода
	Err error
}

// NewUserRepo создаёт пустой репозиторий пользователей.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: map[string]string{}}
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	hash, ok := r.users[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.User{Email: email, PasswordHash: hash}, nil
}

func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *UserRepo) Create(_ context.Context, email, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if _, ok := r.users[email]; ok {
		return repository.ErrConflict
	}
	r.users[email] = passwordHash
	return nil
}

// Count возвращает число пользователей.
func (r *UserRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// --- Изображения ---

// ImageRepo — in-memory repository.ImageRepository.
type ImageRepo struct {
	mu     sync.Mutex
	nextID int64
	images map[int64]*model.Image
	clock  time.Time
	// CreateErr — если задана, Create завершается с ошибкой
	CreateErr error
}

// NewImageRepo создаёт пустой репозиторий изображений.
func NewImageRepo() *ImageRepo {
	return &ImageRepo{
		images: map[int64]*model.Image{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *ImageRepo) Create(_ context.Context, img *model.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CreateErr != nil {
		return r.CreateErr
	}
	for _, existing := range r.images {
		if existing.ObjectKey == img.ObjectKey {
			return repository.ErrConflict
		}
	}
	r.nextID++
	// Каждая следующая запись строго новее предыдущей
	r.clock = r.clock.Add(time.Second)
	img.ID = r.nextID
	img.CreatedAt = r.clock
	img.IsActive = true
	stored := *img
	r.images[img.ID] = &stored
	return nil
}

func (r *ImageRepo) GetByID(_ context.Context, id int64) (*model.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *img
	return &cp, nil
}

func (r *ImageRepo) ListActive(_ context.Context) ([]*model.Image, error) {
	return r.list(true), nil
}

func (r *ImageRepo) ListAll(_ context.Context) ([]*model.Image, error) {
	return r.list(false), nil
}

func (r *ImageRepo) list(activeOnly bool) []*model.Image {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*model.Image
	for _, img := range r.images {
		if activeOnly && !img.IsActive {
			continue
		}
		cp := *img
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (r *ImageRepo) SetActive(_ context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return repository.ErrNotFound
	}
	img.IsActive = active
	return nil
}

func (r *ImageRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.images, id)
	return nil
}

func (r *ImageRepo) ListObjectKeys(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.images))
	for _, img := range r.images {
		keys = append(keys, img.ObjectKey)
	}
	sort.Strings(keys)
	return keys, nil
}

// --- Объектное хранилище ---

// StoredObject — объект в ObjectStore.
type StoredObject struct {
	Data         []byte
	ContentType  string
	LastModified time.Time
}

// ObjectStore — in-memory объектное хранилище.
type ObjectStore struct {
	mu      sync.Mutex
	objects map[string]StoredObject
	// PutErr, DeleteErr — если заданы, соответствующие операции завершаются с ошибкой
	PutErr    error
	DeleteErr error
	// Now — время, проставляемое новым объектам
	Now func() time.Time
}

// NewObjectStore создаёт пустое хранилище.
func NewObjectStore() *ObjectStore {
	return &ObjectStore{
		objects: map[string]StoredObject{},
		Now:     time.Now,
	}
}

func (s *ObjectStore) Put(_ context.Context, key string, body io.Reader, _ int64, contentType string) error {
	if s.PutErr != nil {
		return s.PutErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = StoredObject{Data: buf.Bytes(), ContentType: contentType, LastModified: s.Now()}
	return nil
}

func (s *ObjectStore) Delete(_ context.Context, key string) error {
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *ObjectStore) List(_ context.Context, prefix string) ([]objectstore.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []objectstore.Object
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			result = append(result, objectstore.Object{Key: k, Size: int64(len(v.Data)), LastModified: v.LastModified})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (s *ObjectStore) PublicURL(key string) string {
	return "https://cdn.test/" + key
}

// PutObject кладёт объект напрямую, минуя Put.
func (s *ObjectStore) PutObject(key string, obj StoredObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = obj
}

// Get возвращает объект по ключу.
func (s *ObjectStore) Get(key string) (StoredObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

// Keys возвращает отсортированные ключи всех объектов.
func (s *ObjectStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Почта ---

// Mailer — отправитель, запоминающий письма.
type Mailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	// Err — если задана, Send завершается с ошибкой
	Err error
}

func (m *Mailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// Sent возвращает копию отправленных писем.
func (m *Mailer) Sent() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}
