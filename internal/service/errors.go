// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrInvalidCredentials — неверный email или пароль (причина не уточняется).
	ErrInvalidCredentials = errors.New("неверный email или пароль")
	// ErrEmailTaken — email уже зарегистрирован.
	ErrEmailTaken = errors.New("email уже зарегистрирован")
	// ErrNoFile — файл для загрузки не выбран.
	ErrNoFile = errors.New("файл не выбран")
	// ErrStorageNotConfigured — объектное хранилище не настроено.
	ErrStorageNotConfigured = errors.New("объектное хранилище не настроено")
	// ErrOrphanedObject — объект загружен, но запись о нём не сохранена.
	ErrOrphanedObject = errors.New("объект загружен без записи в базе")
)

// ValidationError — ошибка валидации входных данных.
// Message показывается пользователю как есть.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// ErrReconcileInProgress — сверка уже выполняется.
var ErrReconcileInProgress = errors.New("сверка хранилища уже выполняется")
