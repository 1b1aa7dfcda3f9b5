// auth.go — вход и регистрация администраторов.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/nordqvist/hnfweb/internal/domain/model"
	"github.com/nordqvist/hnfweb/internal/repository"
)

// Сообщения валидации, показываемые пользователю.
const (
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgPasswordTwice    = "Please enter the password twice."
	MsgPasswordMismatch = "Passwords do not match!"
	MsgPasswordShort    = "Password must be at least 8 characters long."
	MsgPasswordLong     = "Password must be at most 72 bytes long."
	MsgEmailTaken       = "Email address is already registered."
)

// MinPasswordLength — минимальная длина пароля в символах.
const MinPasswordLength = 8

// maxPasswordBytes — предел bcrypt.
const maxPasswordBytes = 72

// dummyHash сравнивается с паролем, когда пользователь не найден,
// чтобы время ответа не выдавало существование email.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("hnf-timing-equalizer"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt: %v", err))
	}
	return h
})

// AuthService — проверка учётных данных и создание учётных записей.
type AuthService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAuthService создаёт сервис аутентификации.
func NewAuthService(users repository.UserRepository, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// Login проверяет email и пароль.
// Неизвестный email и неверный пароль дают одну и ту же ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid(MsgInvalidEmail)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			s.logger.Info("Неудачная попытка входа", slog.String("email", email))
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Неудачная попытка входа", slog.String("email", email))
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("Администратор вошёл", slog.String("email", email))
	return user, nil
}

// Register создаёт учётную запись после проверки формы.
func (s *AuthService) Register(ctx context.Context, email, password, passwordRepeat string) error {
	email, password, err := ValidateRegistration(email, password, passwordRepeat)
	if err != nil {
		return err
	}

	// Быстрая проверка для понятного сообщения; источник истины: UNIQUE в БД
	exists, err := s.users.Exists(ctx, email)
	if err != nil {
		return fmt.Errorf("ошибка проверки email: %w", err)
	}
	if exists {
		return ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	if err := s.users.Create(ctx, email, hash); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrEmailTaken
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	s.logger.Info("Создана учётная запись администратора", slog.String("email", email))
	return nil
}

// ValidateRegistration проверяет поля формы регистрации в фиксированном порядке
// и возвращает очищенные email и пароль.
func ValidateRegistration(email, password, passwordRepeat string) (string, string, error) {
	email = strings.TrimSpace(email)
	password = strings.TrimSpace(password)
	passwordRepeat = strings.TrimSpace(passwordRepeat)

	switch {
	case email == "":
		return "", "", invalid(MsgInvalidEmail)
	case password == "" || passwordRepeat == "":
		return "", "", invalid(MsgPasswordTwice)
	case password != passwordRepeat:
		return "", "", invalid(MsgPasswordMismatch)
	case len([]rune(password)) < MinPasswordLength:
		return "", "", invalid(MsgPasswordShort)
	case len(password) > maxPasswordBytes:
		return "", "", invalid(MsgPasswordLong)
	}
	return email, password, nil
}

// HashPassword возвращает bcrypt-хэш пароля.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("ошибка хэширования пароля: %w", err)
	}
	return string(hash), nil
}
