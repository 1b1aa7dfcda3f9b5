// Пакет auth — сессии сайта. Сессия целиком хранится в cookie
// и подписывается HMAC-SHA256 (JWT HS256); на сервере ничего не хранится.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Имя cookie сессии.
const SessionCookieName = "hnf_session"

// SessionData — данные сессии, хранящиеся в подписанном cookie.
type SessionData struct {
	// AdminLoggedIn — пользователь вошёл в админку.
	AdminLoggedIn bool `json:"admin_logged_in,omitempty"`
	// AdminEmail — email вошедшего администратора.
	AdminEmail string `json:"admin_email,omitempty"`
	// Flashes — сообщения, ожидающие показа на следующей странице.
	Flashes []string `json:"flashes,omitempty"`
}

// AddFlash добавляет сообщение для показа на следующей странице.
func (s *SessionData) AddFlash(msg string) {
	s.Flashes = append(s.Flashes, msg)
}

// PopFlashes возвращает ожидающие сообщения и очищает их.
func (s *SessionData) PopFlashes() []string {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// LogIn отмечает сессию как администраторскую.
func (s *SessionData) LogIn(email string) {
	s.AdminLoggedIn = true
	s.AdminEmail = email
}

// Reset очищает все данные сессии.
func (s *SessionData) Reset() {
	*s = SessionData{}
}

// IsEmpty — в сессии нечего хранить.
func (s *SessionData) IsEmpty() bool {
	return !s.AdminLoggedIn && s.AdminEmail == "" && len(s.Flashes) == 0
}

// sessionClaims — JWT-представление сессии.
type sessionClaims struct {
	SessionData
	jwt.RegisteredClaims
}

// SessionManager — подпись и проверка session cookie.
type SessionManager struct {
	key    []byte
	secure bool
	now    func() time.Time
}

// NewSessionManager создаёт менеджер сессий. secret обязателен.
func NewSessionManager(secret string, secure bool) (*SessionManager, error) {
	if secret == "" {
		return nil, errors.New("секрет подписи сессии не задан")
	}
	return &SessionManager{
		key:    []byte(secret),
		secure: secure,
		now:    time.Now,
	}, nil
}

// Encode подписывает SessionData и возвращает компактный JWT.
func (sm *SessionManager) Encode(data *SessionData) (string, error) {
	claims := sessionClaims{
		SessionData: *data,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(sm.now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.key)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи сессии: %w", err)
	}
	return token, nil
}

// Decode проверяет подпись и возвращает SessionData.
func (sm *SessionManager) Decode(value string) (*SessionData, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(value, claims,
		func(*jwt.Token) (any, error) { return sm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(sm.now),
	)
	if err != nil {
		return nil, fmt.Errorf("недействительная сессия: %w", err)
	}
	data := claims.SessionData
	return &data, nil
}

// Load извлекает сессию из запроса. Без cookie возвращается пустая сессия.
func (sm *SessionManager) Load(r *http.Request) (*SessionData, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return &SessionData{}, nil
		}
		return nil, err
	}
	return sm.Decode(cookie.Value)
}

// Save записывает сессию в ответ. Пустая сессия удаляет cookie.
// Cookie без MaxAge живёт до закрытия браузера.
func (sm *SessionManager) Save(w http.ResponseWriter, data *SessionData) error {
	if data.IsEmpty() {
		sm.Clear(w)
		return nil
	}

	value, err := sm.Encode(data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear удаляет session cookie.
func (sm *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
