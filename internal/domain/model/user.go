package model

// User — учётная запись администратора сайта.
// Хранится в таблице person.
type User struct {
	// Email — уникальный адрес, служит логином
	Email string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
}
