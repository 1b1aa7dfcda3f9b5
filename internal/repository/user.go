package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nordqvist/hnfweb/internal/domain/model"
)

// UserRepository — доступ к таблице person.
type UserRepository interface {
	// FindByEmail возвращает пользователя по email или ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Exists сообщает, зарегистрирован ли email.
	Exists(ctx context.Context, email string) (bool, error)
	// Create добавляет пользователя; на дубликат email возвращает ErrConflict.
	Create(ctx context.Context, email, passwordHash string) error
}

type userRepo struct {
	tx *TxRunner
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(tx *TxRunner) UserRepository {
	return &userRepo{tx: tx}
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT email, password FROM person WHERE email = $1`

	u := &model.User{}
	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		return tx.QueryRowContext(ctx, query, email).Scan(&u.Email, &u.PasswordHash)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) Exists(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (r *userRepo) Create(ctx context.Context, email, passwordHash string) error {
	query := `INSERT INTO person (email, password) VALUES ($1, $2)`

	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, query, email, passwordHash)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: email уже зарегистрирован", ErrConflict)
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}
