package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nordqvist/hnfweb/internal/domain/model"
)

// ImageRepository — доступ к таблице images.
type ImageRepository interface {
	// Create вставляет запись; заполняет ID, CreatedAt и IsActive.
	Create(ctx context.Context, img *model.Image) error
	// GetByID возвращает запись по ID или ErrNotFound.
	GetByID(ctx context.Context, id int64) (*model.Image, error)
	// ListActive возвращает видимые изображения, новые первыми.
	ListActive(ctx context.Context) ([]*model.Image, error)
	// ListAll возвращает все изображения, новые первыми.
	ListAll(ctx context.Context) ([]*model.Image, error)
	// SetActive меняет флаг видимости (мягкое удаление / восстановление).
	SetActive(ctx context.Context, id int64, active bool) error
	// Delete удаляет запись физически.
	Delete(ctx context.Context, id int64) error
	// ListObjectKeys возвращает ключи объектов всех записей.
	ListObjectKeys(ctx context.Context) ([]string, error)
}

type imageRepo struct {
	tx *TxRunner
}

// NewImageRepository создаёт репозиторий изображений.
func NewImageRepository(tx *TxRunner) ImageRepository {
	return &imageRepo{tx: tx}
}

const imageColumns = `id, filename, r2_key, url, alt_text, created_at, is_active`

func (r *imageRepo) Create(ctx context.Context, img *model.Image) error {
	query := `
		INSERT INTO images (filename, r2_key, url, alt_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, is_active`

	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		return tx.QueryRowContext(ctx, query,
			img.Filename, img.ObjectKey, img.URL, img.AltText,
		).Scan(&img.ID, &img.CreatedAt, &img.IsActive)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: ключ %s уже зарегистрирован", ErrConflict, img.ObjectKey)
		}
		return fmt.Errorf("ошибка создания записи изображения: %w", err)
	}
	return nil
}

func (r *imageRepo) GetByID(ctx context.Context, id int64) (*model.Image, error) {
	query := `SELECT ` + imageColumns + ` FROM images WHERE id = $1`

	img := &model.Image{}
	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		return scanImage(tx.QueryRowContext(ctx, query, id), img)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения изображения: %w", err)
	}
	return img, nil
}

func (r *imageRepo) ListActive(ctx context.Context) ([]*model.Image, error) {
	return r.list(ctx, `SELECT `+imageColumns+` FROM images WHERE is_active = TRUE ORDER BY created_at DESC`)
}

func (r *imageRepo) ListAll(ctx context.Context) ([]*model.Image, error) {
	return r.list(ctx, `SELECT `+imageColumns+` FROM images ORDER BY created_at DESC`)
}

func (r *imageRepo) list(ctx context.Context, query string) ([]*model.Image, error) {
	var result []*model.Image
	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			img := &model.Image{}
			if err := scanImage(rows, img); err != nil {
				return err
			}
			result = append(result, img)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка изображений: %w", err)
	}
	return result, nil
}

func (r *imageRepo) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE images SET is_active = $2 WHERE id = $1`
	return r.execAffectingOne(ctx, "ошибка обновления изображения", query, id, active)
}

func (r *imageRepo) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM images WHERE id = $1`
	return r.execAffectingOne(ctx, "ошибка удаления изображения", query, id)
}

// execAffectingOne выполняет запрос, который должен затронуть ровно одну запись.
func (r *imageRepo) execAffectingOne(ctx context.Context, errMsg, query string, args ...any) error {
	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("%s: %w", errMsg, err)
	}
	return nil
}

func (r *imageRepo) ListObjectKeys(ctx context.Context) ([]string, error) {
	query := `SELECT r2_key FROM images`

	var keys []string
	err := r.tx.RunInTx(ctx, func(ctx context.Context, tx DBTX) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ключей объектов: %w", err)
	}
	return keys, nil
}

// rowScanner — общий интерфейс *sql.Row и *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(s rowScanner, img *model.Image) error {
	var alt sql.NullString
	if err := s.Scan(&img.ID, &img.Filename, &img.ObjectKey, &img.URL,
		&alt, &img.CreatedAt, &img.IsActive); err != nil {
		return err
	}
	if alt.Valid {
		img.AltText = &alt.String
	} else {
		img.AltText = nil
	}
	return nil
}
