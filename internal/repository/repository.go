// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через database/sql (драйвер pgx), без ORM.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — конфликт уникальности (дублирующийся ресурс).
	ErrConflict = errors.New("конфликт: запись уже существует")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется *sql.DB, *sql.Conn и *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner выполняет единицу работы на выделенном соединении:
// взять соединение, открыть транзакцию, закоммитить или откатить,
// вернуть соединение. Соединение не переживает вызов RunInTx.
type TxRunner struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTxRunner создаёт TxRunner для управления транзакциями.
func NewTxRunner(db *sql.DB, logger *slog.Logger) *TxRunner {
	return &TxRunner{
		db:     db,
		logger: logger.With(slog.String("component", "tx_runner")),
	}
}

// RunInTx выполняет fn внутри транзакции на выделенном соединении.
// При ошибке или панике fn выполняется откат (паника пробрасывается дальше),
// иначе коммит. Ошибки отката только логируются.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) (err error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("ошибка получения соединения: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			r.logger.Warn("Ошибка возврата соединения в пул", slog.String("error", cerr.Error()))
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.rollback(tx)
			panic(p)
		}
		if err != nil {
			r.rollback(tx)
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("ошибка коммита транзакции: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}

func (r *TxRunner) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		r.logger.Error("Ошибка отката транзакции", slog.String("error", err.Error()))
	}
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности PostgreSQL.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
