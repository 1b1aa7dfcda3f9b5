// hnfctl — утилита оператора сайта HNF.
//
//	hnfctl migrate                      применить миграции БД
//	hnfctl create-user -email <email>   создать учётную запись администратора
//	hnfctl reconcile [-delete-orphans]  сверить бакет с таблицей images
//
// Конфигурация та же, что у hnfweb: переменные окружения HNF_* и .env.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nordqvist/hnfweb/internal/config"
	"github.com/nordqvist/hnfweb/internal/database"
	"github.com/nordqvist/hnfweb/internal/objectstore"
	"github.com/nordqvist/hnfweb/internal/repository"
	"github.com/nordqvist/hnfweb/internal/service"
)

// Коды завершения.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const usage = `Использование:
  hnfctl migrate
  hnfctl create-user -email <email>
  hnfctl reconcile [-delete-orphans]
`

// readPassword читает пароль без эха. Подменяется в тестах.
var readPassword = term.ReadPassword

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	cmd, cmdArgs := args[0], args[1:]
	switch cmd {
	case "migrate", "create-user", "reconcile":
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Неизвестная команда %q\n\n%s", cmd, usage)
		return exitUsage
	}

	// Флаги разбираются до подключения к БД
	var email string
	var deleteOrphans bool
	fs := flag.NewFlagSet("hnfctl "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	switch cmd {
	case "create-user":
		fs.StringVar(&email, "email", "", "email администратора")
	case "reconcile":
		fs.BoolVar(&deleteOrphans, "delete-orphans", false, "удалить осиротевшие объекты из бакета")
	}
	if err := fs.Parse(cmdArgs); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if cmd == "create-user" && strings.TrimSpace(email) == "" {
		fmt.Fprintln(stderr, "Не задан -email")
		return exitUsage
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "Ошибка загрузки .env: %v\n", err)
		return exitError
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Ошибка загрузки конфигурации: %v\n", err)
		return exitError
	}
	logger := config.SetupLogger(cfg)

	switch cmd {
	case "migrate":
		err = database.Migrate(cfg, logger)
	case "create-user":
		err = runCreateUser(ctx, cfg, logger, email, stdout)
	case "reconcile":
		err = runReconcile(ctx, cfg, logger, deleteOrphans || cfg.ReconcileDeleteOrphans, stdout)
	}
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			fmt.Fprintln(stderr, verr.Message)
		} else {
			fmt.Fprintf(stderr, "Ошибка: %v\n", err)
		}
		return exitError
	}
	return exitOK
}

func runCreateUser(ctx context.Context, cfg *config.Config, logger *slog.Logger, email string, stdout io.Writer) error {
	// Пароль проверяется до подключения к БД
	password, repeat, err := promptPasswords(stdout)
	if err != nil {
		return err
	}
	if _, _, err := service.ValidateRegistration(email, password, repeat); err != nil {
		return err
	}

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repository.NewUserRepository(repository.NewTxRunner(db, logger))
	return createUser(ctx, service.NewAuthService(users, logger), email, password, repeat, stdout)
}

// createUser регистрирует администратора и печатает результат.
func createUser(ctx context.Context, auth *service.AuthService, email, password, repeat string, stdout io.Writer) error {
	if err := auth.Register(ctx, email, password, repeat); err != nil {
		if errors.Is(err, service.ErrEmailTaken) {
			return &service.ValidationError{Message: service.MsgEmailTaken}
		}
		return err
	}
	fmt.Fprintf(stdout, "Учётная запись %s создана\n", strings.TrimSpace(email))
	return nil
}

// promptPasswords запрашивает пароль дважды без эха.
func promptPasswords(stdout io.Writer) (string, string, error) {
	fmt.Fprint(stdout, "Пароль: ")
	password, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stdout)
	if err != nil {
		return "", "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}

	fmt.Fprint(stdout, "Повторите пароль: ")
	repeat, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stdout)
	if err != nil {
		return "", "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	return string(password), string(repeat), nil
}

func runReconcile(ctx context.Context, cfg *config.Config, logger *slog.Logger, deleteOrphans bool, stdout io.Writer) error {
	if !cfg.StorageEnabled() {
		return service.ErrStorageNotConfigured
	}

	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		PublicURL:       cfg.S3PublicURL,
	}, logger)
	if err != nil {
		return err
	}

	images := repository.NewImageRepository(repository.NewTxRunner(db, logger))
	rs := service.NewReconcileService(images, store, service.ReconcileOptions{
		Folder:        cfg.S3Folder,
		Grace:         cfg.ReconcileGrace,
		DeleteOrphans: deleteOrphans,
	}, logger)

	report, err := rs.RunOnce(ctx)
	if err != nil {
		return err
	}
	printReport(stdout, report)
	return nil
}

// printReport печатает отчёт сверки в человекочитаемом виде.
func printReport(w io.Writer, r *service.ReconcileReport) {
	fmt.Fprintf(w, "Объектов в бакете: %d\n", r.ObjectsScanned)
	fmt.Fprintf(w, "Записей в базе:    %d\n", r.RecordsScanned)
	fmt.Fprintf(w, "Длительность:      %s\n", r.Duration)

	printKeys(w, "Осиротевшие объекты", r.Orphaned)
	printKeys(w, "Записи без объекта", r.Missing)
	if len(r.Deleted) > 0 {
		printKeys(w, "Удалено", r.Deleted)
	}
}

func printKeys(w io.Writer, title string, keys []string) {
	fmt.Fprintf(w, "%s: %d\n", title, len(keys))
	for _, k := range keys {
		fmt.Fprintf(w, "  %s\n", k)
	}
}
