package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordqvist/hnfweb/internal/service"
	"github.com/nordqvist/hnfweb/internal/testutil"
)

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"no args", nil, exitUsage, "Использование"},
		{"unknown", []string{"drop-db"}, exitUsage, "Неизвестная команда"},
		{"create-user without email", []string{"create-user"}, exitUsage, "Не задан -email"},
		{"bad flag", []string{"reconcile", "-force"}, exitUsage, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestRun_Help(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitOK, run(context.Background(), []string{"help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "create-user")
}

// Без HNF_SESSION_SECRET конфигурация не загружается.
func TestRun_ConfigError(t *testing.T) {
	t.Setenv("HNF_SESSION_SECRET", "")
	var stdout, stderr bytes.Buffer
	assert.Equal(t, exitError, run(context.Background(), []string{"migrate"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "HNF_SESSION_SECRET")
}

func stubPasswords(t *testing.T, answers ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("stdin закрыт")
		}
		a := answers[0]
		answers = answers[1:]
		return []byte(a), nil
	}
}

func TestPromptPasswords(t *testing.T) {
	stubPasswords(t, "password1", "password2")

	var out bytes.Buffer
	pw, repeat, err := promptPasswords(&out)
	require.NoError(t, err)
	assert.Equal(t, "password1", pw)
	assert.Equal(t, "password2", repeat)
	assert.Contains(t, out.String(), "Повторите пароль")
}

func TestPromptPasswords_ReadError(t *testing.T) {
	stubPasswords(t, "password1")

	_, _, err := promptPasswords(io.Discard)
	assert.Error(t, err)
}

func TestCreateUser(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := testutil.NewUserRepo()
	auth := service.NewAuthService(users, logger)

	var out bytes.Buffer
	require.NoError(t, createUser(context.Background(), auth, " admin@example.com ", "password1", "password1", &out))
	assert.Contains(t, out.String(), "admin@example.com создана")
	assert.Equal(t, 1, users.Count())

	// Повторное создание даёт понятное сообщение
	err := createUser(context.Background(), auth, "admin@example.com", "password1", "password1", io.Discard)
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, service.MsgEmailTaken, verr.Message)

	err = createUser(context.Background(), auth, "other@example.com", "short", "short", io.Discard)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, service.MsgPasswordShort, verr.Message)
	assert.Equal(t, 1, users.Count())
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &service.ReconcileReport{
		Duration:       1500 * time.Millisecond,
		ObjectsScanned: 3,
		RecordsScanned: 2,
		Orphaned:       []string{"inspiration/orphan.jpg"},
		Missing:        []string{"inspiration/missing.jpg"},
	})

	s := out.String()
	assert.Contains(t, s, "Объектов в бакете: 3")
	assert.Contains(t, s, "Осиротевшие объекты: 1")
	assert.Contains(t, s, "  inspiration/orphan.jpg")
	assert.Contains(t, s, "Записи без объекта: 1")
	assert.NotContains(t, s, "Удалено")
}
