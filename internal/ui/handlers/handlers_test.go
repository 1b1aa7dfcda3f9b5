package handlers

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Все обработчики UI помечают логи компонентом в одном формате.
func TestHandlerComponentNames(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	tests := []struct {
		component string
		logger    *slog.Logger
	}{
		{"ui_pages", NewPagesHandler(nil, nil, logger).logger},
		{"ui_auth", NewAuthHandler(nil, nil, logger).logger},
		{"ui_contact", NewContactHandler(nil, nil, logger).logger},
		{"ui_admin", NewAdminHandler(nil, 1<<20, nil, logger).logger},
	}
	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			buf.Reset()
			tt.logger.Info("проверка")
			assert.Contains(t, buf.String(), `"component":"`+tt.component+`"`)
		})
	}
}
