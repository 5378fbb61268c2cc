package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uzielB/backend-sistemagem-sub000/core"
	logsvc "github.com/uzielB/backend-sistemagem-sub000/services/logger"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	logger := logsvc.NewDiscardLogger()
	core.ParseEmailTemplates(logger)
	svc := NewConsoleServiceMock(core.NewTestConfig(), logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Juan Pérez", Address: "juan@example.com"}},
			Subject:      "Restablecer contraseña",
			TemplateName: "password_reset",
			TemplateData: map[string]interface{}{"Name": "Juan Pérez", "UID": "MQ", "Token": "abc-123"},
		},
		&core.EmailMessage{Subject: "no recipients", BodyStr: "hola"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "http://localhost:3000/password-reset/MQ/abc-123")
	assert.Contains(t, sent[0].HTMLContent, "Juan Pérez")

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
