package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/services/logger"
)

func TestConsoleServiceMock(t *testing.T) {
	logger := logsvc.NewNopLogger()
	core.ParseEmailTemplates(logger, true)
	svc := NewConsoleServiceMock(core.NewTestConfig(), logger)

	to := []mail.Address{{Name: "Ada", Address: "ada@test.cd"}}
	svc.SendMessages(
		&core.EmailMessage{To: to, Subject: "plain", BodyStr: "hello"},
		&core.EmailMessage{To: to, Subject: "welcome", TemplateName: "welcome", TemplateData: map[string]interface{}{
			"TenantName": "Acme", "Name": "Ada", "Username": "ada",
		}},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "lost"},
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "hello", sent[0].TextContent)
	assert.Contains(t, sent[1].TextContent, "Acme")
	assert.NotEmpty(t, sent[1].HTMLContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}

func TestConsoleService_format(t *testing.T) {
	svc := &consoleService{from: mail.Address{Name: "Darasa", Address: "noreply@darasa.test"}, subjPrefix: "[Darasa] "}
	out, err := svc.format(core.EmailMessage{
		To:          []mail.Address{{Address: "a@test.cd"}},
		Subject:     "Hi",
		TextContent: "text body",
		HTMLContent: "<p>html body</p>",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "From: \"Darasa\" <noreply@darasa.test>\r\n"))
	assert.Contains(t, out, "Subject: [Darasa] Hi\r\n")
	assert.Contains(t, out, "text body")
	assert.Contains(t, out, "<p>html body</p>")
	assert.NotContains(t, out, "CC:")
}
