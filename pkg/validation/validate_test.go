package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatstream/pkg/models"
)

func msg(role string, parts ...models.Part) models.Message {
	return models.Message{ID: "msg_t", Chat: "chat_t", Role: role, Parts: parts}
}

func TestValidateMessageDefaults(t *testing.T) {
	require.NoError(t, ValidateMessage(msg(models.RoleUser, models.TextPart("hi"))))
	require.NoError(t, ValidateMessage(msg(models.RoleAssistant, models.TextPart("hello"))))

	err := ValidateMessage(msg("robot", models.TextPart("hi")))
	require.ErrorContains(t, err, "invalid role")

	err = ValidateMessage(msg(models.RoleUser))
	require.ErrorContains(t, err, "no parts")

	err = ValidateMessage(msg(models.RoleUser, models.Part{Type: models.PartText}))
	require.ErrorContains(t, err, "empty text")

	err = ValidateMessage(msg(models.RoleUser, models.Part{Type: "audio"}))
	require.ErrorContains(t, err, "unknown type")

	err = ValidateMessage(msg(models.RoleUser, models.Part{Type: models.PartData}))
	require.ErrorContains(t, err, "empty data")

	require.NoError(t, ValidateMessage(msg(models.RoleUser,
		models.Part{Type: models.PartData, Data: json.RawMessage(`{"k":1}`)})))
}

func TestValidateMessageCustomRules(t *testing.T) {
	defer SetRules(Rules{
		Roles:    []string{models.RoleUser, models.RoleAssistant, models.RoleSystem},
		MaxParts: 64,
	})

	SetRules(Rules{MaxParts: 2, MaxTextBytes: 10, Required: []string{models.PartText}})

	// Any role passes when Roles is empty.
	require.NoError(t, ValidateMessage(msg("robot", models.TextPart("ok"))))

	err := ValidateMessage(msg(models.RoleUser,
		models.TextPart("a"), models.TextPart("b"), models.TextPart("c")))
	require.ErrorContains(t, err, "too many parts")

	err = ValidateMessage(msg(models.RoleUser, models.TextPart(strings.Repeat("x", 11))))
	require.ErrorContains(t, err, "text too large")

	err = ValidateMessage(msg(models.RoleUser,
		models.Part{Type: models.PartData, Data: json.RawMessage(`1`)}))
	require.ErrorContains(t, err, "missing required part")
}
