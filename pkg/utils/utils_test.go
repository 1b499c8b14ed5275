package utils

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenIDsArePrefixedAndUnique(t *testing.T) {
	require.True(t, strings.HasPrefix(GenID(), "msg_"))
	require.True(t, strings.HasPrefix(GenChatID(), "chat_"))
	require.True(t, strings.HasPrefix(GenStreamID(), "strm_"))
	require.NotEqual(t, GenID(), GenID())
}

func TestJSONError(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONError(rec, 404, "nope")
	require.Equal(t, 404, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"error":"nope"}`, rec.Body.String())
}

func TestJSONWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONWrite(rec, 201, map[string]int{"n": 1})
	require.Equal(t, 201, rec.Code)
	require.JSONEq(t, `{"n":1}`, rec.Body.String())
}
