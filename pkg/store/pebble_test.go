package store

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"chatstream/pkg/models"
)

func openTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, Open(t.TempDir()))
	t.Cleanup(func() { Close() })
}

func TestChatRoundTrip(t *testing.T) {
	openTestDB(t)

	ch := models.Chat{ID: "chat_1", Title: "hello", Author: "u1", CreatedTS: 1, UpdatedTS: 1}
	b, _ := json.Marshal(ch)
	require.NoError(t, SaveChat(ch.ID, string(b)))

	got, err := GetChat(ch.ID)
	require.NoError(t, err)
	var back models.Chat
	require.NoError(t, json.Unmarshal([]byte(got), &back))
	require.Equal(t, ch, back)

	rows, err := ListChats()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestMessagesListInOrder(t *testing.T) {
	openTestDB(t)

	for i := 0; i < 10; i++ {
		m := models.Message{
			ID:    fmt.Sprintf("msg_%d", i),
			Chat:  "chat_1",
			Role:  models.RoleUser,
			Parts: []models.Part{models.TextPart(fmt.Sprintf("turn %d", i))},
		}
		b, _ := json.Marshal(m)
		require.NoError(t, SaveMessage("chat_1", m.ID, string(b)))
	}

	rows, err := ListMessages("chat_1")
	require.NoError(t, err)
	require.Len(t, rows, 10)
	for i, row := range rows {
		var m models.Message
		require.NoError(t, json.Unmarshal([]byte(row), &m))
		require.Equal(t, fmt.Sprintf("msg_%d", i), m.ID)
	}

	limited, err := ListMessages("chat_1", 3)
	require.NoError(t, err)
	require.Len(t, limited, 3)
}

func TestMessageVersions(t *testing.T) {
	openTestDB(t)

	for i := 0; i < 3; i++ {
		m := models.Message{ID: "msg_a", Chat: "chat_1", Role: models.RoleUser,
			Parts: []models.Part{models.TextPart(fmt.Sprintf("v%d", i))}}
		b, _ := json.Marshal(m)
		require.NoError(t, SaveMessage("chat_1", m.ID, string(b)))
	}

	vers, err := ListMessageVersions("msg_a")
	require.NoError(t, err)
	require.Len(t, vers, 3)

	latest, err := GetLatestMessage("msg_a")
	require.NoError(t, err)
	var m models.Message
	require.NoError(t, json.Unmarshal([]byte(latest), &m))
	require.Equal(t, "v2", m.Text())

	_, err = GetLatestMessage("msg_missing")
	require.Error(t, err)
}

func TestSoftDeleteChat(t *testing.T) {
	openTestDB(t)

	ch := models.Chat{ID: "chat_del", Title: "bye", Author: "u1"}
	b, _ := json.Marshal(ch)
	require.NoError(t, SaveChat(ch.ID, string(b)))
	require.NoError(t, SoftDeleteChat(ch.ID, "admin"))

	got, err := GetChat(ch.ID)
	require.NoError(t, err)
	var back models.Chat
	require.NoError(t, json.Unmarshal([]byte(got), &back))
	require.True(t, back.Deleted)
	require.NotZero(t, back.DeletedTS)

	// Tombstone message was appended.
	rows, err := ListMessages(ch.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var tomb models.Message
	require.NoError(t, json.Unmarshal([]byte(rows[0]), &tomb))
	require.True(t, tomb.Deleted)
	require.Equal(t, models.RoleSystem, tomb.Role)
}

func TestStreamRecords(t *testing.T) {
	openTestDB(t)

	rec := models.StreamRecord{ID: "strm_1", Chat: "chat_1"}
	require.NoError(t, AppendStream(rec))

	got, err := GetStream("strm_1")
	require.NoError(t, err)
	require.Equal(t, models.StreamActive, got.Status)
	require.NotZero(t, got.CreatedTS)

	got.Status = models.StreamDone
	got.Message = "msg_9"
	require.NoError(t, UpdateStream(got))

	again, err := GetStream("strm_1")
	require.NoError(t, err)
	require.Equal(t, models.StreamDone, again.Status)
	require.Equal(t, "msg_9", again.Message)

	// The chat-scoped list reflects the current status doc.
	list, err := ListStreams("chat_1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, models.StreamDone, list[0].Status)
}

func TestLatestActiveStream(t *testing.T) {
	openTestDB(t)

	require.NoError(t, AppendStream(models.StreamRecord{ID: "strm_a", Chat: "chat_x"}))
	done, err := GetStream("strm_a")
	require.NoError(t, err)
	done.Status = models.StreamDone
	require.NoError(t, UpdateStream(done))

	_, found, err := LatestActiveStream("chat_x")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, AppendStream(models.StreamRecord{ID: "strm_b", Chat: "chat_x"}))
	rec, found, err := LatestActiveStream("chat_x")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "strm_b", rec.ID)
}

func TestKeyHelpers(t *testing.T) {
	openTestDB(t)

	require.NoError(t, SaveKey("misc:a", []byte("1")))
	require.NoError(t, SaveKey("misc:b", []byte("2")))

	keys, err := ListKeys("misc:")
	require.NoError(t, err)
	require.Equal(t, []string{"misc:a", "misc:b"}, keys)

	v, err := GetKey("misc:a")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	require.NoError(t, DeleteKey("misc:a"))
	_, err = GetKey("misc:a")
	require.Error(t, err)
}
