package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/gorilla/mux"

	"chatstream/pkg/auth"
	"chatstream/pkg/logger"
	"chatstream/pkg/models"
	"chatstream/pkg/store"
	"chatstream/pkg/telemetry"
	"chatstream/pkg/utils"
)

// liveChat loads a chat, treating soft-deleted ones as missing. Writes and
// new generations must go through this rather than store.GetChat, which
// still returns tombstoned records.
func liveChat(id string) (models.Chat, error) {
	row, err := store.GetChat(id)
	if err != nil {
		return models.Chat{}, err
	}
	var ch models.Chat
	if err := json.Unmarshal([]byte(row), &ch); err != nil {
		return models.Chat{}, fmt.Errorf("corrupt chat record: %w", err)
	}
	if ch.Deleted {
		return models.Chat{}, pebble.ErrNotFound
	}
	return ch, nil
}

// validID rejects client-supplied ids that would collide with the store's
// colon-delimited key namespaces.
func validID(id string) error {
	if strings.Contains(id, ":") {
		return fmt.Errorf("id must not contain ':'")
	}
	return nil
}

// CreateChat handles POST /v1/chats.
func CreateChat(w http.ResponseWriter, r *http.Request) {
	author, err := auth.ResolveAuthorFromRequest(r)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if r.Body != nil {
		// Empty body is fine; a chat needs no initial fields.
		_ = json.NewDecoder(r.Body).Decode(&in)
	}
	id := in.ID
	if id == "" {
		id = utils.GenChatID()
	} else if err := validID(id); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := time.Now().UTC().UnixNano()
	ch := models.Chat{ID: id, Title: in.Title, Author: author, CreatedTS: now, UpdatedTS: now}
	b, _ := json.Marshal(ch)
	if err := store.SaveChat(id, string(b)); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to save chat")
		return
	}
	telemetry.SetSpanData(r.Context(), "chat", id)
	logger.Info("chat_created", "chat", id, "author", author)
	utils.JSONWrite(w, http.StatusCreated, ch)
}

// ListChats handles GET /v1/chats. Deleted chats are omitted unless
// include_deleted=1 is passed by a backend caller.
func ListChats(w http.ResponseWriter, r *http.Request) {
	rows, err := store.ListChats()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to list chats")
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "1" &&
		auth.RoleFromContext(r.Context()) >= auth.RoleBackend
	out := make([]models.Chat, 0, len(rows))
	for _, row := range rows {
		var ch models.Chat
		if err := json.Unmarshal([]byte(row), &ch); err != nil {
			continue
		}
		if ch.Deleted && !includeDeleted {
			continue
		}
		out = append(out, ch)
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"chats": out})
}

// GetChat handles GET /v1/chats/{id}.
func GetChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	row, err := store.GetChat(id)
	if err != nil {
		if err == pebble.ErrNotFound {
			utils.JSONError(w, http.StatusNotFound, "chat not found")
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, "failed to load chat")
		return
	}
	var ch models.Chat
	if err := json.Unmarshal([]byte(row), &ch); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "corrupt chat record")
		return
	}
	if ch.Deleted {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	utils.JSONWrite(w, http.StatusOK, ch)
}

// UpdateChat handles PUT /v1/chats/{id}. Only the title is mutable.
func UpdateChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ch, err := liveChat(id)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	ch.Title = in.Title
	ch.UpdatedTS = time.Now().UTC().UnixNano()
	b, _ := json.Marshal(ch)
	if err := store.SaveChat(id, string(b)); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to save chat")
		return
	}
	utils.JSONWrite(w, http.StatusOK, ch)
}

// DeleteChat handles DELETE /v1/chats/{id}. Deletion is soft: the chat is
// tombstoned and its messages stay for audit.
func DeleteChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	author, err := auth.ResolveAuthorFromRequest(r)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := liveChat(id); err != nil {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	if err := store.SoftDeleteChat(id, author); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}
