package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"chatstream/pkg/auth"
	"chatstream/pkg/logger"
	"chatstream/pkg/metrics"
	"chatstream/pkg/models"
	"chatstream/pkg/store"
	"chatstream/pkg/utils"
	"chatstream/pkg/validation"
)

// AppendMessage handles POST /v1/chats/{id}/messages. Accepts either a
// typed parts payload or a plain {"content": "..."} shorthand.
func AppendMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	author, err := auth.ResolveAuthorFromRequest(r)
	if err != nil {
		utils.JSONError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if _, err := liveChat(chatID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}

	var in struct {
		ID      string        `json:"id"`
		Role    string        `json:"role"`
		Parts   []models.Part `json:"parts"`
		Content string        `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	msg := models.Message{
		ID:    in.ID,
		Chat:  chatID,
		Role:  in.Role,
		Parts: in.Parts,
		TS:    time.Now().UTC().UnixNano(),
	}
	if msg.ID == "" {
		msg.ID = utils.GenID()
	} else if err := validID(msg.ID); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg.Role == "" {
		msg.Role = models.RoleUser
	}
	if len(msg.Parts) == 0 && in.Content != "" {
		msg.Parts = []models.Part{models.TextPart(in.Content)}
	}
	if err := validation.ValidateMessage(msg); err != nil {
		utils.JSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, _ := json.Marshal(msg)
	if err := store.SaveMessage(chatID, msg.ID, string(b)); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to save message")
		return
	}
	metrics.MessagesAppended.Inc()
	logger.Debug("message_appended", "chat", chatID, "msg", msg.ID, "author", author)
	utils.JSONWrite(w, http.StatusCreated, msg)
}

// ListChatMessages handles GET /v1/chats/{id}/messages?limit=n. Returns
// messages in insertion order; tombstoned messages are omitted.
func ListChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["id"]
	if _, err := store.GetChat(chatID); err != nil {
		utils.JSONError(w, http.StatusNotFound, "chat not found")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			utils.JSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := store.ListMessages(chatID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	// Rows are versions; keep the latest per message id, in first-seen order.
	order := make([]string, 0, len(rows))
	latest := make(map[string]models.Message, len(rows))
	for _, row := range rows {
		var m models.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			logger.Warn("message_unmarshal_failed", "chat", chatID, "error", err)
			continue
		}
		if _, seen := latest[m.ID]; !seen {
			order = append(order, m.ID)
		}
		latest[m.ID] = m
	}
	out := make([]models.Message, 0, len(order))
	for _, id := range order {
		m := latest[id]
		if m.Deleted {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"chat": chatID, "messages": out})
}

// GetMessage handles GET /v1/messages/{id}: the latest version.
func GetMessage(w http.ResponseWriter, r *http.Request) {
	msgID := mux.Vars(r)["id"]
	row, err := store.GetLatestMessage(msgID)
	if err != nil {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	var m models.Message
	if err := json.Unmarshal([]byte(row), &m); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "corrupt message record")
		return
	}
	utils.JSONWrite(w, http.StatusOK, m)
}

// ListMessageVersions handles GET /v1/messages/{id}/versions.
func ListMessageVersions(w http.ResponseWriter, r *http.Request) {
	msgID := mux.Vars(r)["id"]
	rows, err := store.ListMessageVersions(msgID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, "failed to list versions")
		return
	}
	if len(rows) == 0 {
		utils.JSONError(w, http.StatusNotFound, "message not found")
		return
	}
	out := make([]models.Message, 0, len(rows))
	for _, row := range rows {
		var m models.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"id": msgID, "versions": out})
}
