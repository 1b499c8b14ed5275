package handlers

import (
	"encoding/json"
	"net/http"

	"chatstream/pkg/auth"
	"chatstream/pkg/utils"
)

// SignUser handles POST /v1/sign. A backend caller exchanges a user ID for
// the HMAC signature that frontend clients must present alongside
// X-User-ID. The caller's own API key is the signing key.
func SignUser(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.UserID == "" {
		utils.JSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	key := auth.KeyFromContext(r.Context())
	if key == "" {
		utils.JSONError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]string{
		"user_id":   in.UserID,
		"signature": auth.SignUserID(in.UserID, key),
	})
}
