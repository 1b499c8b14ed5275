package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"chatstream/pkg/config"
)

// SignUserID returns the hex HMAC-SHA256 of the user ID under the given key.
func SignUserID(userID, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyUserSignature checks the signature against every configured
// signing key. Comparison is constant time per key.
func VerifyUserSignature(userID, sig string) bool {
	sig = strings.TrimSpace(sig)
	if userID == "" || sig == "" {
		return false
	}
	want, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	for key := range config.GetSigningKeys() {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(userID))
		if hmac.Equal(want, mac.Sum(nil)) {
			return true
		}
	}
	return false
}

// ResolveAuthorFromRequest determines the acting author for a request.
// Backend and admin callers may assert any X-User-ID directly. Frontend
// callers must present X-User-ID plus a valid X-User-Signature minted by a
// backend holding a signing key.
func ResolveAuthorFromRequest(r *http.Request) (string, error) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	role := RoleFromContext(r.Context())
	switch role {
	case RoleBackend, RoleAdmin:
		if userID == "" {
			return "", fmt.Errorf("missing X-User-ID header")
		}
		return userID, nil
	case RoleFrontend:
		if userID == "" {
			return "", fmt.Errorf("missing X-User-ID header")
		}
		if !VerifyUserSignature(userID, r.Header.Get("X-User-Signature")) {
			return "", fmt.Errorf("invalid user signature")
		}
		return userID, nil
	}
	return "", fmt.Errorf("unauthenticated")
}
