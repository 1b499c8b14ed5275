package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"chatstream/pkg/config"
)

func testGateway() *Gateway {
	var sec config.SecurityConfig
	sec.APIKeys.Backend = []string{"bk"}
	sec.APIKeys.Frontend = []string{"fk"}
	sec.APIKeys.Admin = []string{"ak"}
	sec.CORS.AllowedOrigins = []string{"https://app.example.com"}
	return NewGateway(sec)
}

func doReq(t *testing.T, gw *Gateway, method, path string, hdr map[string]string) (*httptest.ResponseRecorder, Role) {
	t.Helper()
	var got Role
	h := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, path, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got
}

func TestGatewayRoles(t *testing.T) {
	gw := testGateway()

	rec, _ := doReq(t, gw, http.MethodGet, "/v1/chats", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, role := doReq(t, gw, http.MethodGet, "/v1/chats", map[string]string{"Authorization": "Bearer bk"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, RoleBackend, role)

	rec, role = doReq(t, gw, http.MethodGet, "/v1/chats", map[string]string{"X-API-Key": "ak"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, RoleAdmin, role)

	rec, _ = doReq(t, gw, http.MethodGet, "/v1/chats", map[string]string{"X-API-Key": "nope"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGatewayFrontendScope(t *testing.T) {
	gw := testGateway()
	hdr := map[string]string{"X-API-Key": "fk"}

	rec, role := doReq(t, gw, http.MethodGet, "/v1/chats", hdr)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, RoleFrontend, role)

	rec, _ = doReq(t, gw, http.MethodPost, "/v1/embeddings", hdr)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doReq(t, gw, http.MethodGet, "/v1/admin/stats", hdr)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doReq(t, gw, http.MethodPost, "/v1/sign", hdr)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGatewayCORSPreflight(t *testing.T) {
	gw := testGateway()
	rec, _ := doReq(t, gw, http.MethodOptions, "/v1/chats", map[string]string{"Origin": "https://app.example.com"})
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	rec, _ = doReq(t, gw, http.MethodOptions, "/v1/chats", map[string]string{"Origin": "https://evil.example.com"})
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestGatewayIPWhitelist(t *testing.T) {
	gw := testGateway()
	gw.IPWhitelist = []string{"10.0.0.1"}
	rec, _ := doReq(t, gw, http.MethodGet, "/v1/chats", map[string]string{"X-API-Key": "bk"})
	// httptest remote addr is 192.0.2.1.
	require.Equal(t, http.StatusForbidden, rec.Code)

	gw.IPWhitelist = []string{"192.0.2.1"}
	rec, _ = doReq(t, gw, http.MethodGet, "/v1/chats", map[string]string{"X-API-Key": "bk"})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiterPool(t *testing.T) {
	p := NewLimiterPool(1, 2)
	require.True(t, p.Allow("k"))
	require.True(t, p.Allow("k"))
	require.False(t, p.Allow("k"))
	// Separate keys have separate buckets.
	require.True(t, p.Allow("other"))
}

func TestUserSignature(t *testing.T) {
	config.SetRuntime(&config.RuntimeConfig{SigningKeys: map[string]struct{}{"bk": {}}})
	defer config.SetRuntime(nil)

	sig := SignUserID("u1", "bk")
	require.True(t, VerifyUserSignature("u1", sig))
	require.False(t, VerifyUserSignature("u2", sig))
	require.False(t, VerifyUserSignature("u1", "deadbeef"))
	require.False(t, VerifyUserSignature("u1", "not-hex"))
}
