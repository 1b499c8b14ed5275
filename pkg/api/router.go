package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"chatstream/pkg/api/handlers"
	"chatstream/pkg/auth"
)

// NewRouter maps the /v1 surface. Auth, telemetry and metrics middleware
// wrap this router at the app layer; per-route role floors are enforced
// here.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()

	// Chats
	v1.HandleFunc("/chats", handlers.CreateChat).Methods(http.MethodPost)
	v1.HandleFunc("/chats", handlers.ListChats).Methods(http.MethodGet)
	v1.HandleFunc("/chats/{id}", handlers.GetChat).Methods(http.MethodGet)
	v1.HandleFunc("/chats/{id}", handlers.UpdateChat).Methods(http.MethodPut)
	v1.HandleFunc("/chats/{id}", handlers.DeleteChat).Methods(http.MethodDelete)

	// Messages
	v1.HandleFunc("/chats/{id}/messages", handlers.AppendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{id}/messages", handlers.ListChatMessages).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}", handlers.GetMessage).Methods(http.MethodGet)
	v1.HandleFunc("/messages/{id}/versions", handlers.ListMessageVersions).Methods(http.MethodGet)

	// Streaming
	v1.HandleFunc("/chats/{id}/stream", handlers.StartStream).Methods(http.MethodPost)
	v1.HandleFunc("/chats/{id}/stream", handlers.ResumeStream).Methods(http.MethodGet)
	v1.HandleFunc("/stream", handlers.ResumeStreamByQuery).Methods(http.MethodGet)
	v1.HandleFunc("/streams/{id}", handlers.GetStreamRecord).Methods(http.MethodGet)

	// Embeddings
	v1.HandleFunc("/embeddings", handlers.Embeddings).Methods(http.MethodPost)

	// Backend-only identity signing
	v1.HandleFunc("/sign", auth.RequireRole(auth.RoleBackend, handlers.SignUser)).Methods(http.MethodPost)

	// Admin
	v1.HandleFunc("/admin/stats", auth.RequireRole(auth.RoleAdmin, handlers.AdminStats)).Methods(http.MethodGet)
	v1.HandleFunc("/admin/retention/run", auth.RequireRole(auth.RoleAdmin, handlers.AdminRetentionRun)).Methods(http.MethodPost)

	return r
}
