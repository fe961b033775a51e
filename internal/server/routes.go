// Package server wires HTTP handlers into a ServeMux via routing helpers.
package server

import (
	"net/http"

	"chathub/internal/store"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, history read, and test page.
func SetupRoutes(hub *Hub, messages *store.MessageStore, cfg *Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/history", HistoryHandler(messages, cfg))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
