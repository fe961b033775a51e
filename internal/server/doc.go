// Package server implements the realtime chat hub: WebSocket connection
// handling, presence and typing fan-out, and the message pipeline.
//
// The implementation is organized into specialized files for configuration,
// hub coordination, clients, the message pipeline, routing, and HTTP handlers
// to keep the codebase maintainable and testable as the project grows.
package server
