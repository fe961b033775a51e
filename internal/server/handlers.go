// Package server HTTP surface: the WebSocket upgrade endpoint, the history
// read used at page load, a health check, and a built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"chathub/internal/store"
)

// WebSocketHandler upgrades GET requests and registers the resulting client
// with the hub, which launches its pump goroutines.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	policy := newOriginPolicy(hub.cfg.Origins(), hub.log)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		hub.register <- NewClient(conn, hub, r.RemoteAddr)
	}
}

// HistoryHandler serves the most recent messages of the room in chronological
// order. This is the read the chat page performs on load; the engine itself
// never calls it.
func HistoryHandler(messages *store.MessageStore, cfg *Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
			return
		}

		limit := cfg.HistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			if parsed < limit {
				limit = parsed
			}
		}

		history, err := messages.Recent(cfg.Room, limit)
		if err != nil {
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		if history == nil {
			history = []store.Message{}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(history)
	}
}

// HealthHandler provides a simple health check endpoint.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "chathub is running")
}

// TestPageHandler serves a minimal HTML page speaking the event protocol, for
// poking at the hub from a browser.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, testPageHTML)
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>chathub test page</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #log { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        #who { color: #555; }
        input[type="text"] { width: 260px; padding: 5px; margin-right: 6px; }
    </style>
</head>
<body>
    <h1>chathub</h1>
    <div id="who"></div>
    <div id="log"></div>
    <input type="text" id="name" placeholder="display name">
    <button onclick="join()">Join</button>
    <br><br>
    <input type="text" id="text" placeholder="message">
    <button onclick="send()">Send</button>
    <script>
        const ws = new WebSocket('ws://' + location.host + '/ws');
        const log = (line) => {
            const div = document.createElement('div');
            div.innerHTML = line;
            document.getElementById('log').appendChild(div);
        };
        let me = '';
        ws.onmessage = (e) => {
            const env = JSON.parse(e.data);
            switch (env.event) {
            case 'presence-update':
                document.getElementById('who').textContent = 'online: ' + env.payload.join(', ');
                break;
            case 'chat-message':
                log('<strong>' + env.payload.sender + ':</strong> ' + env.payload.text);
                break;
            case 'user-joined': log('<em>' + env.payload + ' joined</em>'); break;
            case 'user-left': log('<em>' + env.payload + ' left</em>'); break;
            case 'typing-update':
                if (env.payload.length) log('<em>typing: ' + env.payload.join(', ') + '</em>');
                break;
            case 'error': log('<em>error: ' + env.payload.message + '</em>'); break;
            }
        };
        const emit = (event, payload) => ws.send(JSON.stringify({event, payload}));
        function join() {
            me = document.getElementById('name').value;
            emit('join', me);
        }
        function send() {
            const text = document.getElementById('text').value;
            emit('chat-message', {sender: me, text: text});
            document.getElementById('text').value = '';
        }
        document.getElementById('text').addEventListener('input', () => emit('typing', me));
    </script>
</body>
</html>`
