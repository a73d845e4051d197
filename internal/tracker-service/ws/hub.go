package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// client embrulha a conexão com um mutex de escrita: gorilla/websocket
// permite no máximo um escritor concorrente por conexão, e aqui tanto o
// loop de leitura (pong) quanto o Broadcast escrevem nela.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas de canais do board
// subs: mapeia canal para o conjunto de conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	// channel -> set of clients
	subs map[string]map[*client]struct{}
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe em canais e responde a pings
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[msg.Channel]; !ok {
				h.subs[msg.Channel] = make(map[*client]struct{})
			}
			h.subs[msg.Channel][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			if m, ok := h.subs[msg.Channel]; ok {
				delete(m, c)
				if len(m) == 0 {
					delete(h.subs, msg.Channel)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.writeJSON(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for _, set := range h.subs {
		delete(set, c)
	}
	h.mu.Unlock()
}

// Broadcast envia um snapshot do board para todos os clientes inscritos
// no canal correspondente
func (h *Hub) Broadcast(update BoardUpdate) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[update.Channel]))
	for c := range h.subs[update.Channel] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range targets {
		_ = c.write(b)
	}
}
