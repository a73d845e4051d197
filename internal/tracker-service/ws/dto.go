package ws

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Channel: obrigatório para subscribe/unsubscribe (ex: "board")
type ClientMsg struct {
	Type    string `json:"type"`    // subscribe | unsubscribe | ping
	Channel string `json:"channel"` // requerido em subscribe/unsubscribe
}

// BoardUpdate representa um snapshot do tracker enviado aos clientes
// WebSocket após cada mutação (sessão, apostas, projeções, stats).
type BoardUpdate struct {
	Channel string      `json:"channel"`
	Payload interface{} `json:"payload"`
}
