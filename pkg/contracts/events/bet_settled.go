package events

// Evento publicado no tópico "bet_settled" após cada liquidação de aposta.
type BetSettled struct {
	BetID         string  `json:"bet_id"`
	SessionID     string  `json:"session_id"`
	Outcome       string  `json:"outcome"` // "won" | "lost"
	CombinedOdd   float64 `json:"combined_odd"`
	BankrollAfter float64 `json:"bankroll_after"`
	StepCount     int     `json:"step_count"`
	SessionClosed bool    `json:"session_closed"`
	TsUnixMs      int64   `json:"ts_unix_ms"`
}
